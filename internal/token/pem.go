package token

import (
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"strings"
)

// OID rsaEncryption (1.2.840.113549.1.1.1)
var oidRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

// pkcs8 es la estructura PrivateKeyInfo de PKCS#8.
type pkcs8 struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// parseRSAPrivateKeyPEM acepta claves en PKCS#8 ("PRIVATE KEY") y PKCS#1
// ("RSA PRIVATE KEY"). PKCS#1 se re-encapsula como PrivateKeyInfo PKCS#8
// (version 0, AlgorithmIdentifier rsaEncryption + NULL, PKCS#1 como OCTET
// STRING) antes de construir la clave, de modo que un solo parser cubre ambas.
// Los "\n" literales de config por env se normalizan a saltos reales.
func parseRSAPrivateKeyPEM(raw string) (*rsa.PrivateKey, error) {
	normalized := strings.TrimSpace(strings.ReplaceAll(raw, `\n`, "\n"))

	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	der := block.Bytes
	if block.Type == "RSA PRIVATE KEY" {
		wrapped, err := asn1.Marshal(pkcs8{
			Version: 0,
			Algo: pkix.AlgorithmIdentifier{
				Algorithm:  oidRSAEncryption,
				Parameters: asn1.NullRawValue,
			},
			PrivateKey: der,
		})
		if err != nil {
			return nil, fmt.Errorf("wrap pkcs1 as pkcs8: %w", err)
		}
		der = wrapped
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return rsaKey, nil
}
