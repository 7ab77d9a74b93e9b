package token

import (
	"encoding/base64"
	"math/big"
)

// JWK es una clave pública RSA en formato JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	KID string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS es el set publicado en /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicJWKS expone la clave pública RSA como JWKS.
// Nunca incluye material privado.
func (s *Service) PublicJWKS() JWKS {
	n := s.priv.N
	e := big.NewInt(int64(s.priv.E))

	return JWKS{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		KID: s.web3auth.KeyID,
		N:   base64.RawURLEncoding.EncodeToString(n.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(e.Bytes()),
	}}}
}
