// Package token emite y verifica los dos tokens del protocolo:
//
//   - Provider assertion (RS256): prueba de identidad firmada que el cliente
//     entrega al SDK de wallet embebida. La clave pública se publica por JWKS.
//   - Access token (HS256): token interno del servicio, claim tokenType=access.
//
// Además calcula los digests SHA-256 con que se almacenan los refresh tokens
// (el valor en claro nunca toca el store).
package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/statusmvp/wallet-auth/internal/config"
	"github.com/statusmvp/wallet-auth/internal/observability/logger"
)

const minTokenTTL = 30 * time.Second

// Errores de verificación. El orquestador los mapea a los códigos HTTP.
var (
	ErrTokenInvalid = errors.New("token: invalid access token")
	ErrTokenExpired = errors.New("token: access token expired")
)

// AccessClaims son las claims verificadas de un access token.
type AccessClaims struct {
	WalletSub string
	JTI       string
	ExpiresAt time.Time
}

// Service mantiene el par RSA y el secreto HMAC. Inmutable después de New.
type Service struct {
	web3auth config.Web3AuthConfig
	appJWT   config.AppJWTConfig

	priv   *rsa.PrivateKey
	secret []byte
}

// New construye el Service. Falla en arranque si el secreto HMAC es corto o el
// PEM está malformado. Sin PEM configurado genera un par RSA-2048 efímero:
// válido solo fuera de producción porque rompe la confianza JWKS al reiniciar
// (config.Validate lo rechaza en prod).
func New(cfg config.AuthConfig) (*Service, error) {
	if len(cfg.AppJWT.Secret) < 32 {
		return nil, fmt.Errorf("token: app jwt secret must be at least 32 bytes")
	}

	var priv *rsa.PrivateKey
	if pem := strings.TrimSpace(cfg.Web3Auth.PrivateKeyPEM); pem != "" {
		var err error
		priv, err = parseRSAPrivateKeyPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("token: parse private key pem: %w", err)
		}
	} else {
		var err error
		priv, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("token: generate rsa keypair: %w", err)
		}
		logger.Named("token").Warn("no private key PEM configured, generated ephemeral RSA keypair; JWKS consumers cannot trust this key across restarts")
	}

	return &Service{
		web3auth: cfg.Web3Auth,
		appJWT:   cfg.AppJWT,
		priv:     priv,
		secret:   []byte(cfg.AppJWT.Secret),
	}, nil
}

// IssueProviderAssertion firma una assertion RS256 para providerSub y
// retorna también su jti para el set anti-replay.
// Si nonce viene vacío se genera uno. TTL mínimo efectivo: 30s.
func (s *Service) IssueProviderAssertion(subject, nonce string, ttl time.Duration) (string, string, error) {
	now := time.Now()
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}
	if strings.TrimSpace(nonce) == "" {
		nonce = uuid.NewString()
	}
	jti := uuid.NewString()

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims{
		"iss":   s.web3auth.Issuer,
		"aud":   s.web3auth.Audience,
		"sub":   subject,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"jti":   jti,
		"nonce": nonce,
	})
	tk.Header["kid"] = s.web3auth.KeyID
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(s.priv)
	if err != nil {
		return "", "", fmt.Errorf("token: sign provider assertion: %w", err)
	}
	return signed, jti, nil
}

// IssueAccessToken firma un access token HS256 para walletSub.
func (s *Service) IssueAccessToken(walletSub string, ttl time.Duration) (string, error) {
	now := time.Now()
	if ttl < minTokenTTL {
		ttl = minTokenTTL
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		"iss":       s.appJWT.Issuer,
		"aud":       s.appJWT.Audience,
		"sub":       walletSub,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
		"jti":       uuid.NewString(),
		"tokenType": "access",
	})
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken valida firma, issuer, audience, tokenType, expiración y
// subject. Expiración se reporta como ErrTokenExpired; todo lo demás como
// ErrTokenInvalid sin detalle (no filtrar por qué falló la verificación).
func (s *Service) VerifyAccessToken(raw string) (AccessClaims, error) {
	parsed, err := jwtv5.Parse(raw,
		func(t *jwtv5.Token) (any, error) { return s.secret, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(s.appJWT.Issuer),
		jwtv5.WithAudience(s.appJWT.Audience),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return AccessClaims{}, ErrTokenExpired
		}
		return AccessClaims{}, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(jwtv5.MapClaims)
	if !ok {
		return AccessClaims{}, ErrTokenInvalid
	}
	if tt, _ := claims["tokenType"].(string); tt != "access" {
		return AccessClaims{}, ErrTokenInvalid
	}
	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return AccessClaims{}, ErrTokenInvalid
	}
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return AccessClaims{}, ErrTokenInvalid
	}

	return AccessClaims{WalletSub: sub, JTI: jti, ExpiresAt: exp.Time}, nil
}

// SHA256Hex retorna el digest SHA-256 de value en hex minúscula.
func (s *Service) SHA256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
