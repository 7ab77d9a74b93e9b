// Package provider define la capacidad común de los proveedores de identidad.
//
// Cada variante (x, telegram) implementa una sola operación de fondo: dada una
// prueba específica del proveedor, retornar la identidad verificada o fallar.
// La prueba difiere por proveedor (código OAuth+PKCE vs payload firmado del
// widget), por eso cada variante expone un método tipado que termina en la
// misma Identity; el orquestador solo consume Identity.
package provider

import (
	"fmt"
	"strings"
)

// Provider identifica un proveedor de identidad soportado.
type Provider string

const (
	// X es X/Twitter via OAuth2 + PKCE.
	X Provider = "x"
	// TG es Telegram via Login Widget.
	TG Provider = "tg"
)

// Code retorna el código wire del proveedor.
func (p Provider) Code() string { return string(p) }

// FromCode parsea un código de proveedor.
func FromCode(v string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "x":
		return X, nil
	case "tg":
		return TG, nil
	default:
		return "", fmt.Errorf("provider: unsupported provider %q", v)
	}
}

// Identity es una identidad externa verificada.
type Identity struct {
	Provider Provider
	UserID   string
	// Sub es el join key global provider:userId.
	Sub string
}

// NewIdentity construye una Identity con su sub compuesto.
func NewIdentity(p Provider, userID string) Identity {
	return Identity{Provider: p, UserID: userID, Sub: Sub(p, userID)}
}

// Sub compone el identificador global provider:userId.
func Sub(p Provider, userID string) string {
	return p.Code() + ":" + userID
}
