// Package dto define los cuerpos de request de la API de autenticación.
package dto

import (
	"encoding/json"
	"strings"

	"github.com/statusmvp/wallet-auth/internal/auth"
	"github.com/statusmvp/wallet-auth/internal/identity"
)

// TelegramLoginRequest acepta el payload del Login Widget tanto en
// camelCase como en el snake_case que emite el widget oficial.
type TelegramLoginRequest struct {
	ID             string
	FirstName      string
	LastName       string
	Username       string
	PhotoURL       string
	AuthDate       string
	Hash           string
	AppRedirectURI string
}

func (t *TelegramLoginRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.ID = pickString(raw, "id")
	t.FirstName = pickString(raw, "firstName", "first_name")
	t.LastName = pickString(raw, "lastName", "last_name")
	t.Username = pickString(raw, "username")
	t.PhotoURL = pickString(raw, "photoUrl", "photo_url")
	t.AuthDate = pickString(raw, "authDate", "auth_date")
	t.Hash = pickString(raw, "hash")
	t.AppRedirectURI = pickString(raw, "appRedirectUri", "app_redirect_uri")
	return nil
}

// pickString devuelve el primer alias presente, tolerando valores
// numéricos (id y auth_date llegan como número desde el widget).
func pickString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func (t *TelegramLoginRequest) ToInput() auth.TelegramLoginInput {
	return auth.TelegramLoginInput{
		ID:             t.ID,
		FirstName:      t.FirstName,
		LastName:       t.LastName,
		Username:       t.Username,
		PhotoURL:       t.PhotoURL,
		AuthDate:       t.AuthDate,
		Hash:           t.Hash,
		AppRedirectURI: t.AppRedirectURI,
	}
}

type ExchangeRequest struct {
	Code  string `json:"code"`
	Nonce string `json:"nonce"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type BindRequest struct {
	AuthCode string `json:"authCode"`
}

type UnbindRequest struct {
	ProviderSub string `json:"providerSub"`
}

// SyncPayloadRequest transporta los dos streams del perfil dApp. Los
// punteros distinguen "no enviado" de "enviado vacío".
type SyncPayloadRequest struct {
	Favorites          []identity.FavoriteItem `json:"favorites"`
	FavoritesUpdatedAt *int64                  `json:"favoritesUpdatedAt"`
	History            []identity.HistoryItem  `json:"history"`
	HistoryUpdatedAt   *int64                  `json:"historyUpdatedAt"`
}

func (s *SyncPayloadRequest) ToInput() auth.SyncInput {
	return auth.SyncInput{
		Favorites:          s.Favorites,
		FavoritesUpdatedAt: s.FavoritesUpdatedAt,
		History:            s.History,
		HistoryUpdatedAt:   s.HistoryUpdatedAt,
	}
}
