package auth

import (
	"github.com/statusmvp/wallet-auth/internal/identity"
)

// StartXResult is the handoff for the client to open the provider consent page.
type StartXResult struct {
	AuthorizeURL string `json:"authorizeUrl"`
	State        string `json:"state"`
	ExpiresIn    int64  `json:"expiresInSeconds"`
}

// AuthCodeResult carries a freshly minted one-time code back to the client.
type AuthCodeResult struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"providerUserId"`
	ProviderSub    string `json:"providerSub"`
	Code           string `json:"code"`
	ExpiresIn      int64  `json:"expiresInSeconds"`
}

// XCallbackResult pairs the auth code with the app redirect target captured
// at start, when one was given.
type XCallbackResult struct {
	AuthCode       AuthCodeResult
	AppRedirectURI string
}

// TelegramLoginInput is the widget payload plus the optional deep link target.
type TelegramLoginInput struct {
	ID             string
	FirstName      string
	LastName       string
	Username       string
	PhotoURL       string
	AuthDate       string
	Hash           string
	AppRedirectURI string
}

// ExchangeResult is the full session bundle minted from a one-time code.
type ExchangeResult struct {
	WalletSub             string `json:"walletSub"`
	Provider              string `json:"provider"`
	ProviderUserID        string `json:"providerUserId"`
	ProviderSub           string `json:"providerSub"`
	Web3AuthJWT           string `json:"web3authJwt"`
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresIn  int64  `json:"accessTokenExpiresInSeconds"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresInSeconds"`
}

// RefreshResult is a rotated token pair.
type RefreshResult struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresIn  int64  `json:"accessTokenExpiresInSeconds"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresInSeconds"`
}

// MeResult lists the wallet's provider bindings, oldest first.
type MeResult struct {
	WalletSub string                     `json:"walletSub"`
	Providers []identity.ProviderBinding `json:"providers"`
}

// SyncInput is the client-side delta for an upsert merge.
type SyncInput struct {
	Favorites          []identity.FavoriteItem `json:"favorites"`
	FavoritesUpdatedAt *int64                  `json:"favoritesUpdatedAt"`
	History            []identity.HistoryItem  `json:"history"`
	HistoryUpdatedAt   *int64                  `json:"historyUpdatedAt"`
}

// SyncPayload is the merged server-side state returned on read and upsert.
type SyncPayload struct {
	Favorites identity.SyncFavorites `json:"favorites"`
	History   identity.SyncHistory   `json:"history"`
}
