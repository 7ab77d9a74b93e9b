// Package identity holds the session-domain records and their kv-backed
// store: OAuth states, one-time auth codes, provider-to-wallet bindings,
// wallet profiles and refresh tokens. All timestamps are unix milliseconds.
package identity

// OAuthStateRecord pins an in-flight OAuth round trip: the PKCE verifier and
// the app redirect target live server-side, keyed by the opaque state.
type OAuthStateRecord struct {
	State          string `json:"state"`
	Provider       string `json:"provider"`
	CodeVerifier   string `json:"codeVerifier"`
	AppRedirectURI string `json:"appRedirectUri"`
	CreatedAt      int64  `json:"createdAt"`
	ExpiresAt      int64  `json:"expiresAt"`
}

// AuthCodeRecord is a one-time code minted after provider verification and
// later exchanged for tokens. UsedAt is set on first (and only) exchange.
type AuthCodeRecord struct {
	Code           string `json:"code"`
	Provider       string `json:"provider"`
	ProviderUserID string `json:"providerUserId"`
	ProviderSub    string `json:"providerSub"`
	CreatedAt      int64  `json:"createdAt"`
	ExpiresAt      int64  `json:"expiresAt"`
	UsedAt         *int64 `json:"usedAt,omitempty"`
}

// ProviderBinding is one federated identity linked to a wallet.
type ProviderBinding struct {
	Provider       string `json:"provider"`
	ProviderUserID string `json:"providerUserId"`
	ProviderSub    string `json:"providerSub"`
	AddedAt        int64  `json:"addedAt"`
}

// FavoriteItem is one synced dApp favorite, keyed by normalized URL.
type FavoriteItem struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	IconURL   string `json:"iconUrl,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
	DeletedAt *int64 `json:"deletedAt,omitempty"`
}

// HistoryItem is one synced dApp history entry, keyed by normalized URL.
type HistoryItem struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	IconURL   string `json:"iconUrl,omitempty"`
	VisitedAt int64  `json:"visitedAt"`
	UpdatedAt int64  `json:"updatedAt"`
	DeletedAt *int64 `json:"deletedAt,omitempty"`
}

// SyncFavorites is the favorites collection with its LWW watermark.
type SyncFavorites struct {
	Items     []FavoriteItem `json:"items"`
	UpdatedAt int64          `json:"updatedAt"`
}

// SyncHistory is the history collection with its LWW watermark.
type SyncHistory struct {
	Items     []HistoryItem `json:"items"`
	UpdatedAt int64         `json:"updatedAt"`
}

// WalletProfile is the durable per-wallet root: provider bindings plus the
// synced dApp collections. Stored without TTL.
type WalletProfile struct {
	WalletSub string                     `json:"walletSub"`
	CreatedAt int64                      `json:"createdAt"`
	Providers map[string]ProviderBinding `json:"providers"`
	Favorites SyncFavorites              `json:"favorites"`
	History   SyncHistory                `json:"history"`
}

// NewWalletProfile builds an empty profile for a fresh wallet sub.
func NewWalletProfile(walletSub string, now int64) *WalletProfile {
	return &WalletProfile{
		WalletSub: walletSub,
		CreatedAt: now,
		Providers: map[string]ProviderBinding{},
		Favorites: SyncFavorites{Items: []FavoriteItem{}, UpdatedAt: now},
		History:   SyncHistory{Items: []HistoryItem{}, UpdatedAt: now},
	}
}

// RefreshTokenRecord is a stored refresh token, keyed by its SHA-256 hash.
// The raw token never touches the store.
type RefreshTokenRecord struct {
	ID        string `json:"id"`
	WalletSub string `json:"walletSub"`
	TokenHash string `json:"tokenHash"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
	RevokedAt *int64 `json:"revokedAt,omitempty"`
	// ReplacesID enlaza con el record anterior de la cadena de rotación.
	ReplacesID string `json:"replacesId,omitempty"`
}
