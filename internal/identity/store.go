package identity

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/statusmvp/wallet-auth/internal/kv"
)

// Key prefixes share the auth: namespace in the kv store.
const (
	prefixOAuthState = "auth:oauth:state:"
	prefixAuthCode   = "auth:code:"
	prefixCodeUsed   = "auth:code:used:"
	prefixProvider   = "auth:provider:"
	prefixWallet     = "auth:wallet:"
	prefixRefresh    = "auth:refresh:"
	prefixJTI        = "auth:jti:"
)

// Store persists identity records as JSON over the shared kv store.
type Store struct {
	kv kv.Store
}

// NewStore creates a Store over the given kv driver.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// PutOAuthState stores an in-flight OAuth state for its TTL.
func (s *Store) PutOAuthState(ctx context.Context, rec OAuthStateRecord, ttl time.Duration) error {
	return s.putJSON(ctx, prefixOAuthState+rec.State, rec, ttl)
}

// ConsumeOAuthState reads and deletes a state in one pass. The delete runs
// even when the read missed, so a state can never be replayed.
func (s *Store) ConsumeOAuthState(ctx context.Context, state string) (*OAuthStateRecord, error) {
	if strings.TrimSpace(state) == "" {
		return nil, kv.ErrNotFound
	}
	key := prefixOAuthState + state
	var rec OAuthStateRecord
	err := s.getJSON(ctx, key, &rec)
	_ = s.kv.Delete(ctx, key)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutAuthCode stores a one-time auth code for its TTL.
func (s *Store) PutAuthCode(ctx context.Context, rec AuthCodeRecord, ttl time.Duration) error {
	return s.putJSON(ctx, prefixAuthCode+rec.Code, rec, ttl)
}

// GetAuthCode loads an auth code record without consuming it.
func (s *Store) GetAuthCode(ctx context.Context, code string) (*AuthCodeRecord, error) {
	if strings.TrimSpace(code) == "" {
		return nil, kv.ErrNotFound
	}
	var rec AuthCodeRecord
	if err := s.getJSON(ctx, prefixAuthCode+code, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkAuthCodeUsedOnce claims the code's used marker. Exactly one caller wins;
// the marker inherits the code's remaining TTL.
func (s *Store) MarkAuthCodeUsedOnce(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(code) == "" {
		return false, nil
	}
	return s.kv.SetIfAbsent(ctx, prefixCodeUsed+code, []byte("1"), clampTTL(ttl))
}

// UpdateAuthCode rewrites a code record preserving its remaining TTL.
func (s *Store) UpdateAuthCode(ctx context.Context, rec AuthCodeRecord) error {
	key := prefixAuthCode + rec.Code
	ttl, err := s.kv.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		ttl = time.Second
	}
	return s.putJSON(ctx, key, rec, ttl)
}

// GetWalletSubByProviderSub resolves the wallet owning a provider identity.
func (s *Store) GetWalletSubByProviderSub(ctx context.Context, providerSub string) (string, error) {
	if strings.TrimSpace(providerSub) == "" {
		return "", kv.ErrNotFound
	}
	raw, err := s.kv.Get(ctx, prefixProvider+providerSub)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// BindProviderSubIfAbsent claims the provider mapping for walletSub only if
// unowned. Concurrent first logins race here; exactly one wins.
func (s *Store) BindProviderSubIfAbsent(ctx context.Context, providerSub, walletSub string) (bool, error) {
	return s.kv.SetIfAbsent(ctx, prefixProvider+providerSub, []byte(walletSub), 0)
}

// BindProviderSubForce overwrites the provider mapping unconditionally.
func (s *Store) BindProviderSubForce(ctx context.Context, providerSub, walletSub string) error {
	return s.kv.Set(ctx, prefixProvider+providerSub, []byte(walletSub), 0)
}

// UnbindProviderSub removes the provider mapping.
func (s *Store) UnbindProviderSub(ctx context.Context, providerSub string) error {
	return s.kv.Delete(ctx, prefixProvider+providerSub)
}

// GetWalletProfile loads a wallet profile.
func (s *Store) GetWalletProfile(ctx context.Context, walletSub string) (*WalletProfile, error) {
	if strings.TrimSpace(walletSub) == "" {
		return nil, kv.ErrNotFound
	}
	var p WalletProfile
	if err := s.getJSON(ctx, prefixWallet+walletSub, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutWalletProfile stores a wallet profile without expiry.
func (s *Store) PutWalletProfile(ctx context.Context, p *WalletProfile) error {
	return s.putJSON(ctx, prefixWallet+p.WalletSub, p, 0)
}

// PutRefreshToken stores a refresh record keyed by token hash for its TTL.
func (s *Store) PutRefreshToken(ctx context.Context, rec RefreshTokenRecord, ttl time.Duration) error {
	return s.putJSON(ctx, prefixRefresh+rec.TokenHash, rec, ttl)
}

// GetRefreshTokenByHash loads a refresh record by token hash.
func (s *Store) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshTokenRecord, error) {
	if strings.TrimSpace(tokenHash) == "" {
		return nil, kv.ErrNotFound
	}
	var rec RefreshTokenRecord
	if err := s.getJSON(ctx, prefixRefresh+tokenHash, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ConsumeRefreshTokenByHash deletes a refresh record after rotation.
func (s *Store) ConsumeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	return s.kv.Delete(ctx, prefixRefresh+tokenHash)
}

// RememberJTI claims a token jti for replay protection. Returns false when
// the jti was already seen.
func (s *Store) RememberJTI(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	return s.kv.SetIfAbsent(ctx, prefixJTI+jti, []byte("1"), clampTTL(ttl))
}

func (s *Store) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if ttl > 0 {
		ttl = clampTTL(ttl)
	}
	return s.kv.Set(ctx, key, raw, ttl)
}

// getJSON maps both a miss and an undecodable value to ErrNotFound; a stale
// corrupt record must look like an expired one, not break the flow.
func (s *Store) getJSON(ctx context.Context, key string, out any) error {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return kv.ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return kv.ErrNotFound
	}
	return nil
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
