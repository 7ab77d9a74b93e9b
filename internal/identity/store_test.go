package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusmvp/wallet-auth/internal/kv"
	"github.com/statusmvp/wallet-auth/internal/kv/memory"
)

func newTestStore() *Store {
	return NewStore(memory.New())
}

func TestOAuthState_ConsumeOnce(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	rec := OAuthStateRecord{
		State:          "st-1",
		Provider:       "x",
		CodeVerifier:   "verifier",
		AppRedirectURI: "statusmvp://auth",
		CreatedAt:      1000,
		ExpiresAt:      601000,
	}
	require.NoError(t, s.PutOAuthState(ctx, rec, 10*time.Minute))

	got, err := s.ConsumeOAuthState(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)

	// Second consume misses: the state was deleted on first read.
	_, err = s.ConsumeOAuthState(ctx, "st-1")
	assert.True(t, kv.IsNotFound(err))
}

func TestConsumeOAuthState_Blank(t *testing.T) {
	s := newTestStore()
	_, err := s.ConsumeOAuthState(context.Background(), "  ")
	assert.True(t, kv.IsNotFound(err))
}

func TestAuthCode_UsedOnceMarker(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	rec := AuthCodeRecord{Code: "code-1", Provider: "tg", ProviderUserID: "777", ProviderSub: "tg:777", CreatedAt: 1000, ExpiresAt: 61000}
	require.NoError(t, s.PutAuthCode(ctx, rec, time.Minute))

	got, err := s.GetAuthCode(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "tg:777", got.ProviderSub)

	first, err := s.MarkAuthCodeUsedOnce(ctx, "code-1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.MarkAuthCodeUsedOnce(ctx, "code-1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestUpdateAuthCode_PreservesTTL(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	rec := AuthCodeRecord{Code: "code-2", Provider: "x", ProviderSub: "x:1", ExpiresAt: 61000}
	require.NoError(t, s.PutAuthCode(ctx, rec, time.Minute))

	used := int64(5000)
	rec.UsedAt = &used
	require.NoError(t, s.UpdateAuthCode(ctx, rec))

	got, err := s.GetAuthCode(ctx, "code-2")
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)
	assert.Equal(t, used, *got.UsedAt)

	ttl, err := s.kv.TTL(ctx, prefixAuthCode+"code-2")
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Second)
}

func TestProviderBinding_AdoptionRace(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	won, err := s.BindProviderSubIfAbsent(ctx, "x:42", "wallet_a")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.BindProviderSubIfAbsent(ctx, "x:42", "wallet_b")
	require.NoError(t, err)
	assert.False(t, won)

	owner, err := s.GetWalletSubByProviderSub(ctx, "x:42")
	require.NoError(t, err)
	assert.Equal(t, "wallet_a", owner)

	require.NoError(t, s.BindProviderSubForce(ctx, "x:42", "wallet_c"))
	owner, err = s.GetWalletSubByProviderSub(ctx, "x:42")
	require.NoError(t, err)
	assert.Equal(t, "wallet_c", owner)

	require.NoError(t, s.UnbindProviderSub(ctx, "x:42"))
	_, err = s.GetWalletSubByProviderSub(ctx, "x:42")
	assert.True(t, kv.IsNotFound(err))
}

func TestWalletProfile_RoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	p := NewWalletProfile("wallet_abc", 1000)
	p.Providers["x:42"] = ProviderBinding{Provider: "x", ProviderUserID: "42", ProviderSub: "x:42", AddedAt: 1000}
	require.NoError(t, s.PutWalletProfile(ctx, p))

	got, err := s.GetWalletProfile(ctx, "wallet_abc")
	require.NoError(t, err)
	assert.Equal(t, "wallet_abc", got.WalletSub)
	assert.Contains(t, got.Providers, "x:42")
	assert.Equal(t, int64(1000), got.Favorites.UpdatedAt)
}

func TestRefreshToken_Lifecycle(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	rec := RefreshTokenRecord{ID: "rt-1", WalletSub: "wallet_abc", TokenHash: "hash-1", CreatedAt: 1000, ExpiresAt: 100000}
	require.NoError(t, s.PutRefreshToken(ctx, rec, time.Hour))

	got, err := s.GetRefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "wallet_abc", got.WalletSub)

	require.NoError(t, s.ConsumeRefreshTokenByHash(ctx, "hash-1"))
	_, err = s.GetRefreshTokenByHash(ctx, "hash-1")
	assert.True(t, kv.IsNotFound(err))
}

func TestRememberJTI(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	first, err := s.RememberJTI(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	replay, err := s.RememberJTI(ctx, "jti-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, replay)

	blank, err := s.RememberJTI(ctx, " ", time.Minute)
	require.NoError(t, err)
	assert.False(t, blank)
}

func TestGetJSON_CorruptValueLooksLikeMiss(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.kv.Set(ctx, prefixAuthCode+"broken", []byte("{not json"), time.Minute))
	_, err := s.GetAuthCode(ctx, "broken")
	assert.True(t, kv.IsNotFound(err))
}
