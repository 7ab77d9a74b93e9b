package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusmvp/wallet-auth/internal/config"
	"github.com/statusmvp/wallet-auth/internal/errs"
	"github.com/statusmvp/wallet-auth/internal/identity"
	"github.com/statusmvp/wallet-auth/internal/kv"
	"github.com/statusmvp/wallet-auth/internal/kv/memory"
	"github.com/statusmvp/wallet-auth/internal/provider"
	"github.com/statusmvp/wallet-auth/internal/provider/telegram"
	"github.com/statusmvp/wallet-auth/internal/provider/x"
	"github.com/statusmvp/wallet-auth/internal/risk"
	"github.com/statusmvp/wallet-auth/internal/token"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testBotToken = "12345:test-bot-token"
)

func testAuthConfig() config.AuthConfig {
	cfg := config.Default().Auth
	cfg.AppJWT.Secret = testSecret
	cfg.TG.BotToken = testBotToken
	cfg.AppRedirectAllowlist = []string{"statusmvp://"}
	cfg.X.ClientID = "client-123"
	cfg.X.RedirectURI = "https://api.example.com/api/v1/auth/x/callback"
	return cfg
}

func newTestService(t *testing.T, cfg config.AuthConfig) *Service {
	t.Helper()
	store := identity.NewStore(memory.New())
	tokens, err := token.New(cfg)
	require.NoError(t, err)
	gate := risk.New(memory.New(), cfg.Risk, nil)
	svc := New(cfg, store, x.New(cfg.X, nil), telegram.New(cfg.TG), gate, tokens, nil)
	return svc
}

func telegramHash(fields map[string]string) string {
	pairs := make([]string, 0, len(fields))
	for k, v := range fields {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	secret := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func telegramInput(userID string) TelegramLoginInput {
	authDate := fmt.Sprintf("%d", time.Now().Unix())
	return TelegramLoginInput{
		ID:       userID,
		AuthDate: authDate,
		Hash:     telegramHash(map[string]string{"auth_date": authDate, "id": userID}),
	}
}

func loginTelegram(t *testing.T, svc *Service, userID string) AuthCodeResult {
	t.Helper()
	code, err := svc.TelegramLogin(context.Background(), telegramInput(userID), "198.51.100.1", "dev-1")
	require.NoError(t, err)
	return code
}

func TestStartXLogin(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()

	res, err := svc.StartXLogin(ctx, "statusmvp://auth/done")
	require.NoError(t, err)
	assert.NotEmpty(t, res.State)
	assert.Equal(t, int64(600), res.ExpiresIn)

	u, err := url.Parse(res.AuthorizeURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, res.State, q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))

	// El estado quedó persistido con el verifier y el redirect.
	rec, err := svc.store.ConsumeOAuthState(ctx, res.State)
	require.NoError(t, err)
	assert.Equal(t, "statusmvp://auth/done", rec.AppRedirectURI)
	assert.Equal(t, sha256Base64URL(rec.CodeVerifier), q.Get("code_challenge"))
}

func TestStartXLogin_RedirectNotAllowed(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	_, err := svc.StartXLogin(context.Background(), "https://evil.example/phish")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.BadRequest))
}

func TestStartXLogin_Disabled(t *testing.T) {
	cfg := testAuthConfig()
	cfg.XEnabled = false
	svc := newTestService(t, cfg)
	_, err := svc.StartXLogin(context.Background(), "")
	assert.True(t, errs.IsCode(err, errs.FeatureDisabled))

	cfg = testAuthConfig()
	cfg.Enabled = false
	svc = newTestService(t, cfg)
	_, err = svc.StartXLogin(context.Background(), "")
	assert.True(t, errs.IsCode(err, errs.FeatureDisabled))
}

func TestStartXLogin_NotConfigured(t *testing.T) {
	cfg := testAuthConfig()
	cfg.X.ClientID = ""
	svc := newTestService(t, cfg)
	_, err := svc.StartXLogin(context.Background(), "")
	assert.True(t, errs.IsCode(err, errs.ProviderUnavailable))
}

func TestHandleXCallback_FullFlow(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1"}`))
	}))
	defer tokenSrv.Close()
	userinfoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"42"}}`))
	}))
	defer userinfoSrv.Close()

	cfg := testAuthConfig()
	cfg.X.TokenEndpoint = tokenSrv.URL
	cfg.X.UserinfoEndpoint = userinfoSrv.URL
	svc := newTestService(t, cfg)
	ctx := context.Background()

	start, err := svc.StartXLogin(ctx, "statusmvp://auth/done")
	require.NoError(t, err)

	res, err := svc.HandleXCallback(ctx, "provider-code", start.State, "", "", "198.51.100.1", "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "x", res.AuthCode.Provider)
	assert.Equal(t, "42", res.AuthCode.ProviderUserID)
	assert.Equal(t, "x:42", res.AuthCode.ProviderSub)
	assert.NotEmpty(t, res.AuthCode.Code)
	assert.Equal(t, "statusmvp://auth/done", res.AppRedirectURI)

	// El estado es de un solo uso.
	_, err = svc.HandleXCallback(ctx, "provider-code", start.State, "", "", "198.51.100.1", "dev-1")
	assert.True(t, errs.IsCode(err, errs.OAuthStateInvalid))
}

func TestHandleXCallback_StateInvalid(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	_, err := svc.HandleXCallback(context.Background(), "c", "no-such-state", "", "", "198.51.100.1", "")
	assert.True(t, errs.IsCode(err, errs.OAuthStateInvalid))
}

func TestHandleXCallback_StateExpired(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	start, err := svc.StartXLogin(ctx, "")
	require.NoError(t, err)

	svc.now = func() int64 { return time.Now().UnixMilli() + 601_000 }
	_, err = svc.HandleXCallback(ctx, "c", start.State, "", "", "198.51.100.1", "")
	assert.True(t, errs.IsCode(err, errs.OAuthStateExpired))
}

func TestHandleXCallback_ProviderError(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	start, err := svc.StartXLogin(ctx, "")
	require.NoError(t, err)

	_, err = svc.HandleXCallback(ctx, "", start.State, "access_denied", "user denied", "198.51.100.1", "")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.OAuthExchangeFailed))
	ae, _ := errs.As(err)
	assert.Equal(t, 401, ae.Status)
}

func TestHandleXCallback_MissingCode(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	start, err := svc.StartXLogin(ctx, "")
	require.NoError(t, err)

	_, err = svc.HandleXCallback(ctx, "", start.State, "", "", "198.51.100.1", "")
	require.Error(t, err)
	ae, _ := errs.As(err)
	assert.Equal(t, errs.OAuthExchangeFailed, ae.Code)
	assert.Equal(t, 400, ae.Status)
}

func TestHandleXCallback_DeniedIP(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Risk.DenyIPs = []string{"203.0.113.66"}
	svc := newTestService(t, cfg)
	_, err := svc.HandleXCallback(context.Background(), "c", "s", "", "", "203.0.113.66", "")
	assert.True(t, errs.IsCode(err, errs.Forbidden))
}

func TestTelegramLogin_MintsAuthCode(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	code := loginTelegram(t, svc, "777000")

	assert.Equal(t, "tg", code.Provider)
	assert.Equal(t, "777000", code.ProviderUserID)
	assert.Equal(t, "tg:777000", code.ProviderSub)
	assert.Equal(t, int64(60), code.ExpiresIn)
}

func TestTelegramLogin_DeniedProvider(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Risk.DenyProviderSubs = []string{"tg:777000"}
	svc := newTestService(t, cfg)
	_, err := svc.TelegramLogin(context.Background(), telegramInput("777000"), "198.51.100.1", "")
	assert.True(t, errs.IsCode(err, errs.Forbidden))
}

func TestExchange_MintsSession(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")

	res, err := svc.Exchange(ctx, code.Code, "nonce-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.WalletSub, "wallet_"))
	assert.Equal(t, "tg", res.Provider)
	assert.Equal(t, "tg:777000", res.ProviderSub)
	assert.NotEmpty(t, res.Web3AuthJWT)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(900), res.AccessTokenExpiresIn)

	claims, err := svc.tokens.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.WalletSub, claims.WalletSub)

	// Mismo provider → mismo wallet en logins posteriores.
	code2 := loginTelegram(t, svc, "777000")
	res2, err := svc.Exchange(ctx, code2.Code, "")
	require.NoError(t, err)
	assert.Equal(t, res.WalletSub, res2.WalletSub)
}

func TestExchange_CodeSingleUse(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")

	const n = 16
	var wg sync.WaitGroup
	errsCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Exchange(ctx, code.Code, "")
			errsCh <- err
		}()
	}
	wg.Wait()
	close(errsCh)

	var successes, used int
	for err := range errsCh {
		switch {
		case err == nil:
			successes++
		case errs.IsCode(err, errs.AuthCodeUsed):
			used++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, used)
}

func TestExchange_InvalidAndExpiredCode(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()

	_, err := svc.Exchange(ctx, "no-such-code", "")
	assert.True(t, errs.IsCode(err, errs.AuthCodeInvalid))

	code := loginTelegram(t, svc, "777000")
	svc.now = func() int64 { return time.Now().UnixMilli() + 61_000 }
	_, err = svc.Exchange(ctx, code.Code, "")
	assert.True(t, errs.IsCode(err, errs.AuthCodeExpired))
}

func TestExchange_ConcurrentFirstLoginSameWallet(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()

	codeA := loginTelegram(t, svc, "777000")
	codeB := loginTelegram(t, svc, "777000")

	var wg sync.WaitGroup
	results := make(chan string, 2)
	for _, c := range []string{codeA.Code, codeB.Code} {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			res, err := svc.Exchange(ctx, code, "")
			if err == nil {
				results <- res.WalletSub
			}
		}(c)
	}
	wg.Wait()
	close(results)

	subs := map[string]bool{}
	for sub := range results {
		subs[sub] = true
	}
	require.Len(t, subs, 1, "ambos logins deben adoptar el mismo wallet")
}

func TestRefresh_RotationInvalidatesOld(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")
	session, err := svc.Exchange(ctx, code.Code, "")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	claims, err := svc.tokens.VerifyAccessToken(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.WalletSub, claims.WalletSub)

	// El token anterior quedó consumido.
	_, err = svc.Refresh(ctx, session.RefreshToken)
	assert.True(t, errs.IsCode(err, errs.RefreshTokenInvalid))

	// El rotado sigue vivo.
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_UnknownToken(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	_, err := svc.Refresh(context.Background(), "garbage")
	assert.True(t, errs.IsCode(err, errs.RefreshTokenInvalid))
}

func TestMe_ListsBindings(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")
	session, err := svc.Exchange(ctx, code.Code, "")
	require.NoError(t, err)

	me, err := svc.Me(ctx, "Bearer "+session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.WalletSub, me.WalletSub)
	require.Len(t, me.Providers, 1)
	assert.Equal(t, "tg:777000", me.Providers[0].ProviderSub)
}

func TestMe_BadAuthorization(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()

	_, err := svc.Me(ctx, "")
	assert.True(t, errs.IsCode(err, errs.Unauthorized))

	_, err = svc.Me(ctx, "Basic abc")
	assert.True(t, errs.IsCode(err, errs.Unauthorized))

	_, err = svc.Me(ctx, "Bearer not-a-jwt")
	assert.True(t, errs.IsCode(err, errs.AccessTokenInvalid))
}

func TestBindProvider_AddsSecondBinding(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")
	session, err := svc.Exchange(ctx, code.Code, "")
	require.NoError(t, err)

	// Un code de otro proveedor (x) emitido contra la misma cuenta.
	xCode, err := svc.issueAuthCode(ctx, provider.NewIdentity(provider.X, "42"))
	require.NoError(t, err)

	me, err := svc.BindProvider(ctx, "Bearer "+session.AccessToken, xCode.Code)
	require.NoError(t, err)
	require.Len(t, me.Providers, 2)

	owner, err := svc.store.GetWalletSubByProviderSub(ctx, "x:42")
	require.NoError(t, err)
	assert.Equal(t, session.WalletSub, owner)
}

func TestBindProvider_Conflict(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()

	codeA := loginTelegram(t, svc, "111")
	sessionA, err := svc.Exchange(ctx, codeA.Code, "")
	require.NoError(t, err)

	codeB := loginTelegram(t, svc, "222")
	_, err = svc.Exchange(ctx, codeB.Code, "")
	require.NoError(t, err)

	// B ya es dueño de tg:222; A no puede tomarlo.
	steal, err := svc.issueAuthCode(ctx, provider.NewIdentity(provider.TG, "222"))
	require.NoError(t, err)
	_, err = svc.BindProvider(ctx, "Bearer "+sessionA.AccessToken, steal.Code)
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.BindConflict))
	ae, _ := errs.As(err)
	assert.Equal(t, 409, ae.Status)
}

func TestUnbindProvider(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")
	session, err := svc.Exchange(ctx, code.Code, "")
	require.NoError(t, err)
	auth := "Bearer " + session.AccessToken

	// Último binding: no se puede soltar.
	_, err = svc.UnbindProvider(ctx, auth, "tg:777000")
	assert.True(t, errs.IsCode(err, errs.UnbindLastProvider))

	xCode, err := svc.issueAuthCode(ctx, provider.NewIdentity(provider.X, "42"))
	require.NoError(t, err)
	_, err = svc.BindProvider(ctx, auth, xCode.Code)
	require.NoError(t, err)

	me, err := svc.UnbindProvider(ctx, auth, "tg:777000")
	require.NoError(t, err)
	require.Len(t, me.Providers, 1)
	assert.Equal(t, "x:42", me.Providers[0].ProviderSub)

	_, err = svc.store.GetWalletSubByProviderSub(ctx, "tg:777000")
	require.Error(t, err)

	// No vinculado → bad request.
	_, err = svc.UnbindProvider(ctx, auth, "tg:999")
	assert.True(t, errs.IsCode(err, errs.BadRequest))
}

func TestSync_GetAndUpsert(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")
	session, err := svc.Exchange(ctx, code.Code, "")
	require.NoError(t, err)
	auth := "Bearer " + session.AccessToken

	initial, err := svc.GetSync(ctx, auth)
	require.NoError(t, err)
	assert.Empty(t, initial.Favorites.Items)

	merged, err := svc.UpsertSync(ctx, auth, SyncInput{
		Favorites: []identity.FavoriteItem{{URL: "https://app.uniswap.org", Name: "Uniswap", UpdatedAt: 1000}},
		History:   []identity.HistoryItem{{URL: "https://aave.com", Title: "Aave", UpdatedAt: 2000}},
	})
	require.NoError(t, err)
	require.Len(t, merged.Favorites.Items, 1)
	require.Len(t, merged.History.Items, 1)

	again, err := svc.GetSync(ctx, auth)
	require.NoError(t, err)
	assert.Equal(t, merged.Favorites, again.Favorites)
	assert.Equal(t, merged.History, again.History)
}

func TestSync_Disabled(t *testing.T) {
	cfg := testAuthConfig()
	cfg.SyncEnabled = false
	svc := newTestService(t, cfg)
	_, err := svc.GetSync(context.Background(), "Bearer x")
	assert.True(t, errs.IsCode(err, errs.FeatureDisabled))
}

func TestCallbackRedirectURL(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	out, err := svc.CallbackRedirectURL("statusmvp://auth/done?src=cb", AuthCodeResult{
		Provider:       "x",
		ProviderUserID: "42",
		ProviderSub:    "x:42",
		Code:           "code-1",
	})
	require.NoError(t, err)

	u, err := url.Parse(out)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "cb", q.Get("src"))
	assert.Equal(t, "x", q.Get("provider"))
	assert.Equal(t, "x:42", q.Get("providerSub"))
	assert.Equal(t, "code-1", q.Get("authCode"))
}

func TestIsAllowedRedirect(t *testing.T) {
	prefixes := []string{"statusmvp://", "https://app.statusmvp.io/"}

	assert.True(t, isAllowedRedirect("statusmvp://auth/done", prefixes))
	assert.True(t, isAllowedRedirect("https://app.statusmvp.io/cb", prefixes))
	assert.False(t, isAllowedRedirect("https://evil.example/", prefixes))
	assert.False(t, isAllowedRedirect("no-scheme-path", prefixes))
	assert.False(t, isAllowedRedirect("", prefixes))
	assert.False(t, isAllowedRedirect("statusmvp://auth", nil))
}

func TestRandomHelpers(t *testing.T) {
	a := randomBase64URL(24)
	b := randomBase64URL(24)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 32, len(a), "24 bytes → 32 chars base64url sin padding")

	// Pisos mínimos.
	assert.GreaterOrEqual(t, len(randomBase64URL(4)), 22)

	sub := randomWalletSub()
	assert.True(t, strings.HasPrefix(sub, "wallet_"))
	assert.Equal(t, strings.ToLower(sub), sub)
}

// jtiDownStore delega en memoria salvo el set del jti, que falla como un
// backend caído.
type jtiDownStore struct {
	kv.Store
}

func (s jtiDownStore) SetIfAbsent(ctx context.Context, key string, v []byte, ttl time.Duration) (bool, error) {
	if strings.HasPrefix(key, "auth:jti:") {
		return false, kv.ErrUnavailable
	}
	return s.Store.SetIfAbsent(ctx, key, v, ttl)
}

func TestExchange_JTIStoreDownIs500(t *testing.T) {
	cfg := testAuthConfig()
	store := identity.NewStore(jtiDownStore{Store: memory.New()})
	tokens, err := token.New(cfg)
	require.NoError(t, err)
	gate := risk.New(memory.New(), cfg.Risk, nil)
	svc := New(cfg, store, x.New(cfg.X, nil), telegram.New(cfg.TG), gate, tokens, nil)

	code := loginTelegram(t, svc, "909090")
	_, err = svc.Exchange(context.Background(), code.Code, "nonce-1")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.InternalError))
}

func TestUpsertSync_NegativeTimestampsRejected(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")
	session, err := svc.Exchange(ctx, code.Code, "")
	require.NoError(t, err)
	auth := "Bearer " + session.AccessToken

	bad := int64(-5)
	_, err = svc.UpsertSync(ctx, auth, SyncInput{FavoritesUpdatedAt: &bad})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.SyncPayloadInvalid))

	_, err = svc.UpsertSync(ctx, auth, SyncInput{
		History: []identity.HistoryItem{{URL: "https://aave.com", UpdatedAt: -1}},
	})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.SyncPayloadInvalid))

	// The rejected deltas left no trace.
	state, err := svc.GetSync(ctx, auth)
	require.NoError(t, err)
	assert.Empty(t, state.History.Items)
}

func TestUnbindProvider_MalformedProviderSub(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")
	session, err := svc.Exchange(ctx, code.Code, "")
	require.NoError(t, err)
	auth := "Bearer " + session.AccessToken

	_, err = svc.UnbindProvider(ctx, auth, "no-colon")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.BadRequest))

	_, err = svc.UnbindProvider(ctx, auth, "facebook:123")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.BadRequest))
}

func TestRefresh_LinksReplacedRecord(t *testing.T) {
	svc := newTestService(t, testAuthConfig())
	ctx := context.Background()
	code := loginTelegram(t, svc, "777000")
	session, err := svc.Exchange(ctx, code.Code, "")
	require.NoError(t, err)

	oldRec, err := svc.store.GetRefreshTokenByHash(ctx, svc.tokens.SHA256Hex(session.RefreshToken))
	require.NoError(t, err)
	assert.Empty(t, oldRec.ReplacesID)

	rotated, err := svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)

	newRec, err := svc.store.GetRefreshTokenByHash(ctx, svc.tokens.SHA256Hex(rotated.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, oldRec.ID, newRec.ReplacesID)
}
