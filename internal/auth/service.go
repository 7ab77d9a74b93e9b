// Package auth orchestrates the federated login protocol: OAuth state
// issuance, provider verification, one-time auth codes, wallet session
// minting and refresh rotation, provider bind/unbind and dApp profile sync.
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/statusmvp/wallet-auth/internal/config"
	"github.com/statusmvp/wallet-auth/internal/dappsync"
	"github.com/statusmvp/wallet-auth/internal/errs"
	"github.com/statusmvp/wallet-auth/internal/identity"
	"github.com/statusmvp/wallet-auth/internal/kv"
	"github.com/statusmvp/wallet-auth/internal/metrics"
	"github.com/statusmvp/wallet-auth/internal/observability/logger"
	"github.com/statusmvp/wallet-auth/internal/provider"
	"github.com/statusmvp/wallet-auth/internal/provider/telegram"
	"github.com/statusmvp/wallet-auth/internal/provider/x"
	"github.com/statusmvp/wallet-auth/internal/risk"
	"github.com/statusmvp/wallet-auth/internal/token"
)

// Service implements the protocol operations over the identity store.
type Service struct {
	cfg     config.AuthConfig
	store   *identity.Store
	x       *x.Client
	tg      *telegram.Verifier
	risk    *risk.Gate
	tokens  *token.Service
	merger  *dappsync.Merger
	metrics *metrics.Recorder

	// now retorna unix millis; inyectable en tests.
	now func() int64
}

// New wires the orchestrator. The metrics recorder may be nil.
func New(
	cfg config.AuthConfig,
	store *identity.Store,
	xClient *x.Client,
	tgVerifier *telegram.Verifier,
	gate *risk.Gate,
	tokens *token.Service,
	rec *metrics.Recorder,
) *Service {
	return &Service{
		cfg:     cfg,
		store:   store,
		x:       xClient,
		tg:      tgVerifier,
		risk:    gate,
		tokens:  tokens,
		merger:  dappsync.New(),
		metrics: rec,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// StartXLogin mints an OAuth state + PKCE verifier pair and returns the
// provider authorize URL. The verifier never leaves the server.
func (s *Service) StartXLogin(ctx context.Context, appRedirectURI string) (StartXResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return StartXResult{}, err
	}
	if err := s.ensureXReady(); err != nil {
		return StartXResult{}, err
	}
	if err := s.validateAppRedirect(appRedirectURI); err != nil {
		return StartXResult{}, err
	}

	state := randomBase64URL(24)
	codeVerifier := randomBase64URL(48)
	codeChallenge := sha256Base64URL(codeVerifier)
	now := s.now()
	rec := identity.OAuthStateRecord{
		State:          state,
		Provider:       provider.X.Code(),
		CodeVerifier:   codeVerifier,
		AppRedirectURI: strings.TrimSpace(appRedirectURI),
		CreatedAt:      now,
		ExpiresAt:      now + s.cfg.OAuthStateTTL.Seconds()*1000,
	}
	if err := s.store.PutOAuthState(ctx, rec, s.cfg.OAuthStateTTL.Std()); err != nil {
		return StartXResult{}, s.storeErr(ctx, "put oauth state", err)
	}
	return StartXResult{
		AuthorizeURL: s.x.AuthorizeURL(state, codeChallenge),
		State:        state,
		ExpiresIn:    s.cfg.OAuthStateTTL.Seconds(),
	}, nil
}

// HandleXCallback consumes the state, finishes the PKCE exchange and mints a
// one-time auth code for the verified X identity.
func (s *Service) HandleXCallback(ctx context.Context, code, state, oauthErr, oauthErrDesc, ip, deviceID string) (XCallbackResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return XCallbackResult{}, err
	}
	if err := s.ensureXReady(); err != nil {
		return XCallbackResult{}, err
	}
	if err := s.risk.CheckIPAllowed(ip); err != nil {
		return XCallbackResult{}, err
	}
	if err := s.risk.CheckLoginRateLimits(ctx, ip, deviceID); err != nil {
		return XCallbackResult{}, err
	}

	stateRec, err := s.store.ConsumeOAuthState(ctx, state)
	if err != nil {
		if kv.IsNotFound(err) {
			return XCallbackResult{}, errs.New(errs.OAuthStateInvalid, "oauth state invalid", http.StatusUnauthorized)
		}
		return XCallbackResult{}, s.storeErr(ctx, "consume oauth state", err)
	}
	if stateRec.ExpiresAt < s.now() {
		return XCallbackResult{}, errs.New(errs.OAuthStateExpired, "oauth state expired", http.StatusUnauthorized)
	}
	if strings.TrimSpace(oauthErr) != "" {
		s.metrics.LoginFailure("x", "oauth_error")
		msg := oauthErrDesc
		if strings.TrimSpace(msg) == "" {
			msg = oauthErr
		}
		return XCallbackResult{}, errs.New(errs.OAuthExchangeFailed, "x oauth failed: "+msg, http.StatusUnauthorized)
	}
	if strings.TrimSpace(code) == "" {
		s.metrics.LoginFailure("x", "missing_code")
		return XCallbackResult{}, errs.New(errs.OAuthExchangeFailed, "x oauth code missing", http.StatusBadRequest)
	}

	id, err := s.x.VerifyCode(ctx, code, stateRec.CodeVerifier)
	if err != nil {
		s.metrics.LoginFailure("x", "exchange_failed")
		return XCallbackResult{}, err
	}
	if err := s.risk.CheckProviderAllowed(id.Sub); err != nil {
		return XCallbackResult{}, err
	}

	authCode, err := s.issueAuthCode(ctx, id)
	if err != nil {
		return XCallbackResult{}, err
	}
	s.metrics.LoginSuccess("x")
	logger.From(ctx).Info("x login verified", logger.ProviderSub(id.Sub))
	return XCallbackResult{AuthCode: authCode, AppRedirectURI: stateRec.AppRedirectURI}, nil
}

// TelegramLogin verifies a widget payload and mints a one-time auth code.
func (s *Service) TelegramLogin(ctx context.Context, in TelegramLoginInput, ip, deviceID string) (AuthCodeResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return AuthCodeResult{}, err
	}
	if !s.cfg.TGEnabled {
		return AuthCodeResult{}, errs.New(errs.FeatureDisabled, "telegram login disabled", http.StatusForbidden)
	}
	if err := s.risk.CheckIPAllowed(ip); err != nil {
		return AuthCodeResult{}, err
	}
	if err := s.risk.CheckLoginRateLimits(ctx, ip, deviceID); err != nil {
		return AuthCodeResult{}, err
	}
	if err := s.validateAppRedirect(in.AppRedirectURI); err != nil {
		return AuthCodeResult{}, err
	}

	id, err := s.tg.VerifyLogin(telegram.Login{
		ID:        in.ID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Username:  in.Username,
		PhotoURL:  in.PhotoURL,
		AuthDate:  in.AuthDate,
		Hash:      in.Hash,
	})
	if err != nil {
		s.metrics.LoginFailure("tg", "verify_failed")
		return AuthCodeResult{}, err
	}
	if err := s.risk.CheckProviderAllowed(id.Sub); err != nil {
		return AuthCodeResult{}, err
	}

	authCode, err := s.issueAuthCode(ctx, id)
	if err != nil {
		return AuthCodeResult{}, err
	}
	s.metrics.LoginSuccess("tg")
	logger.From(ctx).Info("telegram login verified", logger.ProviderSub(id.Sub))
	return authCode, nil
}

// Exchange consumes a one-time code and mints the session bundle: the RS256
// provider assertion, the HS256 access token and a fresh refresh token.
func (s *Service) Exchange(ctx context.Context, code, nonce string) (ExchangeResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return ExchangeResult{}, err
	}
	codeRec, err := s.consumeValidAuthCode(ctx, code)
	if err != nil {
		return ExchangeResult{}, err
	}
	walletSub, err := s.resolveOrCreateWallet(ctx, codeRec)
	if err != nil {
		return ExchangeResult{}, err
	}

	assertion, jti, err := s.tokens.IssueProviderAssertion(codeRec.ProviderSub, nonce, s.cfg.AssertionTTL.Std())
	if err != nil {
		return ExchangeResult{}, s.internalErr(ctx, "issue provider assertion", err)
	}
	fresh, err := s.store.RememberJTI(ctx, jti, s.cfg.AssertionTTL.Std())
	if err != nil {
		return ExchangeResult{}, s.storeErr(ctx, "remember assertion jti", err)
	}
	if !fresh {
		return ExchangeResult{}, s.internalErr(ctx, "assertion jti collision", nil)
	}
	accessToken, err := s.tokens.IssueAccessToken(walletSub, s.cfg.AccessTokenTTL.Std())
	if err != nil {
		return ExchangeResult{}, s.internalErr(ctx, "issue access token", err)
	}

	refreshToken := randomBase64URL(48)
	now := s.now()
	refreshRec := identity.RefreshTokenRecord{
		ID:        uuid.NewString(),
		WalletSub: walletSub,
		TokenHash: s.tokens.SHA256Hex(refreshToken),
		CreatedAt: now,
		ExpiresAt: now + s.cfg.RefreshTokenTTL.Seconds()*1000,
	}
	if err := s.store.PutRefreshToken(ctx, refreshRec, s.cfg.RefreshTokenTTL.Std()); err != nil {
		return ExchangeResult{}, s.storeErr(ctx, "put refresh token", err)
	}

	return ExchangeResult{
		WalletSub:             walletSub,
		Provider:              codeRec.Provider,
		ProviderUserID:        codeRec.ProviderUserID,
		ProviderSub:           codeRec.ProviderSub,
		Web3AuthJWT:           assertion,
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresIn:  s.cfg.AccessTokenTTL.Seconds(),
		RefreshTokenExpiresIn: s.cfg.RefreshTokenTTL.Seconds(),
	}, nil
}

// Refresh rotates a refresh token: the new record lands before the old one is
// deleted, so a crash between the two writes can never strand the session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return RefreshResult{}, err
	}
	tokenHash := s.tokens.SHA256Hex(refreshToken)
	rec, err := s.store.GetRefreshTokenByHash(ctx, tokenHash)
	if err != nil {
		if kv.IsNotFound(err) {
			return RefreshResult{}, errs.New(errs.RefreshTokenInvalid, "invalid refresh token", http.StatusUnauthorized)
		}
		return RefreshResult{}, s.storeErr(ctx, "get refresh token", err)
	}
	if rec.RevokedAt != nil || rec.ExpiresAt < s.now() {
		_ = s.store.ConsumeRefreshTokenByHash(ctx, rec.TokenHash)
		return RefreshResult{}, errs.New(errs.RefreshTokenInvalid, "refresh token expired", http.StatusUnauthorized)
	}

	accessToken, err := s.tokens.IssueAccessToken(rec.WalletSub, s.cfg.AccessTokenTTL.Std())
	if err != nil {
		return RefreshResult{}, s.internalErr(ctx, "issue access token", err)
	}
	newToken := randomBase64URL(48)
	now := s.now()
	next := identity.RefreshTokenRecord{
		ID:         uuid.NewString(),
		WalletSub:  rec.WalletSub,
		TokenHash:  s.tokens.SHA256Hex(newToken),
		CreatedAt:  now,
		ExpiresAt:  now + s.cfg.RefreshTokenTTL.Seconds()*1000,
		ReplacesID: rec.ID,
	}
	if err := s.store.PutRefreshToken(ctx, next, s.cfg.RefreshTokenTTL.Std()); err != nil {
		return RefreshResult{}, s.storeErr(ctx, "put refresh token", err)
	}
	if err := s.store.ConsumeRefreshTokenByHash(ctx, tokenHash); err != nil {
		logger.From(ctx).Warn("stale refresh token not deleted", logger.Err(err))
	}
	return RefreshResult{
		AccessToken:           accessToken,
		RefreshToken:          newToken,
		AccessTokenExpiresIn:  s.cfg.AccessTokenTTL.Seconds(),
		RefreshTokenExpiresIn: s.cfg.RefreshTokenTTL.Seconds(),
	}, nil
}

// Me resolves the caller's wallet and its bindings, oldest binding first.
func (s *Service) Me(ctx context.Context, authorization string) (MeResult, error) {
	walletSub, err := s.requireWalletSub(authorization)
	if err != nil {
		return MeResult{}, err
	}
	profile, err := s.getOrCreateWallet(ctx, walletSub)
	if err != nil {
		return MeResult{}, err
	}
	return meFromProfile(profile), nil
}

// BindProvider links an additional federated identity to the caller's wallet.
// A provider already owned by another wallet is a conflict.
func (s *Service) BindProvider(ctx context.Context, authorization, authCode string) (MeResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return MeResult{}, err
	}
	if !s.cfg.BindEnabled {
		return MeResult{}, errs.New(errs.FeatureDisabled, "provider bind disabled", http.StatusForbidden)
	}
	walletSub, err := s.requireWalletSub(authorization)
	if err != nil {
		return MeResult{}, err
	}
	if err := s.risk.CheckBindRateLimit(ctx, walletSub); err != nil {
		return MeResult{}, err
	}

	codeRec, err := s.consumeValidAuthCode(ctx, authCode)
	if err != nil {
		return MeResult{}, err
	}
	providerSub := codeRec.ProviderSub

	owner, err := s.store.GetWalletSubByProviderSub(ctx, providerSub)
	if err != nil && !kv.IsNotFound(err) {
		return MeResult{}, s.storeErr(ctx, "resolve provider owner", err)
	}
	if owner != "" && owner != walletSub {
		s.metrics.BindFailure("conflict")
		return MeResult{}, errs.New(errs.BindConflict, "provider already bound by another account", http.StatusConflict)
	}

	profile, err := s.getOrCreateWallet(ctx, walletSub)
	if err != nil {
		return MeResult{}, err
	}
	if _, bound := profile.Providers[providerSub]; !bound {
		profile.Providers[providerSub] = identity.ProviderBinding{
			Provider:       codeRec.Provider,
			ProviderUserID: codeRec.ProviderUserID,
			ProviderSub:    providerSub,
			AddedAt:        s.now(),
		}
		if err := s.store.PutWalletProfile(ctx, profile); err != nil {
			return MeResult{}, s.storeErr(ctx, "put wallet profile", err)
		}
	}
	if err := s.store.BindProviderSubForce(ctx, providerSub, walletSub); err != nil {
		return MeResult{}, s.storeErr(ctx, "bind provider sub", err)
	}
	s.metrics.BindSuccess()
	return meFromProfile(profile), nil
}

// UnbindProvider removes a binding; the last one can never be removed or the
// wallet would become unreachable.
func (s *Service) UnbindProvider(ctx context.Context, authorization, providerSub string) (MeResult, error) {
	if err := s.ensureEnabled(); err != nil {
		return MeResult{}, err
	}
	if !s.cfg.BindEnabled {
		return MeResult{}, errs.New(errs.FeatureDisabled, "provider bind disabled", http.StatusForbidden)
	}
	walletSub, err := s.requireWalletSub(authorization)
	if err != nil {
		return MeResult{}, err
	}
	profile, err := s.getOrCreateWallet(ctx, walletSub)
	if err != nil {
		return MeResult{}, err
	}

	providerSub = strings.TrimSpace(providerSub)
	code, _, found := strings.Cut(providerSub, ":")
	if !found {
		return MeResult{}, errs.New(errs.BadRequest, "malformed providerSub", http.StatusBadRequest)
	}
	if _, err := provider.FromCode(code); err != nil {
		return MeResult{}, errs.New(errs.BadRequest, "unknown provider", http.StatusBadRequest)
	}
	if _, bound := profile.Providers[providerSub]; !bound {
		return MeResult{}, errs.New(errs.BadRequest, "provider not bound", http.StatusBadRequest)
	}
	if len(profile.Providers) <= 1 {
		s.metrics.UnbindFailure("last_provider")
		return MeResult{}, errs.New(errs.UnbindLastProvider, "cannot unbind last provider", http.StatusBadRequest)
	}

	delete(profile.Providers, providerSub)
	if err := s.store.PutWalletProfile(ctx, profile); err != nil {
		return MeResult{}, s.storeErr(ctx, "put wallet profile", err)
	}
	if err := s.store.UnbindProviderSub(ctx, providerSub); err != nil {
		return MeResult{}, s.storeErr(ctx, "unbind provider sub", err)
	}
	s.metrics.UnbindSuccess()
	return meFromProfile(profile), nil
}

// GetSync returns the caller's merged favorites and history.
func (s *Service) GetSync(ctx context.Context, authorization string) (SyncPayload, error) {
	if err := s.ensureSyncEnabled(); err != nil {
		return SyncPayload{}, err
	}
	walletSub, err := s.requireWalletSub(authorization)
	if err != nil {
		return SyncPayload{}, err
	}
	profile, err := s.getOrCreateWallet(ctx, walletSub)
	if err != nil {
		return SyncPayload{}, err
	}
	return SyncPayload{Favorites: profile.Favorites, History: profile.History}, nil
}

// UpsertSync folds the client delta into the stored collections with LWW
// semantics and returns the merged state.
func (s *Service) UpsertSync(ctx context.Context, authorization string, in SyncInput) (SyncPayload, error) {
	if err := s.ensureSyncEnabled(); err != nil {
		return SyncPayload{}, err
	}
	walletSub, err := s.requireWalletSub(authorization)
	if err != nil {
		return SyncPayload{}, err
	}
	if err := validateSyncInput(in); err != nil {
		s.metrics.SyncError(string(errs.SyncPayloadInvalid))
		return SyncPayload{}, err
	}
	profile, err := s.getOrCreateWallet(ctx, walletSub)
	if err != nil {
		s.metrics.SyncError(string(errs.InternalError))
		return SyncPayload{}, err
	}

	profile.Favorites = s.merger.MergeFavorites(profile.Favorites, in.Favorites, in.FavoritesUpdatedAt)
	profile.History = s.merger.MergeHistory(profile.History, in.History, in.HistoryUpdatedAt)
	if err := s.store.PutWalletProfile(ctx, profile); err != nil {
		s.metrics.SyncError(string(errs.InternalError))
		return SyncPayload{}, s.storeErr(ctx, "put wallet profile", err)
	}
	return SyncPayload{Favorites: profile.Favorites, History: profile.History}, nil
}

// validateSyncInput rejects deltas with negative timestamps; merge semantics
// are only defined over unix millis >= 0.
func validateSyncInput(in SyncInput) error {
	invalid := errs.New(errs.SyncPayloadInvalid, "sync payload invalid", http.StatusBadRequest)
	if in.FavoritesUpdatedAt != nil && *in.FavoritesUpdatedAt < 0 {
		return invalid
	}
	if in.HistoryUpdatedAt != nil && *in.HistoryUpdatedAt < 0 {
		return invalid
	}
	for _, f := range in.Favorites {
		if f.UpdatedAt < 0 || (f.DeletedAt != nil && *f.DeletedAt < 0) {
			return invalid
		}
	}
	for _, h := range in.History {
		if h.UpdatedAt < 0 || h.VisitedAt < 0 || (h.DeletedAt != nil && *h.DeletedAt < 0) {
			return invalid
		}
	}
	return nil
}

// JWKS publishes the assertion verification key set.
func (s *Service) JWKS() token.JWKS {
	return s.tokens.PublicJWKS()
}

// CallbackRedirectURL appends the auth code parameters to the app redirect
// target, preserving any query it already carries.
func (s *Service) CallbackRedirectURL(appRedirectURI string, r AuthCodeResult) (string, error) {
	u, err := url.Parse(appRedirectURI)
	if err != nil {
		return "", errs.New(errs.BadRequest, "appRedirectUri not parseable", http.StatusBadRequest)
	}
	q := u.Query()
	q.Set("provider", r.Provider)
	q.Set("providerUserId", r.ProviderUserID)
	q.Set("providerSub", r.ProviderSub)
	q.Set("authCode", r.Code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// issueAuthCode mints and stores a one-time code for a verified identity.
func (s *Service) issueAuthCode(ctx context.Context, id provider.Identity) (AuthCodeResult, error) {
	now := s.now()
	rec := identity.AuthCodeRecord{
		Code:           randomBase64URL(24),
		Provider:       id.Provider.Code(),
		ProviderUserID: id.UserID,
		ProviderSub:    id.Sub,
		CreatedAt:      now,
		ExpiresAt:      now + s.cfg.OneTimeCodeTTL.Seconds()*1000,
	}
	if err := s.store.PutAuthCode(ctx, rec, s.cfg.OneTimeCodeTTL.Std()); err != nil {
		return AuthCodeResult{}, s.storeErr(ctx, "put auth code", err)
	}
	return AuthCodeResult{
		Provider:       rec.Provider,
		ProviderUserID: rec.ProviderUserID,
		ProviderSub:    rec.ProviderSub,
		Code:           rec.Code,
		ExpiresIn:      s.cfg.OneTimeCodeTTL.Seconds(),
	}, nil
}

// consumeValidAuthCode enforces single use: the used marker is claimed
// atomically before any validity check, so two racing exchanges can never
// both succeed.
func (s *Service) consumeValidAuthCode(ctx context.Context, code string) (*identity.AuthCodeRecord, error) {
	now := s.now()
	rec, err := s.store.GetAuthCode(ctx, code)
	if err != nil {
		if kv.IsNotFound(err) {
			return nil, errs.New(errs.AuthCodeInvalid, "invalid auth code", http.StatusUnauthorized)
		}
		return nil, s.storeErr(ctx, "get auth code", err)
	}

	remaining := time.Duration(rec.ExpiresAt-now) * time.Millisecond
	if remaining < time.Second {
		remaining = time.Second
	}
	first, err := s.store.MarkAuthCodeUsedOnce(ctx, rec.Code, remaining)
	if err != nil {
		return nil, s.storeErr(ctx, "mark auth code used", err)
	}
	if !first {
		return nil, errs.New(errs.AuthCodeUsed, "auth code already used", http.StatusUnauthorized)
	}
	if rec.UsedAt != nil {
		return nil, errs.New(errs.AuthCodeUsed, "auth code already used", http.StatusUnauthorized)
	}
	if rec.ExpiresAt < now {
		return nil, errs.New(errs.AuthCodeExpired, "auth code expired", http.StatusUnauthorized)
	}

	rec.UsedAt = &now
	if err := s.store.UpdateAuthCode(ctx, *rec); err != nil {
		return nil, s.storeErr(ctx, "update auth code", err)
	}
	return rec, nil
}

// resolveOrCreateWallet maps a provider identity to its wallet, minting a new
// wallet sub on first login. Concurrent first logins race on SetIfAbsent and
// the loser adopts the winner's wallet.
func (s *Service) resolveOrCreateWallet(ctx context.Context, codeRec *identity.AuthCodeRecord) (string, error) {
	providerSub := codeRec.ProviderSub
	walletSub, err := s.store.GetWalletSubByProviderSub(ctx, providerSub)
	if err != nil && !kv.IsNotFound(err) {
		return "", s.storeErr(ctx, "resolve wallet", err)
	}
	if walletSub == "" {
		proposed := randomWalletSub()
		won, err := s.store.BindProviderSubIfAbsent(ctx, providerSub, proposed)
		if err != nil {
			return "", s.storeErr(ctx, "bind provider sub", err)
		}
		if won {
			walletSub = proposed
		} else {
			walletSub, err = s.store.GetWalletSubByProviderSub(ctx, providerSub)
			if err != nil || walletSub == "" {
				walletSub = proposed
			}
		}
	}

	profile, err := s.getOrCreateWallet(ctx, walletSub)
	if err != nil {
		return "", err
	}
	if _, bound := profile.Providers[providerSub]; !bound {
		profile.Providers[providerSub] = identity.ProviderBinding{
			Provider:       codeRec.Provider,
			ProviderUserID: codeRec.ProviderUserID,
			ProviderSub:    providerSub,
			AddedAt:        s.now(),
		}
		if err := s.store.PutWalletProfile(ctx, profile); err != nil {
			return "", s.storeErr(ctx, "put wallet profile", err)
		}
		if err := s.store.BindProviderSubForce(ctx, providerSub, walletSub); err != nil {
			return "", s.storeErr(ctx, "bind provider sub", err)
		}
	} else if _, err := s.store.GetWalletSubByProviderSub(ctx, providerSub); kv.IsNotFound(err) {
		// Mapping repair: the profile knows the binding but the index entry
		// was lost.
		if err := s.store.BindProviderSubForce(ctx, providerSub, walletSub); err != nil {
			return "", s.storeErr(ctx, "bind provider sub", err)
		}
	}
	return walletSub, nil
}

func (s *Service) getOrCreateWallet(ctx context.Context, walletSub string) (*identity.WalletProfile, error) {
	profile, err := s.store.GetWalletProfile(ctx, walletSub)
	if err == nil {
		return profile, nil
	}
	if !kv.IsNotFound(err) {
		return nil, s.storeErr(ctx, "get wallet profile", err)
	}
	return identity.NewWalletProfile(walletSub, s.now()), nil
}

func (s *Service) requireWalletSub(authorization string) (string, error) {
	raw, err := extractBearerToken(authorization)
	if err != nil {
		return "", err
	}
	claims, err := s.tokens.VerifyAccessToken(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return "", errs.New(errs.AccessTokenExpired, "access token expired", http.StatusUnauthorized)
		}
		return "", errs.New(errs.AccessTokenInvalid, "access token invalid", http.StatusUnauthorized)
	}
	return claims.WalletSub, nil
}

func extractBearerToken(authorization string) (string, error) {
	value := strings.TrimSpace(authorization)
	if value == "" {
		return "", errs.New(errs.Unauthorized, "missing authorization header", http.StatusUnauthorized)
	}
	if len(value) < 7 || !strings.EqualFold(value[:7], "bearer ") {
		return "", errs.New(errs.Unauthorized, "invalid authorization type", http.StatusUnauthorized)
	}
	tok := strings.TrimSpace(value[7:])
	if tok == "" {
		return "", errs.New(errs.Unauthorized, "missing access token", http.StatusUnauthorized)
	}
	return tok, nil
}

func meFromProfile(p *identity.WalletProfile) MeResult {
	providers := make([]identity.ProviderBinding, 0, len(p.Providers))
	for _, b := range p.Providers {
		providers = append(providers, b)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].AddedAt < providers[j].AddedAt })
	return MeResult{WalletSub: p.WalletSub, Providers: providers}
}

func (s *Service) validateAppRedirect(appRedirectURI string) error {
	if strings.TrimSpace(appRedirectURI) == "" {
		return nil
	}
	if !isAllowedRedirect(appRedirectURI, s.cfg.AppRedirectAllowlist) {
		return errs.New(errs.BadRequest, "appRedirectUri not allowed", http.StatusBadRequest)
	}
	return nil
}

func (s *Service) ensureEnabled() error {
	if !s.cfg.Enabled {
		return errs.New(errs.FeatureDisabled, "auth feature disabled", http.StatusForbidden)
	}
	return nil
}

func (s *Service) ensureXReady() error {
	if !s.cfg.XEnabled {
		return errs.New(errs.FeatureDisabled, "x login disabled", http.StatusForbidden)
	}
	if !s.cfg.X.Configured() {
		return errs.New(errs.ProviderUnavailable, "x oauth not configured", http.StatusServiceUnavailable)
	}
	return nil
}

func (s *Service) ensureSyncEnabled() error {
	if err := s.ensureEnabled(); err != nil {
		return err
	}
	if !s.cfg.SyncEnabled {
		return errs.New(errs.FeatureDisabled, "profile sync disabled", http.StatusForbidden)
	}
	return nil
}

func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	logger.From(ctx).Error("store operation failed", logger.Op(op), logger.Err(err))
	return errs.New(errs.InternalError, "storage unavailable", http.StatusInternalServerError)
}

func (s *Service) internalErr(ctx context.Context, op string, err error) error {
	logger.From(ctx).Error("auth operation failed", logger.Op(op), logger.Err(err))
	return errs.New(errs.InternalError, "internal error", http.StatusInternalServerError)
}
