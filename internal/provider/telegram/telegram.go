// Package telegram verifies Telegram Login Widget payloads.
//
// The widget signs the login fields with HMAC-SHA256 keyed by SHA256 of the
// bot token; the check string is the sorted key=value pairs joined by
// newlines. See https://core.telegram.org/widgets/login#checking-authorization.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/statusmvp/wallet-auth/internal/config"
	"github.com/statusmvp/wallet-auth/internal/errs"
	"github.com/statusmvp/wallet-auth/internal/provider"
)

// Login is the payload posted by the Telegram Login Widget.
type Login struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
	PhotoURL  string
	AuthDate  string
	Hash      string
}

// Verifier checks widget payloads against the configured bot token.
type Verifier struct {
	botToken string
	maxAge   time.Duration

	now func() time.Time
}

// New creates a Verifier from config.
func New(cfg config.TGConfig) *Verifier {
	maxAge := cfg.AuthMaxAge.Std()
	if maxAge < time.Second {
		maxAge = time.Second
	}
	return &Verifier{
		botToken: cfg.BotToken,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// VerifyLogin validates the payload signature and freshness and returns the
// verified Telegram identity.
func (v *Verifier) VerifyLogin(login Login) (provider.Identity, error) {
	if strings.TrimSpace(v.botToken) == "" {
		return provider.Identity{}, errs.New(errs.ProviderUnavailable, "telegram bot token not configured", http.StatusServiceUnavailable)
	}

	authDate, err := strconv.ParseInt(login.AuthDate, 10, 64)
	if err != nil {
		return provider.Identity{}, errs.New(errs.TelegramVerifyFailed, "invalid telegram auth_date", http.StatusBadRequest)
	}
	now := v.now().Unix()
	drift := now - authDate
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(v.maxAge/time.Second) {
		return provider.Identity{}, errs.New(errs.TelegramVerifyFailed, "telegram login expired", http.StatusUnauthorized)
	}

	expected := signCheckString(buildCheckString(login), v.botToken)
	if !secureEquals(expected, login.Hash) {
		return provider.Identity{}, errs.New(errs.TelegramVerifyFailed, "telegram hash invalid", http.StatusUnauthorized)
	}
	return provider.NewIdentity(provider.TG, strings.TrimSpace(login.ID)), nil
}

// buildCheckString assembles the canonical data-check string: auth_date and id
// always, optional fields only when non-blank, pairs sorted lexicographically.
func buildCheckString(login Login) string {
	pairs := []string{
		"auth_date=" + login.AuthDate,
		"id=" + login.ID,
	}
	optional := []struct{ key, val string }{
		{"first_name", login.FirstName},
		{"last_name", login.LastName},
		{"username", login.Username},
		{"photo_url", login.PhotoURL},
	}
	for _, f := range optional {
		if strings.TrimSpace(f.val) != "" {
			pairs = append(pairs, f.key+"="+f.val)
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\n")
}

func signCheckString(checkString, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	return hex.EncodeToString(mac.Sum(nil))
}

func secureEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
