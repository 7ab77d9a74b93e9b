package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statusmvp/wallet-auth/internal/config"
	"github.com/statusmvp/wallet-auth/internal/errs"
	"github.com/statusmvp/wallet-auth/internal/provider"
)

const testBotToken = "12345:ABC-DEF_test-bot-token"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v := New(config.TGConfig{
		BotToken:   testBotToken,
		AuthMaxAge: config.Duration(600 * time.Second),
	})
	v.now = func() time.Time { return testNow }
	return v
}

// signLogin computes the widget hash independently of the implementation.
func signLogin(t *testing.T, fields map[string]string) string {
	t.Helper()
	pairs := make([]string, 0, len(fields))
	for k, v := range fields {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(pairs)
	secret := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func freshAuthDate() string {
	return fmt.Sprintf("%d", testNow.Unix()-30)
}

func TestVerifyLogin_AllFields(t *testing.T) {
	v := newTestVerifier(t)
	authDate := freshAuthDate()
	hash := signLogin(t, map[string]string{
		"auth_date":  authDate,
		"id":         "777000",
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"username":   "ada",
		"photo_url":  "https://t.me/i/userpic/ada.jpg",
	})

	id, err := v.VerifyLogin(Login{
		ID:        "777000",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada",
		PhotoURL:  "https://t.me/i/userpic/ada.jpg",
		AuthDate:  authDate,
		Hash:      hash,
	})
	require.NoError(t, err)
	assert.Equal(t, provider.TG, id.Provider)
	assert.Equal(t, "777000", id.UserID)
	assert.Equal(t, "tg:777000", id.Sub)
}

func TestVerifyLogin_BlankOptionalFieldsExcluded(t *testing.T) {
	v := newTestVerifier(t)
	authDate := freshAuthDate()
	// Widget omits blank fields from the signed string.
	hash := signLogin(t, map[string]string{
		"auth_date": authDate,
		"id":        "777000",
		"username":  "ada",
	})

	id, err := v.VerifyLogin(Login{
		ID:       "777000",
		Username: "ada",
		AuthDate: authDate,
		Hash:     hash,
	})
	require.NoError(t, err)
	assert.Equal(t, "777000", id.UserID)
}

func TestVerifyLogin_TamperedHash(t *testing.T) {
	v := newTestVerifier(t)
	authDate := freshAuthDate()
	hash := signLogin(t, map[string]string{
		"auth_date": authDate,
		"id":        "777000",
	})
	// Flip one hex digit.
	flipped := "0"
	if hash[0] == '0' {
		flipped = "1"
	}
	tampered := flipped + hash[1:]

	_, err := v.VerifyLogin(Login{ID: "777000", AuthDate: authDate, Hash: tampered})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.TelegramVerifyFailed))
	ae, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, 401, ae.Status)
}

func TestVerifyLogin_TamperedField(t *testing.T) {
	v := newTestVerifier(t)
	authDate := freshAuthDate()
	hash := signLogin(t, map[string]string{
		"auth_date": authDate,
		"id":        "777000",
	})

	_, err := v.VerifyLogin(Login{ID: "999999", AuthDate: authDate, Hash: hash})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.TelegramVerifyFailed))
}

func TestVerifyLogin_Expired(t *testing.T) {
	v := newTestVerifier(t)
	stale := fmt.Sprintf("%d", testNow.Unix()-700)
	hash := signLogin(t, map[string]string{
		"auth_date": stale,
		"id":        "777000",
	})

	_, err := v.VerifyLogin(Login{ID: "777000", AuthDate: stale, Hash: hash})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.TelegramVerifyFailed))
	ae, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, 401, ae.Status)
}

func TestVerifyLogin_FutureWithinWindow(t *testing.T) {
	v := newTestVerifier(t)
	future := fmt.Sprintf("%d", testNow.Unix()+120)
	hash := signLogin(t, map[string]string{
		"auth_date": future,
		"id":        "777000",
	})

	_, err := v.VerifyLogin(Login{ID: "777000", AuthDate: future, Hash: hash})
	require.NoError(t, err)
}

func TestVerifyLogin_BadAuthDate(t *testing.T) {
	v := newTestVerifier(t)
	_, err := v.VerifyLogin(Login{ID: "777000", AuthDate: "not-a-number", Hash: "deadbeef"})
	require.Error(t, err)
	ae, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.TelegramVerifyFailed, ae.Code)
	assert.Equal(t, 400, ae.Status)
}

func TestVerifyLogin_NoBotToken(t *testing.T) {
	v := New(config.TGConfig{AuthMaxAge: config.Duration(600 * time.Second)})
	_, err := v.VerifyLogin(Login{ID: "777000", AuthDate: freshAuthDate(), Hash: "deadbeef"})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ProviderUnavailable))
}
