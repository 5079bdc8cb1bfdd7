package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:test-bot-token"

// signInitData builds a valid initData string the way Telegram does: pairs
// sorted by key joined with newlines, HMAC keyed by
// HMAC-SHA256("WebAppData", botToken).
func signInitData(t *testing.T, pairs map[string]string) string {
	t.Helper()
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+pairs[k])
	}
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(parts, "\n")))

	parts = append(parts, "hash="+hex.EncodeToString(mac.Sum(nil)))
	return strings.Join(parts, "&")
}

func TestVerifyInitDataRoundTrip(t *testing.T) {
	initData := signInitData(t, map[string]string{
		"auth_date": "1700000000",
		"user":      url.QueryEscape(`{"id":42,"first_name":"Ann"}`),
	})

	data, err := VerifyInitData(initData, testBotToken)
	require.NoError(t, err)

	tgid, err := UserTGID(data)
	require.NoError(t, err)
	assert.Equal(t, int64(42), tgid)
}

func TestVerifyInitDataTamperRejected(t *testing.T) {
	initData := signInitData(t, map[string]string{
		"auth_date": "1700000000",
		"user":      "42",
	})
	tampered := strings.Replace(initData, "user=42", "user=43", 1)

	_, err := VerifyInitData(tampered, testBotToken)
	assert.Error(t, err)
}

func TestVerifyInitDataWrongBotToken(t *testing.T) {
	initData := signInitData(t, map[string]string{"auth_date": "1700000000", "user": "42"})
	_, err := VerifyInitData(initData, "999999:other-token")
	assert.Error(t, err)
}

func TestVerifyInitDataMissingHash(t *testing.T) {
	_, err := VerifyInitData("user=42&auth_date=1", testBotToken)
	assert.Error(t, err)
}

func TestUserTGIDBareNumber(t *testing.T) {
	tgid, err := UserTGID(map[string]string{"user": "777"})
	require.NoError(t, err)
	assert.Equal(t, int64(777), tgid)
}

func TestUserTGIDMissing(t *testing.T) {
	_, err := UserTGID(map[string]string{})
	assert.Error(t, err)

	_, err = UserTGID(map[string]string{"user": "not-json"})
	assert.Error(t, err)
}

func TestReferrerFromStartParam(t *testing.T) {
	assert.Equal(t, int64(100), ReferrerFromStartParam(map[string]string{"start_param": "ref_100"}))
	assert.Equal(t, int64(100), ReferrerFromStartParam(map[string]string{"start_param": "100"}))
	assert.Equal(t, int64(0), ReferrerFromStartParam(map[string]string{"start_param": "ref_abc"}))
	assert.Equal(t, int64(0), ReferrerFromStartParam(map[string]string{"start_param": "ref_-5"}))
	assert.Equal(t, int64(0), ReferrerFromStartParam(map[string]string{}))
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("secret", 42, time.Hour)
	require.NoError(t, err)

	tgid, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), tgid)
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := IssueToken("secret", 42, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	token, err := IssueToken("secret", 42, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("secret", token)
	assert.Error(t, err)
}
