package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// VerifyInitData validates a Telegram Mini App launch payload against the bot
// token and returns its key/value pairs. The check string is built over the
// raw pairs sorted by key, hash excluded, per the WebApp spec.
func VerifyInitData(initData, botToken string) (map[string]string, error) {
	data := parsePairs(initData)
	receivedHash, ok := data["hash"]
	if !ok || receivedHash == "" {
		return nil, errors.New("hash missing")
	}
	delete(data, "hash")

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+data[k])
	}
	checkString := strings.Join(parts, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(receivedHash)) {
		return nil, errors.New("initData hash mismatch")
	}
	return data, nil
}

// UserTGID pulls the telegram user id out of verified initData. The user
// field is usually URL-encoded JSON, but a bare numeric id is accepted too.
func UserTGID(data map[string]string) (int64, error) {
	raw, ok := data["user"]
	if !ok || raw == "" {
		return 0, errors.New("user missing in initData")
	}
	if tgid, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return tgid, nil
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	var parsed struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(decoded), &parsed); err != nil {
		return 0, fmt.Errorf("parse initData user: %w", err)
	}
	if parsed.ID == 0 {
		return 0, errors.New("initData user has no id")
	}
	return parsed.ID, nil
}

// ReferrerFromStartParam extracts the referrer id from a Mini App start
// parameter of the form "ref_<tgid>". Zero when absent or malformed.
func ReferrerFromStartParam(data map[string]string) int64 {
	raw := data["start_param"]
	if raw == "" {
		return 0
	}
	raw = strings.TrimPrefix(raw, "ref_")
	tgid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || tgid <= 0 {
		return 0
	}
	return tgid
}

func parsePairs(initData string) map[string]string {
	data := make(map[string]string)
	for _, p := range strings.Split(initData, "&") {
		if !strings.Contains(p, "=") {
			continue
		}
		k, v, _ := strings.Cut(p, "=")
		data[k] = v
	}
	return data
}
