// Package initdata validates Telegram Mini App initData per the
// WebApp authorization scheme: the data-check-string is every
// key=value pair except hash, sorted and joined with newlines, and its
// HMAC-SHA256 under the key HMAC-SHA256("WebAppData", botToken) must
// equal the hash parameter.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Common validation errors.
var (
	ErrMalformed        = errors.New("malformed init data")
	ErrSignatureInvalid = errors.New("init data signature mismatch")
	ErrExpired          = errors.New("init data is too old")
	ErrNoUser           = errors.New("init data carries no user")
)

// User is the Telegram user embedded in initData.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate checks the signature and freshness of raw initData and
// returns the embedded user. maxAge <= 0 disables the freshness check.
func Validate(raw, botToken string, maxAge time.Duration) (*User, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrMalformed
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrMalformed
	}
	values.Del("hash")

	pairs := make([]string, 0, len(values))
	for key := range values {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(hash)) {
		return nil, ErrSignatureInvalid
	}

	if maxAge > 0 {
		authDate := values.Get("auth_date")
		ts, err := parseUnix(authDate)
		if err != nil {
			return nil, ErrMalformed
		}
		if time.Since(ts) > maxAge {
			return nil, ErrExpired
		}
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, ErrNoUser
	}
	var user User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return nil, ErrMalformed
	}
	if user.ID == 0 {
		return nil, ErrNoUser
	}
	return &user, nil
}

func parseUnix(s string) (time.Time, error) {
	var sec int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, ErrMalformed
		}
		sec = sec*10 + int64(r-'0')
	}
	if sec == 0 {
		return time.Time{}, ErrMalformed
	}
	return time.Unix(sec, 0), nil
}
