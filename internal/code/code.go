// Package code generates and normalizes the short redemption codes
// used for event registration, catalog purchases and bingo prizes.
package code

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/url"
	"strings"

	"github.com/AndreyDiak/muzloto-server/internal/model"
)

// Alphabet is the character set codes are drawn from. Easily confused
// characters (0/O, 1/I/L) are excluded so codes survive being read
// aloud or typed from a printed ticket.
const Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// Length is the canonical code length, prefix included.
const Length = 5

// PrizePrefix marks bingo prize codes.
const PrizePrefix = "B"

// ShopPayloadPrefix is the deep-link payload form a purchase code
// arrives in via the bot start parameter ("shop-XXXXX").
const ShopPayloadPrefix = "shop-"

// Fixed always-valid test codes. They redeem for the configured default
// reward and are never marked used.
const (
	TestRegistrationValue = "00000"
	TestPrizeValue        = "B0000"
)

// ErrNoCode is returned when the scanned input contains nothing that
// looks like a code.
var ErrNoCode = errors.New("no code found in input")

// Reserved reports whether value is one of the fixed test codes, which
// must never be issued as real codes.
func Reserved(value string) bool {
	return value == TestRegistrationValue || value == TestPrizeValue
}

// Scan is a normalized scanned input: the canonical code value plus a
// namespace hint when the input form implies one ("shop-" payloads,
// prize prefix). An empty hint means the namespace must be resolved by
// an unscoped lookup.
type Scan struct {
	Value string
	Hint  model.Namespace
}

// Generate returns a random 5-character code for the given namespace.
// Prize codes are a fixed "B" followed by 4 random characters; other
// namespaces are 5 random characters from the full alphabet.
func Generate(ns model.Namespace) (string, error) {
	if ns == model.NamespacePrize {
		suffix, err := random(Length - 1)
		if err != nil {
			return "", err
		}
		return PrizePrefix + suffix, nil
	}
	return random(Length)
}

// GenerateNumeric returns a random 5-digit code for deployments that
// print codes on numeric-only ticket stock.
func GenerateNumeric() (string, error) {
	const digits = "0123456789"
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		b[i] = digits[n.Int64()]
	}
	return string(b), nil
}

func random(n int) (string, error) {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(Alphabet))))
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[idx.Int64()]
	}
	return string(b), nil
}

// Valid reports whether value has the canonical shape: exactly 5
// uppercase alphanumeric characters.
func Valid(value string) bool {
	if len(value) != Length {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Parse extracts the canonical code from arbitrary scanned input.
// Accepted shapes, in order of precedence:
//
//   - a full URL whose "startapp" or "start" query parameter embeds
//     either of the forms below
//   - the deep-link payload form "shop-XXXXX"
//   - a bare 5-character code
//
// The returned value is uppercased. Malformed input yields ErrNoCode
// rather than a value later lookups would silently miss.
func Parse(raw string) (Scan, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Scan{}, ErrNoCode
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return Scan{}, ErrNoCode
		}
		q := u.Query()
		payload := q.Get("startapp")
		if payload == "" {
			payload = q.Get("start")
		}
		if payload == "" {
			return Scan{}, ErrNoCode
		}
		s = payload
	}

	if rest, ok := cutPrefixFold(s, ShopPayloadPrefix); ok {
		value := strings.ToUpper(strings.TrimSpace(rest))
		if !Valid(value) {
			return Scan{}, ErrNoCode
		}
		return Scan{Value: value, Hint: model.NamespacePurchase}, nil
	}

	value := strings.ToUpper(s)
	if !Valid(value) {
		return Scan{}, ErrNoCode
	}
	if strings.HasPrefix(value, PrizePrefix) {
		// A leading B only hints at the prize namespace; registration
		// and purchase codes can legitimately start with B too, so the
		// dispatcher still falls back to an unscoped lookup.
		return Scan{Value: value, Hint: model.NamespacePrize}, nil
	}
	return Scan{Value: value}, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
