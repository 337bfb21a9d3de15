package code

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyDiak/muzloto-server/internal/model"
)

func TestGenerate_Registration(t *testing.T) {
	value, err := Generate(model.NamespaceRegistration)
	require.NoError(t, err)
	assert.Len(t, value, Length)
	assert.True(t, Valid(value))
}

func TestGenerate_PrizePrefix(t *testing.T) {
	value, err := Generate(model.NamespacePrize)
	require.NoError(t, err)
	assert.Len(t, value, Length)
	assert.True(t, strings.HasPrefix(value, PrizePrefix))
	assert.True(t, Valid(value))
}

func TestGenerateNumeric(t *testing.T) {
	value, err := GenerateNumeric()
	require.NoError(t, err)
	assert.Len(t, value, Length)
	for _, r := range value {
		assert.True(t, r >= '0' && r <= '9', "numeric codes are digits only, got %q", r)
	}
	assert.True(t, Valid(value))
}

func TestReserved(t *testing.T) {
	assert.True(t, Reserved(TestRegistrationValue))
	assert.True(t, Reserved(TestPrizeValue))
	assert.False(t, Reserved("A2B3C"))
	assert.False(t, Reserved("B2345"))
}

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"valid uppercase", "A2B3C", true},
		{"valid numeric", "23456", true},
		{"test registration code", "00000", true},
		{"test prize code", "B0000", true},
		{"ambiguous chars still well-formed", "A0I1L", true},
		{"too short", "A2B3", false},
		{"too long", "A2B3C4", false},
		{"empty", "", false},
		{"lowercase", "a2b3c", false},
		{"whitespace", "A2 3C", false},
		{"punctuation", "A2-3C", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.value))
		})
	}
}

func TestParse_BareValue(t *testing.T) {
	scan, err := Parse("  a2b3c ")
	require.NoError(t, err)
	assert.Equal(t, "A2B3C", scan.Value)
	assert.Equal(t, model.Namespace(""), scan.Hint)
}

func TestParse_ShopPayload(t *testing.T) {
	scan, err := Parse("shop-X7K2M")
	require.NoError(t, err)
	assert.Equal(t, "X7K2M", scan.Value)
	assert.Equal(t, model.NamespacePurchase, scan.Hint)
}

func TestParse_PrizeHint(t *testing.T) {
	scan, err := Parse("B7K2M")
	require.NoError(t, err)
	assert.Equal(t, "B7K2M", scan.Value)
	assert.Equal(t, model.NamespacePrize, scan.Hint)
}

func TestParse_DeepLink(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		value    string
		hint     model.Namespace
	}{
		{
			"startapp param",
			"https://t.me/muzloto_bot?startapp=X7K2M",
			"X7K2M", model.Namespace(""),
		},
		{
			"start param with shop payload",
			"https://t.me/muzloto_bot?start=shop-X7K2M",
			"X7K2M", model.NamespacePurchase,
		},
		{
			"startapp with shop payload",
			"https://t.me/muzloto_bot?startapp=shop-B7K2M",
			"B7K2M", model.NamespacePurchase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.value, scan.Value)
			assert.Equal(t, tt.hint, scan.Hint)
		})
	}
}

func TestParse_NoCode(t *testing.T) {
	for _, raw := range []string{"", "   ", "https://t.me/muzloto_bot", "https://t.me/muzloto_bot?start="} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrNoCode, "input %q", raw)
	}
}
