package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Roundtrip(t *testing.T) {
	m := NewManager("test-secret", "muzloto", time.Hour)

	token, err := m.Generate(12345, false)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.False(t, claims.Staff)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(12345), userID)
}

func TestManager_StaffFlag(t *testing.T) {
	m := NewManager("test-secret", "muzloto", time.Hour)

	token, err := m.Generate(12345, true)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.Staff)
}

func TestManager_WrongSecret(t *testing.T) {
	m := NewManager("test-secret", "muzloto", time.Hour)
	other := NewManager("other-secret", "muzloto", time.Hour)

	token, err := m.Generate(12345, false)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestManager_WrongIssuer(t *testing.T) {
	m := NewManager("test-secret", "muzloto", time.Hour)
	other := NewManager("test-secret", "someone-else", time.Hour)

	token, err := m.Generate(12345, false)
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("test-secret", "muzloto", -time.Hour)
	// negative TTL falls back to the default, so build one explicitly
	m.tokenTTL = -time.Hour

	token, err := m.Generate(12345, false)
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestManager_Garbage(t *testing.T) {
	m := NewManager("test-secret", "muzloto", time.Hour)

	_, err := m.Validate("not.a.token")
	assert.Error(t, err)
	_, err = m.Validate("")
	assert.Error(t, err)
}
