package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	digest, err := h.Hash("Aa1!aaaa")
	require.NoError(t, err)
	assert.NotEqual(t, "Aa1!aaaa", digest)

	ok, err := h.Verify("Aa1!aaaa", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Aa1!aaab", digest)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := h.Hash("Aa1!aaaa")
	require.NoError(t, err)
	assert.NotEqual(t, digest, other, "each hash gets its own salt")
}

func TestPasswordHasherMissingDigest(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	ok, err := h.Verify("anything", "")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCredentialUnavailable)

	ok, err = h.Verify("anything", "not-a-bcrypt-digest")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCredentialUnavailable)
}

func TestNewPasswordHasherClampsCost(t *testing.T) {
	assert.Equal(t, PasswordHashCost, NewPasswordHasher(0).cost)
	assert.Equal(t, PasswordHashCost, NewPasswordHasher(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(bcrypt.MinCost).cost)
}

func TestValidatePasswordComplexity(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"Aa1!aaaa", true},
		{"NewPass1!", true},
		{"short", false},
		{"Aa1!aaa", false},
		{"aaaaaaa1!", false},
		{"AAAAAAA1!", false},
		{"Aaaaaaaa!", false},
		{"Aaaaaaaa1", false},
		{"Aa1!" + strings.Repeat("x", 80), false},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := ValidatePasswordComplexity(tt.password)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestValidatePasswordLength(t *testing.T) {
	assert.NoError(t, ValidatePasswordLength("aaaaaaaa"))
	assert.ErrorIs(t, ValidatePasswordLength("aaaaaaa"), ErrValidation)
	assert.NoError(t, ValidatePasswordLength(strings.Repeat("a", MaxPasswordBytes)))
	assert.ErrorIs(t, ValidatePasswordLength(strings.Repeat("a", MaxPasswordBytes+1)), ErrValidation)
	// multi-byte runes count by encoded length
	assert.ErrorIs(t, ValidatePasswordLength(strings.Repeat("é", 40)), ErrValidation)
}

func TestPasswordHasherDecoyMatchesCost(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost + 1)
	h.VerifyDecoy("anything")
	require.NotEmpty(t, h.decoy)
	cost, err := bcrypt.Cost(h.decoy)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	decoy := string(h.decoy)
	h.VerifyDecoy("something else")
	assert.Equal(t, decoy, string(h.decoy))
}

func TestPasswordHasherRejectsOverlongInput(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRandomDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := RandomDigits(OTPLength)
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}

func TestRandomTokenAndHash(t *testing.T) {
	a, err := RandomToken(ResetTokenBytes)
	require.NoError(t, err)
	b, err := RandomToken(ResetTokenBytes)
	require.NoError(t, err)

	assert.Len(t, a, 2*ResetTokenBytes)
	assert.NotEqual(t, a, b)

	assert.Len(t, SHA256Hex(a), 64)
	assert.True(t, EqualHash(SHA256Hex(a), SHA256Hex(a)))
	assert.False(t, EqualHash(SHA256Hex(a), SHA256Hex(b)))
}
