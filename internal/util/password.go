package util

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost is the bcrypt work factor used in production.
const PasswordHashCost = 12

const MinPasswordLength = 8

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords with a per-password salt.
type PasswordHasher struct {
	cost int

	decoyOnce sync.Once
	decoy     []byte
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = PasswordHashCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", Validation("password must be at most %d bytes long", MaxPasswordBytes)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyDecoy spends the same bcrypt work as Verify against a digest no
// password matches. Callers use it when no account exists so the response
// time does not reveal that.
func (h *PasswordHasher) VerifyDecoy(plaintext string) {
	h.decoyOnce.Do(func() {
		secret, err := RandomToken(32)
		if err != nil {
			secret = "decoy-password"
		}
		h.decoy, _ = bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	})
	if len(h.decoy) == 0 {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h.decoy, []byte(plaintext))
}

// Verify compares plaintext against digest. An empty digest yields
// ErrCredentialUnavailable; a mismatch yields (false, nil).
func (h *PasswordHasher) Verify(plaintext, digest string) (bool, error) {
	if digest == "" {
		return false, ErrCredentialUnavailable
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
	}
}

func ValidatePasswordLength(password string) error {
	if len(password) < MinPasswordLength {
		return Validation("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return Validation("password must be at most %d bytes long", MaxPasswordBytes)
	}
	return nil
}

// ValidatePasswordComplexity enforces length plus one upper, one lower, one
// digit and one symbol.
func ValidatePasswordComplexity(password string) error {
	if err := ValidatePasswordLength(password); err != nil {
		return err
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return Validation("password must contain at least one uppercase letter, one lowercase letter, one number and one special character")
	}
	return nil
}

// SHA256Hex is used for OTPs and opaque tokens, which carry enough entropy or
// a short enough lifetime that a fast hash is sufficient.
func SHA256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// EqualHash compares two hex digests in constant time.
func EqualHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RandomDigits returns n uniformly drawn decimal digits.
func RandomDigits(n int) (string, error) {
	buf := make([]byte, n)
	ten := big.NewInt(10)
	for i := range buf {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + d.Int64())
	}
	return string(buf), nil
}

// RandomToken returns size random bytes, hex encoded.
func RandomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
