package util

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	UserID      string         `json:"id"`
	Role        model.UserRole `json:"role"`
	Fingerprint string         `json:"fingerprint"`
	Kind        TokenKind      `json:"type"`
	jwt.RegisteredClaims
}

type TokenSignerOptions struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// TokenSigner issues and verifies HS256 access and refresh tokens.
type TokenSigner struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	audience      string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenSigner(opts TokenSignerOptions) *TokenSigner {
	refresh := opts.RefreshSecret
	if refresh == "" {
		refresh = opts.AccessSecret
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenSigner{
		accessSecret:  []byte(opts.AccessSecret),
		refreshSecret: []byte(refresh),
		issuer:        opts.Issuer,
		audience:      opts.Audience,
		accessTTL:     opts.AccessTTL,
		refreshTTL:    opts.RefreshTTL,
		now:           now,
	}
}

func (s *TokenSigner) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenSigner) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenSigner) settings(kind TokenKind) ([]byte, time.Duration) {
	if kind == RefreshToken {
		return s.refreshSecret, s.refreshTTL
	}
	return s.accessSecret, s.accessTTL
}

// Issue signs a token of the given kind for user.
func (s *TokenSigner) Issue(kind TokenKind, userID string, role model.UserRole, fingerprint string) (string, error) {
	secret, ttl := s.settings(kind)
	now := s.now()

	claims := &Claims{
		UserID:      userID,
		Role:        role,
		Fingerprint: fingerprint,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        GenerateTokenID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse verifies signature, expiry, issuer, audience and kind.
func (s *TokenSigner) Parse(kind TokenKind, tokenString string) (*Claims, error) {
	secret, _ := s.settings(kind)

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != kind || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Fingerprint binds a token to the client that requested it: the first 16
// hex characters of sha256(userAgent + "-" + ip).
func Fingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + "-" + ip))
	return hex.EncodeToString(sum[:])[:16]
}

func GenerateTokenID() string {
	return model.GenerateUUID()
}

func GetUserFromContext(c *gin.Context) *Claims {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	claims, ok := user.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
