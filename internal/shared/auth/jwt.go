// Package auth signs the short-lived links that let the headless browser open
// a review page without the owner's backend session.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultViewTTL is how long a view link stays valid.
const DefaultViewTTL = 5 * time.Minute

const viewAudience = "review-view"

var (
	errMissingSecret = errors.New("view token secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// ViewClaims grants read access to one review.
type ViewClaims struct {
	ReviewID string `json:"rid"`
	jwt.RegisteredClaims
}

// ViewSigner issues and checks view tokens.
type ViewSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewViewSigner builds a signer. Production requires a secret; elsewhere a
// fixed development secret is used.
func NewViewSigner(secret, env string, ttl time.Duration) (*ViewSigner, error) {
	if secret == "" {
		if env == "production" {
			return nil, fmt.Errorf("%w: VIEW_TOKEN_SECRET required in production", errMissingSecret)
		}
		secret = "dev-secret"
	}
	if ttl <= 0 {
		ttl = DefaultViewTTL
	}
	return &ViewSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign issues a token for reviewID owned by userID.
func (s *ViewSigner) Sign(reviewID, userID string) (string, error) {
	if reviewID == "" || userID == "" {
		return "", errors.New("review and user are required")
	}
	now := s.now()
	claims := &ViewClaims{
		ReviewID: reviewID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{viewAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign view token: %w", err)
	}
	return token, nil
}

// Verify checks token and that it was issued for reviewID.
func (s *ViewSigner) Verify(token, reviewID string) (*ViewClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &ViewClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithAudience(viewAudience),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ReviewID != reviewID || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
