package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"room-coordinator/internal/config"
	"room-coordinator/internal/database"
)

var ErrInvalidToken = errors.New("invalid or missing token")

// BanError carries the moderation verdict for a banned user; the gateway
// relays it as a user-banned event before closing the connection.
type BanError struct {
	Reason   string
	BannedAt time.Time
}

func (e *BanError) Error() string {
	return fmt.Sprintf("user banned: %s", e.Reason)
}

// Service verifies connection tokens. Identity issuance lives with an
// external provider; only HMAC verification and the ban lookup happen here.
type Service struct {
	secret  []byte
	bans    database.BanStore
	timeout time.Duration
}

func NewService(bans database.BanStore, cfg *config.Config) *Service {
	return &Service{
		secret:  cfg.JWT.SecretBytes(),
		bans:    bans,
		timeout: cfg.JWT.AuthTimeout,
	}
}

// Verify validates the token and checks the ban list. It returns the
// authenticated user ID, ErrInvalidToken for bad tokens, or a *BanError
// when a ban verdict exists for the user.
func (s *Service) Verify(ctx context.Context, tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims, err := s.parseToken(tokenString)
	if err != nil {
		return "", ErrInvalidToken
	}

	userID, err := s.userIDFromClaims(claims)
	if err != nil {
		return "", ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ban, err := s.bans.GetBan(ctx, userID)
	if err != nil {
		// Ban lookup is advisory; a store outage must not lock everyone out.
		return userID, nil
	}
	if ban != nil {
		return userID, &BanError{Reason: ban.Reason, BannedAt: ban.BannedAt}
	}
	return userID, nil
}

func (s *Service) parseToken(tokenString string) (*jwt.MapClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func (s *Service) userIDFromClaims(claims *jwt.MapClaims) (string, error) {
	if id, ok := (*claims)["user_id"].(string); ok && id != "" {
		return id, nil
	}
	if sub, ok := (*claims)["sub"].(string); ok && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("no user ID in token")
}
