package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"appraiser-gateway/internal/platform/middleware"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// TokenClaims are the JWT claims carried by a session access token.
type TokenClaims struct {
	SessionID      string `json:"session_id"`
	RegistrationID string `json:"registration_id"`
	ProfileID      string `json:"profile_id"`
	jwt.RegisteredClaims
}

// TokenService mints and validates HS256 session tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
}

func NewTokenService(signingKey string, ttl time.Duration) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     "appraiser-gateway",
		audience:   "appraisal",
		ttl:        ttl,
	}
}

func (s *TokenService) GenerateToken(sessionID id.SessionID, appraiser AppraiserRecord) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		SessionID:      sessionID.String(),
		RegistrationID: appraiser.RegistrationID.String(),
		ProfileID:      appraiser.ProfileID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *TokenService) ValidateToken(tokenString string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// TokenServiceAdapter bridges the token service to the transport middleware.
type TokenServiceAdapter struct {
	service *TokenService
}

func NewTokenServiceAdapter(service *TokenService) *TokenServiceAdapter {
	return &TokenServiceAdapter{service: service}
}

func (a *TokenServiceAdapter) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenClaims{
		SessionID:      claims.SessionID,
		RegistrationID: claims.RegistrationID,
		ProfileID:      claims.ProfileID,
	}, nil
}
