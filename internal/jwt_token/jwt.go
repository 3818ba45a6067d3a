// Package jwttoken issues and checks the bearer tokens staff devices present.
// A token names one staff member on one device; the device id selects the
// scan session the requests drive.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// MaxTTL bounds how long an issued device token stays valid.
const MaxTTL = 7 * 24 * time.Hour

// Claims ties a token to a staff member and a device.
type Claims struct {
	StaffID  string `json:"staff_id"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 device tokens for one issuer/audience.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
	parser     *jwt.Parser
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

// GenerateAccessToken issues a token for staffID on deviceID, valid for ttl.
func (s *JWTService) GenerateAccessToken(staffID string, deviceID id.DeviceID, ttl time.Duration) (string, error) {
	switch {
	case staffID == "":
		return "", dErrors.New(dErrors.CodeValidation, "staff_id is required")
	case deviceID == "":
		return "", dErrors.New(dErrors.CodeValidation, "device_id is required")
	case ttl > MaxTTL:
		return "", dErrors.New(dErrors.CodeValidation, "token lifetime exceeds 168h")
	}

	issuedAt := s.now()
	claims := Claims{
		StaffID:  staffID,
		DeviceID: deviceID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   staffID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// ValidateToken verifies signature, issuer, audience and lifetime. Every
// failure is CodeUnauthorized; only expiry gets its own message.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	case claims.StaffID == "" || claims.DeviceID == "":
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
