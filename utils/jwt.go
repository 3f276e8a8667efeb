package utils

import (
	"errors"
	"time"

	"leadflow/config"
	"leadflow/models"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID         uint   `json:"user_id"`
	OrganizationID uint   `json:"organization_id"`
	TokenVersion   int    `json:"token_version"`
	SessionID      string `json:"session_id"`
	jwt.RegisteredClaims
}

// GenerateJWTToken issues a short-lived access token for a user. Token
// issuance normally happens in the external auth service; this exists for
// local development and service-to-service calls.
func GenerateJWTToken(user *models.User) (string, error) {
	claims := &Claims{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		TokenVersion:   user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

func ParseJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
