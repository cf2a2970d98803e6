package auth

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	Address string    `json:"address"`
	jwt.RegisteredClaims
}

func (c *Claims) Wallet() common.Address {
	return common.HexToAddress(c.Address)
}

// GenerateJWT создаёт JWT с заданным временем жизни.
// expiration: время жизни токена (например 24h). Если <= 0, используется 24h.
func GenerateJWT(secret string, userID uuid.UUID, address common.Address, expiration time.Duration) (string, error) {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	claims := Claims{
		UserID:  userID,
		Address: address.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address.Hex(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "adcampaign-backend",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !common.IsHexAddress(claims.Address) {
		return nil, fmt.Errorf("invalid token address")
	}
	return claims, nil
}
