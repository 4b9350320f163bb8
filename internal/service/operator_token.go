package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims 运营端 JWT Claims
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// IssueOperatorToken 签发运营端访问令牌
func IssueOperatorToken(secretKey, operator string, ttl time.Duration) (string, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return "", errors.New("JWT 密钥未配置")
	}
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return "", ErrParamInvalid
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := time.Now()
	claims := OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}
