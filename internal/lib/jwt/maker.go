// Package jwt реализует выпуск и проверку HMAC JWT токенов.
//
// Токен содержит subject (id пользователя строкой), email, iat и exp.
// Алгоритм подписи выбирается из HS256, HS384 и HS512.
package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnsupportedAlgorithm возвращается для алгоритма вне семейства HS*.
var ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

// Claims описывает данные, хранящиеся в токене.
// UserID заполняется сторонними выпускающими сервисами и имеет приоритет над subject.
type Claims struct {
	Email  string `json:"email,omitempty"`
	UserID *int64 `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Maker выпускает и проверяет токены одним секретом и алгоритмом.
type Maker struct {
	secretKey []byte
	method    *jwt.SigningMethodHMAC
	tokenTTL  time.Duration
}

// NewMaker создаёт Maker. Пустой алгоритм означает HS256.
func NewMaker(secretKey, algorithm string, ttl time.Duration) (*Maker, error) {
	const op = "jwt.NewMaker"

	var method *jwt.SigningMethodHMAC
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnsupportedAlgorithm, algorithm)
	}

	return &Maker{
		secretKey: []byte(secretKey),
		method:    method,
		tokenTTL:  ttl,
	}, nil
}

// GenerateToken выпускает токен для пользователя.
func (m *Maker) GenerateToken(userID int64, email string) (string, error) {
	const op = "jwt.GenerateToken"

	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken проверяет подпись, алгоритм и срок действия токена.
func (m *Maker) ParseToken(tokenStr string) (*Claims, error) {
	const op = "jwt.ParseToken"

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(_ *jwt.Token) (any, error) {
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
