package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/config"
	"github.com/safar/shopcraft/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const issuer = "shopcraft"

var ErrInvalidToken = apperr.New(apperr.Unauthenticated, "invalid or expired token")

type Principal struct {
	UserID int64
	Role   models.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

func (m *TokenManager) Issue(user *models.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) Parse(tokenString string) (Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Principal{}, apperr.Wrap(apperr.Unauthenticated, err, ErrInvalidToken.Message)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Principal{}, apperr.Wrap(apperr.Unauthenticated, err, ErrInvalidToken.Message)
	}

	return Principal{UserID: userID, Role: claims.Role}, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return apperr.New(apperr.Unauthenticated, "invalid email or password")
	}
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}
