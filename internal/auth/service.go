package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"student-fee-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const issuer = "student-fee-service"

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service checks the single admin account from config and issues HS256
// tokens for it.
type Service struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewService(cfg config.AuthConfig) *Service {
	ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &Service{
		username:     cfg.AdminUsername,
		passwordHash: []byte(cfg.AdminPasswordHash),
		secret:       []byte(cfg.JWTSecret),
		ttl:          ttl,
		now:          time.Now,
	}
}

func (s *Service) Login(req LoginRequest) (*LoginResponse, error) {
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.GenerateToken(req.Username)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) GenerateToken(username string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenTTL is how long issued tokens stay valid.
func (s *Service) TokenTTL() time.Duration {
	return s.ttl
}
