package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurante/internal/logger"
	"restaurante/internal/models"
	"restaurante/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and validates operator tokens.
type AuthService struct {
	operatorRepo repositories.OperatorRepository
	jwtSecret    []byte
	tokenTTL     time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(operatorRepo repositories.OperatorRepository, jwtSecret string) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     12 * time.Hour, // one shift
	}
}

// RegisterOperator hashes the password and stores a new operator account.
func (s *AuthService) RegisterOperator(ctx context.Context, operator *models.Operator) error {
	if existing, err := s.operatorRepo.GetByUsername(ctx, operator.Username); err == nil && existing != nil {
		return fmt.Errorf("%w: username '%s' already taken", models.ErrConflict, operator.Username)
	}
	if existing, err := s.operatorRepo.GetByEmail(ctx, operator.Email); err == nil && existing != nil {
		return fmt.Errorf("%w: email '%s' already registered", models.ErrConflict, operator.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(operator.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	operator.Password = string(hashedPassword)

	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		return fmt.Errorf("failed to register operator: %w", err)
	}
	return nil
}

// SeedOperator creates the bootstrap operator account unless the username
// already exists. It reports whether an account was created.
func (s *AuthService) SeedOperator(ctx context.Context, operator models.Operator) (bool, error) {
	if existing, err := s.operatorRepo.GetByUsername(ctx, operator.Username); err == nil && existing != nil {
		return false, nil
	}
	if err := s.RegisterOperator(ctx, &operator); err != nil {
		return false, fmt.Errorf("failed to seed operator %s: %w", operator.Username, err)
	}
	return true, nil
}

// Login authenticates an operator and returns a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	operator, err := s.operatorRepo.GetByUsername(ctx, username)
	if err != nil {
		// Do not reveal whether the username exists.
		return "", models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(operator.Password), []byte(password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": operator.ID,
		"username":    operator.Username,
		"exp":         now.Add(s.tokenTTL).Unix(),
		"iat":         now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a token, returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		logger.Debug("token validation failed", "err", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// AuthorizeAdmin is the join-admin check of the realtime transport.
func (s *AuthService) AuthorizeAdmin(tokenString string) error {
	_, err := s.ValidateToken(tokenString)
	return err
}
