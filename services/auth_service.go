package services

import (
	"fmt"

	"care-chat/auth"
	"care-chat/domain"
	"care-chat/errors"
	"care-chat/repositories"
)

type IAuthService interface {
	Register(req auth.RegisterRequest) (Token, error)
	Login(email, password string) (Token, error)
}

type Token string

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(userRepository repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{userRepository: userRepository, tokens: tokens}
}

// Register validates the payload, hashes the password and persists the
// account, then issues the initial session token. Validation runs before any
// cryptographic work.
func (s *AuthService) Register(req auth.RegisterRequest) (Token, error) {
	if err := auth.ValidateRegister(req); err != nil {
		return "", err
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(domain.User{
		FullName:       req.FullName,
		Email:          req.Email,
		Role:           role,
		Specialization: req.Specialization,
		Experience:     req.Experience,
	}, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Generate(userID, role)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Login checks the credentials and issues a session token. Failures collapse
// into one generic error to prevent account enumeration.
func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, domain.Role(user.Role))
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
