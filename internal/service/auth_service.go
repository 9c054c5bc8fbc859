package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "focusbeat/backend/internal/errors"
	"focusbeat/backend/internal/model"
	"focusbeat/backend/internal/repository"
	"focusbeat/backend/internal/workspace"
)

const (
	minPassphraseLength = 6
	maxProfileNameRunes = 40
)

type AuthService struct {
	profileRepo *repository.ProfileRepository
	workspaces  *workspace.Manager
	jwtSecret   []byte
	tokenTTL    time.Duration
}

func NewAuthService(
	profileRepo *repository.ProfileRepository,
	workspaces *workspace.Manager,
	jwtSecret string,
	tokenTTL time.Duration,
) *AuthService {
	return &AuthService{
		profileRepo: profileRepo,
		workspaces:  workspaces,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
	}
}

type AuthResult struct {
	Token   string        `json:"token"`
	Profile model.Profile `json:"profile"`
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *AuthService) Register(ctx context.Context, name, passphrase string) (*AuthResult, *apperrors.APIError) {
	normalizedName := normalizeName(name)
	if normalizedName == "" {
		return nil, apperrors.BadRequest("invalid_name", "name is required")
	}
	if utf8.RuneCountInString(normalizedName) > maxProfileNameRunes {
		return nil, apperrors.BadRequest("invalid_name", "name must be at most 40 characters")
	}
	if len(passphrase) < minPassphraseLength {
		return nil, apperrors.BadRequest("invalid_passphrase", "passphrase must be at least 6 characters")
	}

	_, err := s.profileRepo.GetByName(ctx, normalizedName)
	if err == nil {
		return nil, apperrors.Conflict("name_exists", "profile name already taken", nil)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal("failed to query profile")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("failed to secure passphrase")
	}

	now := time.Now().UTC()
	profile := model.Profile{
		ID:             uuid.NewString(),
		Name:           normalizedName,
		PassphraseHash: string(hash),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.profileRepo.Create(ctx, &profile); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, apperrors.Conflict("name_exists", "profile name already taken", nil)
		}
		return nil, apperrors.Internal("failed to create profile")
	}

	token, apiErr := s.issueToken(profile)
	if apiErr != nil {
		return nil, apiErr
	}
	return &AuthResult{Token: token, Profile: profile}, nil
}

func (s *AuthService) Login(ctx context.Context, name, passphrase string) (*AuthResult, *apperrors.APIError) {
	normalizedName := normalizeName(name)
	if normalizedName == "" || passphrase == "" {
		return nil, apperrors.BadRequest("invalid_credentials", "name and passphrase are required")
	}

	profile, err := s.profileRepo.GetByName(ctx, normalizedName)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("invalid name or passphrase")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to query profile")
	}

	if bcrypt.CompareHashAndPassword([]byte(profile.PassphraseHash), []byte(passphrase)) != nil {
		return nil, apperrors.Unauthorized("invalid name or passphrase")
	}

	token, apiErr := s.issueToken(*profile)
	if apiErr != nil {
		return nil, apiErr
	}
	return &AuthResult{Token: token, Profile: *profile}, nil
}

// Logout releases the profile's workspace. Tokens stay valid until they
// expire and the persisted state is kept.
func (s *AuthService) Logout(profileID string) bool {
	if s.workspaces == nil {
		return false
	}
	return s.workspaces.Dispose(profileID)
}

func (s *AuthService) Profiles(ctx context.Context) ([]model.Profile, *apperrors.APIError) {
	profiles, err := s.profileRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list profiles")
	}
	return profiles, nil
}

// ParseToken returns the profile id a valid token was issued for.
func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", apperrors.Unauthorized("invalid token")
	}
	if claims.Subject == "" {
		return "", apperrors.Unauthorized("invalid token subject")
	}
	return claims.Subject, nil
}

func (s *AuthService) issueToken(profile model.Profile) (string, *apperrors.APIError) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   profile.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}
