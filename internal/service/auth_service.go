package service

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/rs/zerolog/log"
    "golang.org/x/crypto/bcrypt"

    "github.com/storeforge/scanapi/internal/models"
    "github.com/storeforge/scanapi/internal/utils"
)

const minPasswordLength = 8

// AuthService authenticates dashboard users and issues access tokens.
type AuthService struct {
    users    UserStore
    tokenTTL time.Duration
}

// NewAuthService constructs a new AuthService.
func NewAuthService(users UserStore, tokenTTL time.Duration) *AuthService {
    return &AuthService{users: users, tokenTTL: tokenTTL}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
    Token     string       `json:"token"`
    ExpiresAt time.Time    `json:"expiresAt"`
    User      *models.User `json:"user"`
}

// Login verifies the credentials and returns a signed token.
// Unknown email and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
    email = strings.TrimSpace(email)
    log.Debug().Str("email", email).Msg("Login attempt")

    user, err := s.users.GetByEmail(ctx, email)
    if err != nil {
        return nil, err
    }
    if user == nil {
        log.Warn().Str("email", email).Msg("Login for unknown email")
        return nil, utils.ErrInvalidCredentials
    }

    if !user.IsActive {
        log.Warn().Str("email", email).Msg("Account is inactive")
        return nil, utils.ErrAccountInactive
    }

    if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
        log.Warn().Str("email", email).Msg("Password verification failed")
        return nil, utils.ErrInvalidCredentials
    }

    token, err := utils.GenerateJWT(user.ID, user.Email, user.Role)
    if err != nil {
        return nil, err
    }

    if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
        log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login")
    }

    log.Info().Str("user_id", user.ID).Msg("Login successful")
    return &LoginResult{Token: token, ExpiresAt: time.Now().Add(s.tokenTTL), User: user}, nil
}

// CreateUser hashes the password and stores a new active user.
func (s *AuthService) CreateUser(ctx context.Context, email, password, name, role string) (*models.User, error) {
    email = strings.TrimSpace(email)
    if !strings.Contains(email, "@") {
        return nil, utils.ValidationError("email is invalid")
    }
    if len(password) < minPasswordLength {
        return nil, utils.ValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
    }
    switch role {
    case "":
        role = models.UserRoleUser
    case models.UserRoleAdmin, models.UserRoleUser:
    default:
        return nil, utils.ValidationError("role must be admin or user")
    }

    hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
    if err != nil {
        return nil, err
    }

    user := &models.User{
        Email:        email,
        PasswordHash: string(hashedPassword),
        Name:         name,
        Role:         role,
        IsActive:     true,
    }
    if err := s.users.Create(ctx, user); err != nil {
        return nil, err
    }
    return user, nil
}

// Me returns the caller's account. A token for a deleted or deactivated
// account is rejected.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
    user, err := s.users.GetByID(ctx, userID)
    if err != nil {
        return nil, err
    }
    if user == nil || !user.IsActive {
        return nil, utils.Unauthorized("Account is no longer active")
    }
    return user, nil
}
