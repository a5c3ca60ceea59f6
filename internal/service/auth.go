package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vaultapi/internal/config"
	"vaultapi/internal/model"
	"vaultapi/internal/notify"
	"vaultapi/internal/repository"
)

var (
	// ErrInvalidCredentials is returned for a bad email or password. The two
	// cases are indistinguishable on purpose.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotVerified is returned when the account exists but the email has
	// not been confirmed yet.
	ErrNotVerified = errors.New("email not verified")

	// ErrSignupUnavailable is returned for any signup failure, including
	// duplicate email, so the endpoint cannot be used to probe for accounts.
	ErrSignupUnavailable = errors.New("unable to create account")

	ErrInvalidToken = errors.New("invalid or expired token")
)

// tokenPurposeVerify distinguishes verification tokens from session tokens so
// one cannot substitute for the other.
const tokenPurposeVerify = "verify"

// Claims are the session token claims issued on login.
type Claims struct {
	UserID  string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// AuthService handles operator signup, email verification, and login.
type AuthService interface {
	// Signup registers an unverified admin account and sends a verification
	// link. Failures, duplicate email included, collapse into
	// ErrSignupUnavailable.
	Signup(ctx context.Context, email, password string) error

	// Verify confirms an account using the token from the verification link.
	Verify(ctx context.Context, token string) (email string, err error)

	// Login checks credentials and returns a signed session token. Accounts
	// still carrying a legacy plaintext password are upgraded to a hash on
	// first successful login, best-effort.
	Login(ctx context.Context, email, password string) (token string, user *model.AdminUser, err error)

	// ValidateToken parses and verifies a session token.
	ValidateToken(token string) (*Claims, error)
}

type authService struct {
	repo     repository.AdminRepository
	notifier notify.Notifier
	cfg      config.AuthConfig
	timeout  time.Duration

	detach func(func())
	now    func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(repo repository.AdminRepository, notifier notify.Notifier, cfg config.AuthConfig, timeout time.Duration) AuthService {
	return &authService{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		timeout:  timeout,
		detach:   func(f func()) { go f() },
		now:      time.Now,
	}
}

func (s *authService) Signup(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") || password == "" {
		return ErrSignupUnavailable
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return ErrSignupUnavailable
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.Create(opCtx, &model.AdminUser{
		ID:       uuid.New().String(),
		Email:    email,
		Password: string(hash),
	})
	if err != nil {
		// Unique violation and transient failures look the same to the caller.
		return ErrSignupUnavailable
	}

	verifyToken, err := s.signToken(user, tokenPurposeVerify, s.cfg.VerifyTTL)
	if err != nil {
		return ErrSignupUnavailable
	}
	verifyURL := fmt.Sprintf("%s/verify?token=%s", strings.TrimRight(s.cfg.FrontendURL, "/"), verifyToken)

	s.detach(func() {
		dCtx, dCancel := context.WithTimeout(context.Background(), s.timeout)
		defer dCancel()
		if err := s.notifier.VerificationEmail(dCtx, user.Email, verifyURL); err != nil {
			logSideEffectFailure("notify_verification_email", user.ID, err)
		}
	})

	return nil
}

func (s *authService) Verify(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil || claims.Purpose != tokenPurposeVerify {
		return "", ErrInvalidToken
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.MarkVerified(opCtx, claims.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("mark verified: %w", err)
	}
	return claims.Email, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *model.AdminUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.FindByEmail(opCtx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}

	if isBcryptHash(user.Password) {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
			return "", nil, ErrInvalidCredentials
		}
	} else {
		// Legacy row with a plaintext password. Compare directly, then replace
		// it with a hash so the plaintext never survives a successful login.
		if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
			return "", nil, ErrInvalidCredentials
		}
		if hash, hErr := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost); hErr == nil {
			id := user.ID
			s.detach(func() {
				dCtx, dCancel := context.WithTimeout(context.Background(), s.timeout)
				defer dCancel()
				if err := s.repo.UpdatePassword(dCtx, id, string(hash)); err != nil {
					logSideEffectFailure("password_upgrade", id, err)
				}
			})
		}
	}

	if !user.Verified {
		return "", nil, ErrNotVerified
	}

	token, err := s.signToken(user, "", s.cfg.TokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

func (s *authService) ValidateToken(token string) (*Claims, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	// A verification token must not grant a session.
	if claims.Purpose != "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) signToken(user *model.AdminUser, purpose string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: true,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

func (s *authService) parseToken(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// isBcryptHash reports whether the stored password is already a bcrypt hash,
// by its standard prefix.
func isBcryptHash(p string) bool {
	return strings.HasPrefix(p, "$2a$") || strings.HasPrefix(p, "$2b$") || strings.HasPrefix(p, "$2y$")
}
