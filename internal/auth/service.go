package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/internal/users"
	pkgAuth "github.com/marquezdaniela/reciclaje-municipal/pkg/auth"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/auth/session"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/security"
)

const invalidCredentialsMessage = "invalid username or password"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

type userRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error)
	Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Resolver       policy.Resolver
	JWTConfig      config.JWTConfig
	// Passwords, when set, upgrades hashes made with older costs on a
	// successful login.
	Passwords *config.PasswordConfig
	Logger    *logger.Logger
}

type service struct {
	users     userRepository
	session   sessionManager
	resolver  policy.Resolver
	jwtCfg    config.JWTConfig
	passwords *config.PasswordConfig
	logg      *logger.Logger
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, errors.New("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, errors.New("session manager is required")
	}
	if params.Resolver == nil {
		return nil, errors.New("actor resolver is required")
	}
	return &service{
		users:     params.UserRepo,
		session:   params.SessionManager,
		resolver:  params.Resolver,
		jwtCfg:    params.JWTConfig,
		passwords: params.Passwords,
		logg:      params.Logger,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.authenticate(ctx, req.Login, req.Password)
	if err != nil {
		return nil, err
	}
	s.upgradeHash(ctx, user, req.Password)
	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return issueTokens(ctx, s.jwtCfg, s.session, s.resolver, user, now)
}

func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}
	newAccessID, newRefresh, err := s.session.Rotate(ctx, claims.UserID, claims.ID, strings.TrimSpace(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}

	now := time.Now().UTC()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		JTI:      newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	actor, err := s.resolver.Resolve(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  token,
		RefreshToken: newRefresh,
		User:         users.FromModel(user),
		Role:         actor.Kind().String(),
	}, nil
}

func (s *service) Logout(ctx context.Context, accessToken string) error {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, strings.TrimSpace(accessToken))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}
	if err := s.session.Revoke(ctx, claims.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// upgradeHash re-derives the stored hash when the configured argon costs
// changed since it was written. Failure only costs a log line.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if s.passwords == nil || !security.NeedsRehash(user.PasswordHash, *s.passwords) {
		return
	}
	hash, err := security.HashPassword(password, *s.passwords)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, user.ID.String()), "auth.rehash.failed")
		return
	}
	user.PasswordHash = hash
}

// issueTokens mints the access token and opens the refresh session.
func issueTokens(ctx context.Context, cfg config.JWTConfig, sessions sessionManager, resolver policy.Resolver, user *models.User, now time.Time) (*TokenResponse, error) {
	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(cfg, now, pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := sessions.Generate(ctx, user.ID, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	actor, err := resolver.Resolve(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  token,
		RefreshToken: refresh,
		User:         users.FromModel(user),
		Role:         actor.Kind().String(),
	}, nil
}
