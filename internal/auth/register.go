package auth

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/internal/citizens"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/internal/users"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/security"
)

// RegisterService signs up citizens and opens their first session.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
	SessionManager sessionManager
	Resolver       policy.Resolver
	JWTConfig      config.JWTConfig
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
	session     sessionManager
	resolver    policy.Resolver
	jwtCfg      config.JWTConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.SessionManager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session manager required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "actor resolver required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
		session:     params.SessionManager,
		resolver:    params.Resolver,
		jwtCfg:      params.JWTConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	user, err := createAccount(ctx, s.db, s.passwordCfg, users.CreateUserDTO{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, req.Password, func(tx *gorm.DB, user *models.User) error {
		if _, err := citizens.NewRepository(tx).Create(ctx, user.ID, strings.TrimSpace(req.Address), strings.TrimSpace(req.Phone)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create citizen profile")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp, err := issueTokens(ctx, s.jwtCfg, s.session, s.resolver, user, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	resp.Redirect = policy.RouteHome
	return resp, nil
}

func validateRegistration(req RegisterRequest) error {
	fields := map[string]any{}
	if strings.TrimSpace(req.Username) == "" {
		fields["username"] = "this field is required"
	}
	if users.NormalizeEmail(req.Email) == "" {
		fields["email"] = "this field is required"
	}
	if req.Password != req.PasswordConfirm {
		fields["password_confirm"] = "the two password fields didn't match"
	}
	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid registration").WithDetails(fields)
}

// createAccount hashes the password and inserts the user plus whatever
// profile rows attach runs, all in one transaction.
func createAccount(ctx context.Context, client *db.Client, pw config.PasswordConfig, account users.CreateUserDTO, password string, attach func(tx *gorm.DB, user *models.User) error) (*models.User, error) {
	hash, err := security.HashPassword(password, pw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	account.Username = strings.TrimSpace(account.Username)
	account.PasswordHash = hash

	var created *models.User
	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		usernameTaken, emailTaken, err := repo.Taken(ctx, account.Username, account.Email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check account uniqueness")
		}
		if usernameTaken || emailTaken {
			return takenError(usernameTaken, emailTaken)
		}

		user, err := repo.Create(ctx, account)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		if attach != nil {
			if err := attach(tx, user); err != nil {
				return err
			}
		}
		created = user
		return nil
	})
	return created, err
}

func takenError(usernameTaken, emailTaken bool) error {
	fields := map[string]any{}
	if usernameTaken {
		fields["username"] = "a user with that username already exists"
	}
	if emailTaken {
		fields["email"] = "a user with that email already exists"
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "account already exists").WithDetails(fields)
}
