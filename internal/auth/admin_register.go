package auth

import (
	"context"

	"github.com/marquezdaniela/reciclaje-municipal/internal/users"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
)

// AdminRegisterRequest bootstraps a staff account. The route is only
// mounted outside production.
type AdminRegisterRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	FirstName string `json:"first_name" validate:"required,max=30"`
	LastName  string `json:"last_name" validate:"required,max=30"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

type AdminRegisterService interface {
	Register(ctx context.Context, req AdminRegisterRequest) (*users.UserDTO, error)
}

type AdminRegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type staffBootstrap struct {
	db *db.Client
	pw config.PasswordConfig
}

func NewAdminRegisterService(params AdminRegisterServiceParams) (AdminRegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &staffBootstrap{db: params.DB, pw: params.PasswordConfig}, nil
}

// Register creates a staff user with no citizen or operator profile.
func (s *staffBootstrap) Register(ctx context.Context, req AdminRegisterRequest) (*users.UserDTO, error) {
	if err := validateRegistration(RegisterRequest{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.Password,
	}); err != nil {
		return nil, err
	}

	user, err := createAccount(ctx, s.db, s.pw, users.CreateUserDTO{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsStaff:   true,
	}, req.Password, nil)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user), nil
}
