package users

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
)

// Repository persists accounts.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByLogin matches either the username or the e-mail address.
func (r *Repository) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	login = strings.TrimSpace(login)
	var user models.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, NormalizeEmail(login)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Taken reports which of username and email already belong to an account.
func (r *Repository) Taken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error) {
	var rows []models.User
	err = r.db.WithContext(ctx).
		Select("username", "email").
		Where("username = ? OR email = ?", strings.TrimSpace(username), NormalizeEmail(email)).
		Find(&rows).Error
	if err != nil {
		return false, false, err
	}
	for _, u := range rows {
		if u.Username == strings.TrimSpace(username) {
			usernameTaken = true
		}
		if u.Email == NormalizeEmail(email) {
			emailTaken = true
		}
	}
	return usernameTaken, emailTaken, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}
