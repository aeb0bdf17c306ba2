package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grievance/backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func (s *Service) hashPassword(pw string) (string, error) {
	cost := s.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	return string(b), err
}

func checkPassword(hashed, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}

// CreateUser зберігає громадянина. Дублікат email повертає ErrAlreadyExists.
func (s *Service) CreateUser(ctx context.Context, user *models.User, password string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.Email = normalizeEmail(user.Email)
	user.PasswordHash = hash
	if user.Role == "" {
		user.Role = "citizen"
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		return translate(tx.Create(user).Error)
	})
}

// CreateAdmin зберігає адміністратора департаменту.
func (s *Service) CreateAdmin(ctx context.Context, admin *models.Admin, password string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin.Email = normalizeEmail(admin.Email)
	admin.PasswordHash = hash

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := departmentExists(tx, admin.Department); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Admin{}).Where("email = ?", admin.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyExists
		}
		return translate(tx.Omit("Dept").Create(admin).Error)
	})
}

// AuthenticateUser returns ErrInvalidCredentials for both unknown email and bad password.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !checkPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// AuthenticateAdmin returns ErrInvalidCredentials for both unknown email and bad password.
func (s *Service) AuthenticateAdmin(ctx context.Context, email, password string) (*models.Admin, error) {
	var admin models.Admin
	err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !checkPassword(admin.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &admin, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Service) GetAdminByID(ctx context.Context, id uint) (*models.Admin, error) {
	var admin models.Admin
	if err := s.DB.WithContext(ctx).First(&admin, id).Error; err != nil {
		return nil, translate(err)
	}
	return &admin, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
