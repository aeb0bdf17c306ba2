package models

import "time"

// User is a citizen account. Users are never hard-deleted.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"default:citizen" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Admin is a department officer. Department references departments.name.
type Admin struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Department   string    `gorm:"not null;index" json:"department"`
	CreatedAt    time.Time `json:"created_at"`

	Dept Department `gorm:"foreignKey:Department;references:Name" json:"-"`
}

// Department is a seeded catalog entry. Normal flow never mutates it.
type Department struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
}
