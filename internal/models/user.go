// internal/models/user.go
package models

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"`
	FirstName    string     `json:"first_name" gorm:"size:100;not null"`
	LastName     string     `json:"last_name" gorm:"size:100;not null"`
	MiddleName   string     `json:"middle_name,omitempty" gorm:"size:100"`
	Phone        string     `json:"phone,omitempty" gorm:"size:30"`
	Designation  string     `json:"designation,omitempty" gorm:"size:100"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);default:'APPLICANT';index"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'ACTIVE';index"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	ResetToken          string     `json:"-" gorm:"size:64;index"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	// Relationships
	Applications []Application `json:"applications,omitempty" gorm:"foreignKey:ApplicantUserID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// FullName joins the non-empty name parts.
func (u *User) FullName() string {
	parts := make([]string, 0, 2)
	if u.FirstName != "" {
		parts = append(parts, u.FirstName)
	}
	if u.LastName != "" {
		parts = append(parts, u.LastName)
	}
	return strings.Join(parts, " ")
}

// IsStaff reports whether the user may act on applications they do not own.
func (u *User) IsStaff() bool {
	return u.Role == UserRoleReviewer || u.Role == UserRoleAdmin || u.Role == UserRoleSuperAdmin
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin || u.Role == UserRoleSuperAdmin
}
