package model

import "time"

// User is a company-scoped account. The same email may exist in
// different companies, so uniqueness is enforced on (company_id, email).
type User struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	CompanyID    int64  `gorm:"not null;uniqueIndex:idx_users_company_email" json:"company_id"`
	Name         string `gorm:"size:256;not null" json:"name"`
	Email        string `gorm:"size:256;not null;uniqueIndex:idx_users_company_email" json:"email"`
	PasswordHash string `gorm:"size:256;not null" json:"-"`
	Role         Role   `gorm:"size:32;not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`

	// Associations
	Company Company `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
