package model

import "time"

// Company represents a tenant. Companies are created by the seeding
// command and are immutable at runtime.
type Company struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:256;not null" json:"name"`
	Location  string `gorm:"size:256" json:"location"`
	CreatedAt time.Time `json:"created_at"`

	// Associations
	Users    []User    `gorm:"foreignKey:CompanyID" json:"-"`
	Machines []Machine `gorm:"foreignKey:CompanyID" json:"-"`
}
