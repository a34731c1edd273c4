package model

import "time"

// MachineStatus is the operational state of a machine.
type MachineStatus string

const (
	StatusRunning MachineStatus = "Running"
	StatusIdle    MachineStatus = "Idle"
	StatusError   MachineStatus = "Error"
	StatusOffline MachineStatus = "Offline"
)

// Valid reports whether s is one of the recognized statuses.
func (s MachineStatus) Valid() bool {
	switch s {
	case StatusRunning, StatusIdle, StatusError, StatusOffline:
		return true
	}
	return false
}

// Machine represents a tracked machine belonging to a company.
type Machine struct {
	ID          int64         `gorm:"primaryKey" json:"id"`
	CompanyID   int64         `gorm:"index;not null" json:"company_id"`
	Name        string        `gorm:"size:256;not null" json:"name"`
	Description string        `gorm:"size:1024" json:"description"`
	Location    string        `gorm:"size:256" json:"location"`
	Status      MachineStatus `gorm:"size:32;not null;default:Idle" json:"status"`
	CreatedBy   int64         `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`

	// Associations
	Company Company `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
