package model

import "time"

// Run is an append-only usage event logged against a machine. It is
// attributed either to a registered user or to a free-text operator
// name; repeated identical runs are legitimate.
type Run struct {
	ID           int64   `gorm:"primaryKey" json:"id"`
	MachineID    int64   `gorm:"index;not null" json:"machine_id"`
	UserID       *int64  `json:"user_id"`
	OperatorName *string `gorm:"size:256" json:"operator_name"`
	Description  string  `gorm:"size:1024" json:"description"`
	RunTime      time.Time `gorm:"index;not null" json:"run_time"`

	// Associations
	Machine Machine `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
