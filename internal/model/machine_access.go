package model

// MachineAccess maps (user, machine) to a per-machine role. It is the
// sole source of machine-level capability: a company role never grants
// machine access by itself. One row per (user, machine) pair, upsertable.
type MachineAccess struct {
	UserID    int64 `gorm:"primaryKey" json:"user_id"`
	MachineID int64 `gorm:"primaryKey" json:"machine_id"`
	Role      Role  `gorm:"size:32;not null" json:"role"`

	// Associations
	Machine Machine `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	User    User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
