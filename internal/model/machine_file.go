package model

import "time"

// MachineFile records an uploaded file attached to a machine. Filename
// is the generated storage name on disk; OriginalName is what the
// uploader called it.
type MachineFile struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	MachineID    int64  `gorm:"index;not null" json:"machine_id"`
	UploadedBy   int64  `gorm:"not null" json:"uploaded_by"`
	Filename     string `gorm:"size:512;not null" json:"filename"`
	OriginalName string `gorm:"size:512;not null" json:"originalname"`
	UploadedAt   time.Time `json:"uploaded_at"`

	// Associations
	Machine Machine `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
