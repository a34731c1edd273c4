package store

import (
	"time"

	"smartfiller-backend/internal/model"
)

// Profile is a user joined to their company, as returned to the client
// after token verification.
type Profile struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	CompanyID   int64      `json:"company_id"`
	CompanyName string     `json:"company_name"`
}

// RunEntry is a run joined to the name of the attributed user, if any.
type RunEntry struct {
	ID           int64     `json:"id"`
	MachineID    int64     `json:"machine_id"`
	UserID       *int64    `json:"user_id"`
	UserName     *string   `json:"user_name"`
	OperatorName *string   `json:"operator_name"`
	Description  string    `json:"description"`
	RunTime      time.Time `json:"run_time"`
}

// FileEntry is a machine file joined to the uploader's name.
type FileEntry struct {
	ID             int64     `json:"id"`
	MachineID      int64     `json:"machine_id"`
	UploadedBy     int64     `json:"uploaded_by"`
	UploadedByName string    `json:"uploaded_by_name"`
	Filename       string    `json:"filename"`
	OriginalName   string    `json:"originalname"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// MachineDetail is the full machine view: the machine row, the creator's
// display name, and the machine's run and file history, newest first.
type MachineDetail struct {
	model.Machine
	CreatedByName string     `json:"created_by_name"`
	Runs          []RunEntry `json:"runs"`
	Files         []FileEntry `json:"files"`
}

// RunHistoryPoint is the number of runs logged on a single day.
type RunHistoryPoint struct {
	Date      string `json:"date"`
	TotalRuns int64  `json:"total_runs"`
}

// RunSummary aggregates the full run ledger of a machine.
type RunSummary struct {
	TotalRuns   int64      `json:"total_runs"`
	LastRun     *time.Time `json:"last_run"`
	TopOperator *string    `json:"top_operator"`
}

// RunStats is the derived statistics view over a machine's run ledger.
// It is recomputed on every call; the ledger is append-only and
// low-volume, so no caching layer sits in front of it.
type RunStats struct {
	History []RunHistoryPoint `json:"history"`
	Summary RunSummary        `json:"summary"`
}
