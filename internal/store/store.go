package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smartfiller-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Tenant directory
	CreateUser(ctx context.Context, companyID int64, name, email, passwordHash string, role model.Role) (*model.User, error)
	UserByEmail(ctx context.Context, companyID int64, email string) (*model.User, error)
	UserByID(ctx context.Context, userID int64) (*model.User, error)
	GetUserProfile(ctx context.Context, userID int64) (*Profile, error)
	ListCompanyUsers(ctx context.Context, companyID int64) ([]model.User, error)
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error

	// Resource registry
	CreateMachine(ctx context.Context, machine *model.Machine) error
	ListAccessibleMachines(ctx context.Context, userID int64) ([]model.Machine, error)
	GetMachineDetail(ctx context.Context, machineID, userID int64) (*MachineDetail, error)
	UpdateMachineStatus(ctx context.Context, machineID int64, status model.MachineStatus) error

	// Access control matrix
	AssignMachineRole(ctx context.Context, machineID, targetUserID int64, role model.Role) error
	MachineRole(ctx context.Context, userID, machineID int64) (model.Role, bool, error)

	// Activity ledger
	LogRun(ctx context.Context, run *model.Run) error
	GetRunStats(ctx context.Context, machineID int64, windowDays int) (*RunStats, error)

	// Files
	CreateMachineFile(ctx context.Context, file *model.MachineFile) error
	ListMachineFiles(ctx context.Context, machineID int64) ([]FileEntry, error)
	GetMachineFile(ctx context.Context, machineID, fileID int64) (*model.MachineFile, error)
	DeleteMachineFile(ctx context.Context, fileID int64) error

	// Push subscriptions
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription, userID int64, machineIDs []int64) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for components that need direct
// access (notification worker, migrations in tests).
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CreateUser inserts a user with a company-scoped unique email. Only
// controller and viewer are accepted here; admin accounts are created by
// the seeding path.
func (s *gormStore) CreateUser(ctx context.Context, companyID int64, name, email, passwordHash string, role model.Role) (*model.User, error) {
	if !role.Assignable() {
		return nil, ErrInvalidRole
	}

	user := model.User{
		CompanyID:    companyID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var companyCount int64
		if err := tx.Model(&model.Company{}).
			Where("id = ?", companyID).
			Count(&companyCount).Error; err != nil {
			return fmt.Errorf("failed to check company: %w", err)
		}
		if companyCount == 0 {
			return ErrNotFound
		}

		// The unique index on (company_id, email) is the authority on
		// duplicates; a pre-read would race with concurrent registrations.
		if err := tx.Create(&user).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateEmail
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// isUniqueViolation recognizes a unique-constraint failure across the
// supported drivers: gorm's translated error, sqlite's message, and
// postgres SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func (s *gormStore) UserByEmail(ctx context.Context, companyID int64, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND company_id = ?", email, companyID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *gormStore) UserByID(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserProfile joins the user to their company. A missing row means a
// deleted user is still holding a live token.
func (s *gormStore) GetUserProfile(ctx context.Context, userID int64) (*Profile, error) {
	var profile Profile
	err := s.db.WithContext(ctx).
		Model(&model.User{}).
		Select("users.id, users.name, users.email, users.role, users.company_id, companies.name as company_name").
		Joins("JOIN companies ON companies.id = users.company_id").
		Where("users.id = ?", userID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListCompanyUsers returns the company's users ordered by role tier
// (admin, controller, viewer) and creation time. The ordering is a
// presentation invariant, not a storage order.
func (s *gormStore) ListCompanyUsers(ctx context.Context, companyID int64) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("CASE role WHEN 'admin' THEN 1 WHEN 'controller' THEN 2 WHEN 'viewer' THEN 3 ELSE 4 END, created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *gormStore) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	res := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateMachine inserts the machine and grants the creator the admin
// machine role in one transaction. There is no window in which the
// machine exists without the creator's access row.
func (s *gormStore) CreateMachine(ctx context.Context, machine *model.Machine) error {
	if machine.Status == "" {
		machine.Status = model.StatusIdle
	}
	if !machine.Status.Valid() {
		return ErrInvalidStatus
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(machine).Error; err != nil {
			return fmt.Errorf("failed to create machine: %w", err)
		}
		access := model.MachineAccess{
			UserID:    machine.CreatedBy,
			MachineID: machine.ID,
			Role:      model.RoleAdmin,
		}
		if err := tx.Create(&access).Error; err != nil {
			return fmt.Errorf("failed to grant creator access: %w", err)
		}
		return nil
	})
}

// ListAccessibleMachines returns machines the user holds an access row
// for, newest first. A company admin gets no blanket visibility: the
// access matrix is the sole source of machine-level truth.
func (s *gormStore) ListAccessibleMachines(ctx context.Context, userID int64) ([]model.Machine, error) {
	var machines []model.Machine
	err := s.db.WithContext(ctx).
		Joins("JOIN machine_accesses ma ON ma.machine_id = machines.id").
		Where("ma.user_id = ?", userID).
		Order("machines.created_at DESC").
		Find(&machines).Error
	if err != nil {
		return nil, err
	}
	return machines, nil
}

// GetMachineDetail returns the machine with its run and file history.
// A missing machine and a missing access row both yield ErrAccessDenied.
func (s *gormStore) GetMachineDetail(ctx context.Context, machineID, userID int64) (*MachineDetail, error) {
	var machine model.Machine
	err := s.db.WithContext(ctx).
		Joins("JOIN machine_accesses ma ON ma.machine_id = machines.id").
		Where("machines.id = ? AND ma.user_id = ?", machineID, userID).
		First(&machine).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccessDenied
	}
	if err != nil {
		return nil, err
	}

	detail := MachineDetail{Machine: machine}

	var creator model.User
	if err := s.db.WithContext(ctx).
		Select("name").
		First(&creator, machine.CreatedBy).Error; err == nil {
		detail.CreatedByName = creator.Name
	}

	if err := s.db.WithContext(ctx).
		Model(&model.Run{}).
		Select("runs.id, runs.machine_id, runs.user_id, runs.operator_name, runs.description, runs.run_time, users.name as user_name").
		Joins("LEFT JOIN users ON users.id = runs.user_id").
		Where("runs.machine_id = ?", machineID).
		Order("runs.run_time DESC").
		Scan(&detail.Runs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch run history: %w", err)
	}

	files, err := s.ListMachineFiles(ctx, machineID)
	if err != nil {
		return nil, err
	}
	detail.Files = files

	return &detail, nil
}

// ListMachineFiles returns the machine's files with uploader names
// joined, newest first. Access is the caller's concern; this is a pure
// lookup.
func (s *gormStore) ListMachineFiles(ctx context.Context, machineID int64) ([]FileEntry, error) {
	files := make([]FileEntry, 0)
	err := s.db.WithContext(ctx).
		Model(&model.MachineFile{}).
		Select("machine_files.id, machine_files.machine_id, machine_files.uploaded_by, machine_files.filename, machine_files.original_name, machine_files.uploaded_at, users.name as uploaded_by_name").
		Joins("LEFT JOIN users ON users.id = machine_files.uploaded_by").
		Where("machine_files.machine_id = ?", machineID).
		Order("machine_files.uploaded_at DESC").
		Scan(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file list: %w", err)
	}
	return files, nil
}

func (s *gormStore) UpdateMachineStatus(ctx context.Context, machineID int64, status model.MachineStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	res := s.db.WithContext(ctx).
		Model(&model.Machine{}).
		Where("id = ?", machineID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignMachineRole upserts the (user, machine) access row via the
// store's native conflict resolution, so two admins reassigning the same
// user concurrently cannot lose an update. Admin is never assignable
// here; only the creator path in CreateMachine grants it.
func (s *gormStore) AssignMachineRole(ctx context.Context, machineID, targetUserID int64, role model.Role) error {
	if !role.Assignable() {
		return ErrInvalidRole
	}
	access := model.MachineAccess{
		UserID:    targetUserID,
		MachineID: machineID,
		Role:      role,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "machine_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&access).Error
}

// MachineRole is a pure lookup of the (user, machine) access row.
func (s *gormStore) MachineRole(ctx context.Context, userID, machineID int64) (model.Role, bool, error) {
	var access model.MachineAccess
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND machine_id = ?", userID, machineID).
		First(&access).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return access.Role, true, nil
}

// LogRun appends a run to the ledger. Repeated identical runs are
// legitimate; there is no uniqueness constraint.
func (s *gormStore) LogRun(ctx context.Context, run *model.Run) error {
	if run.RunTime.IsZero() {
		run.RunTime = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(run).Error
}

// GetRunStats recomputes the statistics view over the machine's ledger.
// The ledger is low-volume and append-only, so the aggregation is done
// over the fetched rows rather than behind a cache.
func (s *gormStore) GetRunStats(ctx context.Context, machineID int64, windowDays int) (*RunStats, error) {
	if windowDays <= 0 {
		windowDays = 30
	}

	var runs []RunEntry
	err := s.db.WithContext(ctx).
		Model(&model.Run{}).
		Select("runs.id, runs.user_id, runs.operator_name, runs.run_time, users.name as user_name").
		Joins("LEFT JOIN users ON users.id = runs.user_id").
		Where("runs.machine_id = ?", machineID).
		Order("runs.run_time ASC").
		Scan(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	stats := RunStats{History: []RunHistoryPoint{}}
	stats.Summary.TotalRuns = int64(len(runs))
	if len(runs) > 0 {
		last := runs[len(runs)-1].RunTime
		stats.Summary.LastRun = &last
	}

	// Per-day counts within the window.
	windowStart := time.Now().UTC().AddDate(0, 0, -windowDays)
	perDay := make(map[string]int64)
	operatorCounts := make(map[string]int64)
	for _, r := range runs {
		if !r.RunTime.Before(windowStart) {
			perDay[r.RunTime.UTC().Format("2006-01-02")]++
		}
		if label := operatorLabel(r); label != "" {
			operatorCounts[label]++
		}
	}

	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		stats.History = append(stats.History, RunHistoryPoint{Date: day, TotalRuns: perDay[day]})
	}

	if top := topOperator(operatorCounts); top != "" {
		stats.Summary.TopOperator = &top
	}

	return &stats, nil
}

// operatorLabel resolves a run's attribution: the free-text operator
// name wins, then the attributed user's display name.
func operatorLabel(r RunEntry) string {
	if r.OperatorName != nil && *r.OperatorName != "" {
		return *r.OperatorName
	}
	if r.UserName != nil && *r.UserName != "" {
		return *r.UserName
	}
	return ""
}

// topOperator picks the most frequent label, breaking ties by name so
// the result is stable.
func topOperator(counts map[string]int64) string {
	var best string
	var bestCount int64
	for label, count := range counts {
		if count > bestCount || (count == bestCount && (best == "" || label < best)) {
			best = label
			bestCount = count
		}
	}
	return best
}

func (s *gormStore) CreateMachineFile(ctx context.Context, file *model.MachineFile) error {
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(file).Error
}

func (s *gormStore) GetMachineFile(ctx context.Context, machineID, fileID int64) (*model.MachineFile, error) {
	var file model.MachineFile
	err := s.db.WithContext(ctx).
		Where("id = ? AND machine_id = ?", fileID, machineID).
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (s *gormStore) DeleteMachineFile(ctx context.Context, fileID int64) error {
	res := s.db.WithContext(ctx).Delete(&model.MachineFile{}, fileID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertSubscription creates or replaces a push subscription and its
// machine associations in one transaction. The machine list is filtered
// through the caller's access rows; an id the user holds no grant for is
// dropped the same way an id that does not exist is, so the result
// cannot confirm a machine's existence.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription, userID int64, machineIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		var machines []model.Machine
		if len(machineIDs) > 0 {
			if err := tx.
				Joins("JOIN machine_accesses ma ON ma.machine_id = machines.id").
				Where("ma.user_id = ? AND machines.id IN ?", userID, machineIDs).
				Find(&machines).Error; err != nil {
				return err
			}
		}

		return tx.Model(sub).Association("Machines").Replace(&machines)
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).
		Preload("Machines").
		First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}
