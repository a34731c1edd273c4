package store

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smartfiller-backend/internal/model"
)

var testDBSeq atomic.Int64

// newTestDB opens a fresh in-memory SQLite database with the schema
// migrated. Each call gets its own namespace so tests stay isolated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Company{},
		&model.User{},
		&model.Machine{},
		&model.MachineAccess{},
		&model.Run{},
		&model.MachineFile{},
		&model.PushSubscription{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedCompany(t *testing.T, db *gorm.DB, name string) *model.Company {
	t.Helper()
	company := model.Company{Name: name, Location: "Testville"}
	require.NoError(t, db.Create(&company).Error)
	return &company
}

func seedUser(t *testing.T, db *gorm.DB, companyID int64, name string, role model.Role, createdAt time.Time) *model.User {
	t.Helper()
	user := model.User{
		CompanyID:    companyID,
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
		CreatedAt:    createdAt,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")

	t.Run("creates controller", func(t *testing.T) {
		user, err := s.CreateUser(ctx, company.ID, "Carol", "carol@example.com", "hash", model.RoleController)
		require.NoError(t, err)
		assert.Equal(t, model.RoleController, user.Role)
		assert.Equal(t, company.ID, user.CompanyID)
	})

	t.Run("rejects admin role", func(t *testing.T) {
		_, err := s.CreateUser(ctx, company.ID, "Eve", "eve@example.com", "hash", model.RoleAdmin)
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := s.CreateUser(ctx, company.ID, "Eve", "eve@example.com", "hash", model.Role("superuser"))
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("rejects duplicate email in company", func(t *testing.T) {
		_, err := s.CreateUser(ctx, company.ID, "Carol Again", "carol@example.com", "hash", model.RoleViewer)
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("same email allowed in another company", func(t *testing.T) {
		other := seedCompany(t, db, "Globex")
		user, err := s.CreateUser(ctx, other.ID, "Carol Elsewhere", "carol@example.com", "hash", model.RoleViewer)
		require.NoError(t, err)
		assert.Equal(t, other.ID, user.CompanyID)
	})

	t.Run("rejects unknown company", func(t *testing.T) {
		_, err := s.CreateUser(ctx, 9999, "Nobody", "nobody@example.com", "hash", model.RoleViewer)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListCompanyUsersOrdering(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Insert out of order so the result cannot be storage order.
	seedUser(t, db, company.ID, "viewer-late", model.RoleViewer, base.Add(3*time.Hour))
	seedUser(t, db, company.ID, "controller-b", model.RoleController, base.Add(2*time.Hour))
	seedUser(t, db, company.ID, "admin-a", model.RoleAdmin, base.Add(1*time.Hour))
	seedUser(t, db, company.ID, "viewer-early", model.RoleViewer, base)
	seedUser(t, db, company.ID, "controller-a", model.RoleController, base.Add(30*time.Minute))

	users, err := s.ListCompanyUsers(ctx, company.ID)
	require.NoError(t, err)

	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	assert.Equal(t, []string{"admin-a", "controller-a", "controller-b", "viewer-early", "viewer-late"}, names)
}

func TestListCompanyUsersScopedToCompany(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	acme := seedCompany(t, db, "Acme")
	globex := seedCompany(t, db, "Globex")
	seedUser(t, db, acme.ID, "acme-user", model.RoleViewer, time.Now())
	seedUser(t, db, globex.ID, "globex-user", model.RoleViewer, time.Now())

	users, err := s.ListCompanyUsers(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "acme-user", users[0].Name)
}

func TestGetUserProfile(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	user := seedUser(t, db, company.ID, "alice", model.RoleAdmin, time.Now())

	profile, err := s.GetUserProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Name)
	assert.Equal(t, "Acme", profile.CompanyName)
	assert.Equal(t, model.RoleAdmin, profile.Role)

	_, err = s.GetUserProfile(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateMachineGrantsCreatorAdmin(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())

	machine := model.Machine{
		CompanyID: company.ID,
		Name:      "Filler 1",
		CreatedBy: admin.ID,
	}
	require.NoError(t, s.CreateMachine(ctx, &machine))
	require.NotZero(t, machine.ID)
	assert.Equal(t, model.StatusIdle, machine.Status)

	role, okAccess, err := s.MachineRole(ctx, admin.ID, machine.ID)
	require.NoError(t, err)
	require.True(t, okAccess, "creator must hold an access row immediately after creation")
	assert.Equal(t, model.RoleAdmin, role)
}

func TestCreateMachineRejectsInvalidStatus(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())

	machine := model.Machine{
		CompanyID: company.ID,
		Name:      "Filler 1",
		Status:    model.MachineStatus("Exploded"),
		CreatedBy: admin.ID,
	}
	assert.ErrorIs(t, s.CreateMachine(context.Background(), &machine), ErrInvalidStatus)
}

func TestListAccessibleMachines(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())
	other := seedUser(t, db, company.ID, "other-admin", model.RoleAdmin, time.Now())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := model.Machine{CompanyID: company.ID, Name: "older", CreatedBy: admin.ID, CreatedAt: base}
	require.NoError(t, s.CreateMachine(ctx, &first))
	second := model.Machine{CompanyID: company.ID, Name: "newer", CreatedBy: admin.ID, CreatedAt: base.Add(time.Hour)}
	require.NoError(t, s.CreateMachine(ctx, &second))
	unassigned := model.Machine{CompanyID: company.ID, Name: "not-mine", CreatedBy: other.ID, CreatedAt: base.Add(2 * time.Hour)}
	require.NoError(t, s.CreateMachine(ctx, &unassigned))

	machines, err := s.ListAccessibleMachines(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, machines, 2, "company role must not grant visibility without an access row")
	assert.Equal(t, "newer", machines[0].Name)
	assert.Equal(t, "older", machines[1].Name)
}

func TestAssignMachineRoleUpsert(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())
	target := seedUser(t, db, company.ID, "target", model.RoleViewer, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &machine))

	require.NoError(t, s.AssignMachineRole(ctx, machine.ID, target.ID, model.RoleViewer))
	require.NoError(t, s.AssignMachineRole(ctx, machine.ID, target.ID, model.RoleController))

	var count int64
	require.NoError(t, db.Model(&model.MachineAccess{}).
		Where("user_id = ? AND machine_id = ?", target.ID, machine.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count, "reassignment must not duplicate rows")

	role, okAccess, err := s.MachineRole(ctx, target.ID, machine.ID)
	require.NoError(t, err)
	require.True(t, okAccess)
	assert.Equal(t, model.RoleController, role, "latest role wins")
}

func TestAssignMachineRoleRejectsAdmin(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())
	target := seedUser(t, db, company.ID, "target", model.RoleViewer, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &machine))

	err := s.AssignMachineRole(ctx, machine.ID, target.ID, model.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, okAccess, err := s.MachineRole(ctx, target.ID, machine.ID)
	require.NoError(t, err)
	assert.False(t, okAccess, "rejected assignment must not leave a row")
}

func TestGetMachineDetailCollapsesDenialAndAbsence(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())
	outsider := seedUser(t, db, company.ID, "outsider", model.RoleViewer, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &machine))

	_, deniedErr := s.GetMachineDetail(ctx, machine.ID, outsider.ID)
	_, absentErr := s.GetMachineDetail(ctx, 424242, outsider.ID)
	assert.ErrorIs(t, deniedErr, ErrAccessDenied)
	assert.ErrorIs(t, absentErr, ErrAccessDenied)
	assert.Equal(t, deniedErr, absentErr, "denial and absence must be indistinguishable")
}

func TestGetMachineDetail(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &machine))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	operator := "Night Shift"
	require.NoError(t, s.LogRun(ctx, &model.Run{MachineID: machine.ID, UserID: &admin.ID, Description: "first", RunTime: base}))
	require.NoError(t, s.LogRun(ctx, &model.Run{MachineID: machine.ID, OperatorName: &operator, Description: "second", RunTime: base.Add(time.Hour)}))

	require.NoError(t, s.CreateMachineFile(ctx, &model.MachineFile{
		MachineID: machine.ID, UploadedBy: admin.ID, Filename: "abc.pdf", OriginalName: "manual.pdf",
	}))

	detail, err := s.GetMachineDetail(ctx, machine.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", detail.CreatedByName)

	require.Len(t, detail.Runs, 2)
	assert.Equal(t, "second", detail.Runs[0].Description, "runs must be newest first")
	require.NotNil(t, detail.Runs[0].OperatorName)
	assert.Equal(t, "Night Shift", *detail.Runs[0].OperatorName)
	require.NotNil(t, detail.Runs[1].UserName)
	assert.Equal(t, "admin", *detail.Runs[1].UserName)

	require.Len(t, detail.Files, 1)
	assert.Equal(t, "manual.pdf", detail.Files[0].OriginalName)
	assert.Equal(t, "admin", detail.Files[0].UploadedByName)
}

func TestUpdateMachineStatus(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &machine))

	require.NoError(t, s.UpdateMachineStatus(ctx, machine.ID, model.StatusRunning))

	var reloaded model.Machine
	require.NoError(t, db.First(&reloaded, machine.ID).Error)
	assert.Equal(t, model.StatusRunning, reloaded.Status)

	assert.ErrorIs(t, s.UpdateMachineStatus(ctx, machine.ID, model.MachineStatus("Broken")), ErrInvalidStatus)
	assert.ErrorIs(t, s.UpdateMachineStatus(ctx, 424242, model.StatusIdle), ErrNotFound)
}

func TestUpdatePasswordHash(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	user := seedUser(t, db, company.ID, "alice", model.RoleViewer, time.Now())

	require.NoError(t, s.UpdatePasswordHash(ctx, user.ID, "newhash"))

	var reloaded model.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, "newhash", reloaded.PasswordHash)

	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, 9999, "hash"), ErrNotFound)
}

func TestGetRunStats(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "Alice", model.RoleAdmin, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &machine))

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	longAgo := today.AddDate(0, 0, -90)

	operator := "Bob"
	require.NoError(t, s.LogRun(ctx, &model.Run{MachineID: machine.ID, OperatorName: &operator, Description: "r1", RunTime: yesterday}))
	require.NoError(t, s.LogRun(ctx, &model.Run{MachineID: machine.ID, OperatorName: &operator, Description: "r2", RunTime: today.Add(-time.Hour)}))
	require.NoError(t, s.LogRun(ctx, &model.Run{MachineID: machine.ID, OperatorName: &operator, Description: "r3", RunTime: today}))
	require.NoError(t, s.LogRun(ctx, &model.Run{MachineID: machine.ID, UserID: &admin.ID, Description: "r0", RunTime: longAgo}))

	stats, err := s.GetRunStats(ctx, machine.ID, 30)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.Summary.TotalRuns, "summary counts the full ledger")
	require.NotNil(t, stats.Summary.LastRun)
	assert.Equal(t, today.Unix(), stats.Summary.LastRun.Unix())
	require.NotNil(t, stats.Summary.TopOperator)
	assert.Equal(t, "Bob", *stats.Summary.TopOperator)

	// The 90-day-old run falls outside the 30-day history window.
	require.Len(t, stats.History, 2)
	assert.Equal(t, yesterday.Format("2006-01-02"), stats.History[0].Date)
	assert.Equal(t, int64(1), stats.History[0].TotalRuns)
	assert.Equal(t, today.Format("2006-01-02"), stats.History[1].Date)
	assert.Equal(t, int64(2), stats.History[1].TotalRuns)
}

func TestGetRunStatsEmptyLedger(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(context.Background(), &machine))

	stats, err := s.GetRunStats(context.Background(), machine.ID, 30)
	require.NoError(t, err)
	assert.Zero(t, stats.Summary.TotalRuns)
	assert.Nil(t, stats.Summary.LastRun)
	assert.Nil(t, stats.Summary.TopOperator)
	assert.Empty(t, stats.History)
}

func TestMachineFiles(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &machine))

	file := model.MachineFile{MachineID: machine.ID, UploadedBy: admin.ID, Filename: "abc.pdf", OriginalName: "manual.pdf"}
	require.NoError(t, s.CreateMachineFile(ctx, &file))
	require.NotZero(t, file.ID)

	fetched, err := s.GetMachineFile(ctx, machine.ID, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", fetched.OriginalName)

	// Wrong machine id must not find the file.
	_, err = s.GetMachineFile(ctx, machine.ID+1, file.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	listed, err := s.ListMachineFiles(ctx, machine.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "manual.pdf", listed[0].OriginalName)
	assert.Equal(t, "admin", listed[0].UploadedByName)

	empty, err := s.ListMachineFiles(ctx, machine.ID+1)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, s.DeleteMachineFile(ctx, file.ID))
	_, err = s.GetMachineFile(ctx, machine.ID, file.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteMachineFile(ctx, file.ID), ErrNotFound)
}

func TestSubscriptions(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())

	m1 := model.Machine{CompanyID: company.ID, Name: "m1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &m1))
	m2 := model.Machine{CompanyID: company.ID, Name: "m2", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &m2))

	sub := model.PushSubscription{Endpoint: "https://push.example/1", P256DH: "k", Auth: "a"}
	require.NoError(t, s.UpsertSubscription(ctx, &sub, admin.ID, []int64{m1.ID, m2.ID}))

	fetched, err := s.GetSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Len(t, fetched.Machines, 2)

	// Re-subscribing replaces the machine list.
	resub := model.PushSubscription{Endpoint: "https://push.example/1", P256DH: "k2", Auth: "a2"}
	require.NoError(t, s.UpsertSubscription(ctx, &resub, admin.ID, []int64{m2.ID}))

	fetched, err = s.GetSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	require.Len(t, fetched.Machines, 1)
	assert.Equal(t, m2.ID, fetched.Machines[0].ID)
	assert.Equal(t, "k2", fetched.P256DH)

	require.NoError(t, s.DeleteSubscription(ctx, sub.Endpoint))
	_, err = s.GetSubscription(ctx, sub.Endpoint)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertSubscriptionFiltersByAccess(t *testing.T) {
	db := newTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()
	company := seedCompany(t, db, "Acme")
	admin := seedUser(t, db, company.ID, "admin", model.RoleAdmin, time.Now())
	outsider := seedUser(t, db, company.ID, "outsider", model.RoleAdmin, time.Now())

	machine := model.Machine{CompanyID: company.ID, Name: "Filler 1", CreatedBy: admin.ID}
	require.NoError(t, s.CreateMachine(ctx, &machine))

	// No access row: the machine id is dropped, exactly as an id that
	// does not exist is.
	sub := model.PushSubscription{Endpoint: "https://push.example/out", P256DH: "k", Auth: "a"}
	require.NoError(t, s.UpsertSubscription(ctx, &sub, outsider.ID, []int64{machine.ID, machine.ID + 100}))

	fetched, err := s.GetSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Empty(t, fetched.Machines)

	// A mixed list keeps only the granted machine.
	require.NoError(t, s.AssignMachineRole(ctx, machine.ID, outsider.ID, model.RoleViewer))
	require.NoError(t, s.UpsertSubscription(ctx, &sub, outsider.ID, []int64{machine.ID, machine.ID + 100}))

	fetched, err = s.GetSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	require.Len(t, fetched.Machines, 1)
	assert.Equal(t, machine.ID, fetched.Machines[0].ID)
}
