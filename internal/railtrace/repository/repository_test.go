package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/bitfantasy/railtrace/internal/railtrace/lifecycle"
	"github.com/bitfantasy/railtrace/internal/railtrace/repository"
	"github.com/bitfantasy/railtrace/internal/railtrace/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newComponent(code, qr, token string) *entity.Component {
	now := time.Now().UTC()
	return &entity.Component{
		ID:               repository.NewID(),
		ComponentID:      code,
		QRCode:           qr,
		UUID:             token,
		ItemCode:         "ERC-MK3",
		ComponentName:    "Elastic Rail Clip",
		UnitWeight:       decimal.RequireFromString("0.905"),
		IRSSpecification: "IRS T-31",
		ManufacturerID:   "m-acme",
		ProductionDate:   now,
		WarrantyPeriod:   24,
		ExpectedExpiry:   lifecycle.ExpectedExpiry(now, 24),
		GeneratedAt:      now,
		Status:           lifecycle.StatusManufactured,
		QCStatus:         lifecycle.QCPending,
		QRData:           entity.QRDataPending,
		UpdatedAt:        now,
	}
}

func TestSequenceIsAtomic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	const n = 40
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := repos.Sequence.Next(ctx, "20240309")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "missing %d", i)
	}

	other, err := repos.Sequence.Next(ctx, "20240310")
	require.NoError(t, err)
	assert.EqualValues(t, 1, other)
}

func TestInsertComponentDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	require.NoError(t, repos.InsertComponent(ctx, newComponent("COMP20240309000001", "QR20240309aaaaaaaa", "token-aaaaaaaa")))
	err := repos.InsertComponent(ctx, newComponent("COMP20240309000001", "QR20240309bbbbbbbb", "token-bbbbbbbb"))
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	_, err = repos.FindComponent(ctx, repository.NewID())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpdateComponentIf(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	c := newComponent("COMP20240309000002", "QR20240309cccccccc", "token-cccccccc")
	require.NoError(t, repos.InsertComponent(ctx, c))

	failed := lifecycle.QCFailed
	replace := lifecycle.StatusNeedsReplacement
	ok, err := repos.UpdateComponentIf(ctx, c.ID,
		entity.ComponentCondition{QCStatuses: lifecycle.QCStatusesBefore(lifecycle.QCFailed)},
		entity.ComponentPatch{QCStatus: &failed, Status: &replace, UpdatedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, ok)

	passed := lifecycle.QCPassed
	ok, err = repos.UpdateComponentIf(ctx, c.ID,
		entity.ComponentCondition{QCStatuses: lifecycle.QCStatusesBefore(lifecycle.QCPassed)},
		entity.ComponentPatch{QCStatus: &passed, UpdatedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repos.FindComponentByCode(ctx, c.ComponentID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.QCFailed, got.QCStatus)
	assert.Equal(t, lifecycle.StatusNeedsReplacement, got.Status)
	assert.True(t, got.QRPending())
}

func TestInTxRollsBack(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	c := newComponent("COMP20240309000003", "QR20240309dddddddd", "token-dddddddd")
	err := repos.InTx(ctx, func(tx repository.Store) error {
		if err := tx.InsertComponent(ctx, c); err != nil {
			return err
		}
		return tx.InsertComponent(ctx, newComponent("COMP20240309000003", "QR20240309eeeeeeee", "token-eeeeeeee"))
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)

	_, err = repos.FindComponent(ctx, c.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInspectionHistoryNewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	for i, outcome := range []lifecycle.Outcome{lifecycle.OutcomeOK, lifecycle.OutcomeDefected} {
		require.NoError(t, repos.InsertInspection(ctx, &entity.Inspection{
			ID:          repository.NewID(),
			ComponentID: "c1",
			Outcome:     outcome,
			InspectedBy: "inspector",
			InspectedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	items, err := repos.ListInspectionsByComponent(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, lifecycle.OutcomeDefected, items[0].Outcome)
}

func TestManufacturerLookup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()
	testutil.SeedManufacturer(t, db, "m-acme", "acme", "Acme Rail Works")

	m, err := repos.FindManufacturerByUsername(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "m-acme", m.ID)

	_, err = repos.FindManufacturer(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestActorIDsFitUUIDUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	actor := "3f2c9a4e-8b1d-4c6f-9e2a-7d5b0c1e4f8a"
	require.Len(t, actor, 36)

	c := newComponent("COMP20240309000004", "QR20240309ffffffff", "token-ffffffff")
	require.NoError(t, repos.InsertComponent(ctx, c))

	installed := lifecycle.StatusInstalled
	location := "KM 12.4 DN"
	ok, err := repos.UpdateComponentIf(ctx, c.ID,
		entity.ComponentCondition{Statuses: []lifecycle.Status{lifecycle.StatusManufactured}},
		entity.ComponentPatch{Status: &installed, InstalledBy: &actor, InstallationLocation: &location, InspectorID: &actor, UpdatedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repos.InsertInspection(ctx, &entity.Inspection{
		ID:          repository.NewID(),
		ComponentID: c.ID,
		Outcome:     lifecycle.OutcomeOK,
		InspectedBy: actor,
		InspectedAt: time.Now(),
	}))
	require.NoError(t, repos.InsertActivity(ctx, &entity.ComponentActivity{
		ID:           repository.NewID(),
		EntityID:     c.ID,
		EntityCode:   c.ComponentID,
		Action:       entity.ActionInstall,
		OperatorID:   actor,
		OperatorRole: "INSTALLATION_TEAM",
		CreatedAt:    time.Now(),
	}))

	got, err := repos.FindComponent(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InstalledBy)
	assert.Equal(t, actor, *got.InstalledBy)

	inspections, err := repos.ListInspectionsByComponent(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, inspections, 1)
	assert.Equal(t, actor, inspections[0].InspectedBy)

	activity, err := repos.ListActivities(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, actor, activity[0].OperatorID)
}
