package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/apperr"
	"github.com/bitfantasy/railtrace/internal/railtrace/authz"
	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/bitfantasy/railtrace/internal/railtrace/events"
	"github.com/bitfantasy/railtrace/internal/railtrace/lifecycle"
	"github.com/bitfantasy/railtrace/internal/railtrace/qrcode"
	"github.com/bitfantasy/railtrace/internal/railtrace/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	acme      = authz.Actor{ID: "user-acme", Username: "acme", Role: authz.RoleManufacturer}
	rival     = authz.Actor{ID: "user-rival", Username: "rival", Role: authz.RoleManufacturer}
	installer = authz.Actor{ID: "user-installer", Username: "installer", Role: authz.RoleInstallationTeam}
	inspector = authz.Actor{ID: "user-inspector", Username: "inspector", Role: authz.RoleQualityInspector}
	field     = authz.Actor{ID: "user-field", Username: "field", Role: authz.RoleFieldInspector}
)

var fixedNow = time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Services
	store    *memory.Store
	recorder *events.Recorder
}

type option func(*Deps)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	store := memory.New()
	store.AddManufacturer(entity.Manufacturer{ID: "m-acme", Username: "acme", CompanyName: "Acme Rail Works"})
	store.AddManufacturer(entity.Manufacturer{ID: "m-rival", Username: "rival", CompanyName: "Rival Castings"})

	enc, err := qrcode.NewEncoder(qrcode.DefaultConfig())
	require.NoError(t, err)

	rec := events.NewRecorder(256)
	d := Deps{
		Store:     store,
		Sequencer: store,
		Encoder:   enc,
		Publisher: rec,
		Logger:    zap.NewNop(),
		Clock:     func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&d)
	}
	return &fixture{svc: NewServices(d), store: store, recorder: rec}
}

func sampleInput() AllocateInput {
	warranty := 24
	return AllocateInput{
		ItemCode:         "ERC-MK3",
		ComponentName:    "Elastic Rail Clip",
		Specifications:   map[string]interface{}{"material": "spring steel", "grade": "55Si7"},
		UnitWeight:       decimal.RequireFromString("0.905"),
		IRSSpecification: "IRS T-31",
		ProductionDate:   NewDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		WarrantyPeriod:   &warranty,
	}
}

func (f *fixture) allocate(t *testing.T) *entity.Component {
	t.Helper()
	c, err := f.svc.Component.Allocate(context.Background(), acme, sampleInput())
	require.NoError(t, err)
	return c
}

func ptr[T any](v T) *T { return &v }

func TestAllocate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.allocate(t)

	assert.Regexp(t, `^[0-9a-f]{32}$`, c.ID)
	assert.Equal(t, "COMP20240309000001", c.ComponentID)
	assert.Regexp(t, `^QR20240309.{8}$`, c.QRCode)
	assert.Regexp(t, `^BATCH20240309.{4}$`, c.BatchNumber)
	assert.Regexp(t, `^SER20240309.{6}$`, c.SerialNumber)
	assert.Equal(t, "m-acme", c.ManufacturerID)
	assert.Equal(t, "Acme Rail Works", c.Manufacturer)
	assert.Equal(t, lifecycle.StatusManufactured, c.Status)
	assert.Equal(t, lifecycle.QCPending, c.QCStatus)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), c.ExpectedExpiry)
	assert.False(t, c.QRPending())

	// QR payload is the storage key
	png, err := qrcode.ParseDataURI(c.QRData)
	require.NoError(t, err)
	payload, err := qrcode.Decode(png)
	require.NoError(t, err)
	assert.Equal(t, c.ID, payload)

	// expiry is stable across reads
	again, err := f.svc.Component.Get(ctx, inspector, c.ComponentID)
	require.NoError(t, err)
	assert.True(t, c.ExpectedExpiry.Equal(again.ExpectedExpiry))

	acts, err := f.svc.Component.Activity(ctx, inspector, c.ID)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, entity.ActionAttachQR, acts[0].Action)
	assert.Equal(t, entity.ActionAllocate, acts[1].Action)

	evs := f.recorder.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, events.ComponentAllocated, evs[0].Type)
}

func TestAllocateKeepsExplicitBatchAndDefaultsWarranty(t *testing.T) {
	f := newFixture(t)
	in := sampleInput()
	in.BatchNumber = "B-77"
	in.SerialNumber = "S-0042"
	in.WarrantyPeriod = nil
	in.ProductionDate = NewDate(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))

	c, err := f.svc.Component.Allocate(context.Background(), acme, in)
	require.NoError(t, err)
	assert.Equal(t, "B-77", c.BatchNumber)
	assert.Equal(t, "S-0042", c.SerialNumber)
	assert.Equal(t, DefaultWarrantyMonths, c.WarrantyPeriod)
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), c.ExpectedExpiry)
}

func TestAllocateConcurrentIdentifiersAreUnique(t *testing.T) {
	f := newFixture(t)
	const n = 64

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[string]bool{}
		qrs   = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := f.svc.Component.Allocate(context.Background(), acme, sampleInput())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			codes[c.ComponentID] = true
			qrs[c.QRCode] = true
		}()
	}
	wg.Wait()

	assert.Len(t, codes, n)
	assert.Len(t, qrs, n)
}

func TestAllocateRetriesGeneratedTokenOnConflict(t *testing.T) {
	tokens := []string{"token-00000001", "token-00000001", "token-00000002"}
	var mu sync.Mutex
	next := func() string {
		mu.Lock()
		defer mu.Unlock()
		tok := tokens[0]
		if len(tokens) > 1 {
			tokens = tokens[1:]
		}
		return tok
	}
	f := newFixture(t, func(d *Deps) { d.NewToken = next })

	first := f.allocate(t)
	second := f.allocate(t)

	assert.Equal(t, "token-00000001", first.UUID)
	assert.Equal(t, "token-00000002", second.UUID)
	assert.NotEqual(t, first.ComponentID, second.ComponentID)
}

func TestAllocateGivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.NewToken = func() string { return "always-the-same" }
		d.MaxRetries = 2
	})
	f.allocate(t)

	_, err := f.svc.Component.Allocate(context.Background(), acme, sampleInput())
	assert.ErrorIs(t, err, apperr.AllocationConflict)
}

func TestAllocateCallerTokenConflictIsNotRetried(t *testing.T) {
	f := newFixture(t)
	in := sampleInput()
	in.UUID = "3f2c9a10-caller-token"

	_, err := f.svc.Component.Allocate(context.Background(), acme, in)
	require.NoError(t, err)

	_, err = f.svc.Component.Allocate(context.Background(), acme, in)
	assert.ErrorIs(t, err, apperr.AllocationConflict)

	// the failed attempt drew exactly one extra sequence value
	n, _ := f.store.Next(context.Background(), "20240309")
	assert.EqualValues(t, 3, n)
}

func TestAllocateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*AllocateInput)
	}{
		{"missing name", func(in *AllocateInput) { in.ComponentName = " " }},
		{"missing item code", func(in *AllocateInput) { in.ItemCode = "" }},
		{"missing irs", func(in *AllocateInput) { in.IRSSpecification = "" }},
		{"zero weight", func(in *AllocateInput) { in.UnitWeight = decimal.Zero }},
		{"no production date", func(in *AllocateInput) { in.ProductionDate = Date{} }},
		{"negative warranty", func(in *AllocateInput) { in.WarrantyPeriod = ptr(-1) }},
		{"short uuid", func(in *AllocateInput) { in.UUID = "abc" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := sampleInput()
			tc.mutate(&in)
			_, err := f.svc.Component.Allocate(ctx, acme, in)
			assert.ErrorIs(t, err, apperr.InvalidArgument)
		})
	}
}

func TestAllocateAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Component.Allocate(ctx, authz.Actor{}, sampleInput())
	assert.ErrorIs(t, err, apperr.Unauthorized)

	_, err = f.svc.Component.Allocate(ctx, inspector, sampleInput())
	assert.ErrorIs(t, err, apperr.Forbidden)

	orphan := authz.Actor{ID: "user-x", Username: "nobody", Role: authz.RoleManufacturer}
	_, err = f.svc.Component.Allocate(ctx, orphan, sampleInput())
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestAllocateEncodingFailureLeavesPendingRecord(t *testing.T) {
	enc, err := qrcode.NewEncoder(qrcode.Config{MaxPayload: 8})
	require.NoError(t, err)
	f := newFixture(t, func(d *Deps) { d.Encoder = enc })
	ctx := context.Background()

	_, err = f.svc.Component.Allocate(ctx, acme, sampleInput())
	require.ErrorIs(t, err, apperr.EncodingError)

	items, total, err := f.svc.Component.ListOwn(ctx, acme, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, entity.QRDataPending, items[0].QRData)

	_, _, err = f.svc.Component.QRImage(ctx, inspector, items[0].ID)
	assert.ErrorIs(t, err, apperr.NotFound)
}

type fakeArtifacts struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *fakeArtifacts) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return key, nil
}

func TestAllocateMirrorsQRImage(t *testing.T) {
	art := &fakeArtifacts{}
	f := newFixture(t, func(d *Deps) { d.Artifacts = art })

	c := f.allocate(t)
	assert.Equal(t, "qr/"+c.ComponentID+".png", c.QRObjectKey)
	assert.Equal(t, []string{c.QRObjectKey}, art.keys)
}

func TestAllocateMirrorFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Artifacts = &fakeArtifacts{err: errors.New("bucket offline")} })

	c := f.allocate(t)
	assert.Empty(t, c.QRObjectKey)
	assert.False(t, c.QRPending())
}

func insertPending(t *testing.T, f *fixture, id, code, manufacturerID string) *entity.Component {
	t.Helper()
	c := &entity.Component{
		ID:             id,
		ComponentID:    code,
		QRCode:         "QR" + code,
		UUID:           "tok-" + code,
		ItemCode:       "SLP-60",
		ComponentName:  "Concrete Sleeper",
		UnitWeight:     decimal.NewFromInt(267),
		ManufacturerID: manufacturerID,
		ProductionDate: fixedNow,
		GeneratedAt:    fixedNow,
		Status:         lifecycle.StatusManufactured,
		QCStatus:       lifecycle.QCPending,
		QRData:         entity.QRDataPending,
	}
	require.NoError(t, f.store.InsertComponent(context.Background(), c))
	return c
}

func TestRegenerateQR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := insertPending(t, f, "0123456789abcdef0123456789abcdef", "COMP20240309000099", "m-acme")

	_, err := f.svc.Component.RegenerateQR(ctx, rival, pending.ComponentID)
	assert.ErrorIs(t, err, apperr.Forbidden)

	c, err := f.svc.Component.RegenerateQR(ctx, acme, pending.ComponentID)
	require.NoError(t, err)
	assert.False(t, c.QRPending())

	_, err = f.svc.Component.RegenerateQR(ctx, acme, pending.ComponentID)
	assert.ErrorIs(t, err, apperr.InvalidStateTransition)
}

func TestGetFallsBackToUnknownManufacturer(t *testing.T) {
	f := newFixture(t)
	orphan := insertPending(t, f, "ffffffffffffffffffffffffffffffff", "COMP20240309000500", "m-deleted")

	c, err := f.svc.Component.Get(context.Background(), installer, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.UnknownManufacturer, c.Manufacturer)
}

func TestGetIdentifierErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Component.Get(ctx, installer, "not-an-id")
	assert.ErrorIs(t, err, apperr.InvalidIdentifier)

	_, err = f.svc.Component.Get(ctx, installer, "00000000000000000000000000000000")
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = f.svc.Component.Get(ctx, installer, "COMP20991231000001")
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestOwnershipScopedOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)

	_, err := f.svc.Component.GetOwned(ctx, rival, c.ID)
	assert.ErrorIs(t, err, apperr.Forbidden)

	got, err := f.svc.Component.GetOwned(ctx, acme, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ComponentID, got.ComponentID)

	items, total, err := f.svc.Component.ListOwn(ctx, rival, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	_, _, err = f.svc.Component.List(ctx, acme, entity.ComponentFilter{}, 1, 20)
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, _, err = f.svc.Component.ListOwn(ctx, installer, 1, 20)
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestInstall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)
	f.recorder.Drain()

	got, err := f.svc.Component.Install(ctx, installer, c.ComponentID, InstallInput{Latitude: ptr(12.5), Longitude: ptr(77.25)})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusInstalled, got.Status)
	require.NotNil(t, got.InstallationLocation)
	assert.Equal(t, "12.5,77.25", *got.InstallationLocation)
	require.NotNil(t, got.InstalledBy)
	assert.Equal(t, installer.ID, *got.InstalledBy)
	assert.Equal(t, fixedNow, got.UpdatedAt)
	assert.Equal(t, c.ExpectedExpiry, got.ExpectedExpiry)
	assert.Equal(t, c.ManufacturerID, got.ManufacturerID)

	evs := f.recorder.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, events.ComponentInstalled, evs[0].Type)

	// relocation is allowed
	_, err = f.svc.Component.Install(ctx, installer, c.ComponentID, InstallInput{Latitude: ptr(13.0), Longitude: ptr(77.0)})
	assert.NoError(t, err)
}

func TestInstallErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)
	loc := InstallInput{Latitude: ptr(12.5), Longitude: ptr(77.25)}

	_, err := f.svc.Component.Install(ctx, installer, c.ID, InstallInput{Latitude: ptr(12.5)})
	assert.ErrorIs(t, err, apperr.InvalidArgument)

	_, err = f.svc.Component.Install(ctx, installer, c.ID, InstallInput{Latitude: ptr(91.0), Longitude: ptr(0.0)})
	assert.ErrorIs(t, err, apperr.InvalidArgument)

	_, err = f.svc.Component.Install(ctx, installer, "COMP-1", loc)
	assert.ErrorIs(t, err, apperr.InvalidIdentifier)

	_, err = f.svc.Component.Install(ctx, installer, "abcdefabcdefabcdefabcdefabcdefab", loc)
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = f.svc.Component.Install(ctx, inspector, c.ID, loc)
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = f.svc.Component.Install(ctx, authz.Actor{}, c.ID, loc)
	assert.ErrorIs(t, err, apperr.Unauthorized)
}

func TestDefectedComponentCannotBeInstalled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)

	_, err := f.svc.Inspection.Submit(ctx, inspector, SubmitInput{
		ComponentID: c.ComponentID,
		Status:      "DEFECTED",
		DefectType:  ptr("crack"),
		Comments:    ptr("hairline crack near toe"),
	})
	require.NoError(t, err)

	got, err := f.svc.Component.Get(ctx, installer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusNeedsReplacement, got.Status)
	assert.Equal(t, lifecycle.QCFailed, got.QCStatus)
	require.NotNil(t, got.InspectorID)
	assert.Equal(t, inspector.ID, *got.InspectorID)

	_, err = f.svc.Component.Install(ctx, installer, c.ID, InstallInput{Latitude: ptr(1.0), Longitude: ptr(2.0)})
	assert.ErrorIs(t, err, apperr.InvalidStateTransition)
}

func TestInstalledComponentCondemnedByDefect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)

	_, err := f.svc.Component.Install(ctx, installer, c.ID, InstallInput{Latitude: ptr(1.0), Longitude: ptr(2.0)})
	require.NoError(t, err)
	_, err = f.svc.Inspection.Submit(ctx, field, SubmitInput{ComponentID: c.ID, Status: "defected"})
	require.NoError(t, err)

	got, err := f.svc.Component.Get(ctx, installer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusNeedsReplacement, got.Status)
	assert.Equal(t, lifecycle.QCFailed, got.QCStatus)
}

func TestOKDoesNotOverrideDefected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)

	_, err := f.svc.Inspection.Submit(ctx, inspector, SubmitInput{ComponentID: c.ID, Status: "DEFECTED"})
	require.NoError(t, err)
	_, err = f.svc.Inspection.Submit(ctx, inspector, SubmitInput{ComponentID: c.ID, Status: "OK"})
	require.NoError(t, err)

	got, err := f.svc.Component.Get(ctx, installer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.QCFailed, got.QCStatus)
	assert.Equal(t, lifecycle.StatusNeedsReplacement, got.Status)

	history, err := f.svc.Inspection.History(ctx, installer, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestConcurrentOKAndDefectedDefectWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		c := f.allocate(t)

		var wg sync.WaitGroup
		for _, outcome := range []string{"OK", "DEFECTED"} {
			wg.Add(1)
			go func(outcome string) {
				defer wg.Done()
				_, err := f.svc.Inspection.Submit(ctx, inspector, SubmitInput{ComponentID: c.ID, Status: outcome})
				assert.NoError(t, err)
			}(outcome)
		}
		wg.Wait()

		history, err := f.svc.Inspection.History(ctx, inspector, c.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2, "round %d", i)

		got, err := f.svc.Component.Get(ctx, inspector, c.ID)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusNeedsReplacement, got.Status, "round %d", i)
		assert.Equal(t, lifecycle.QCFailed, got.QCStatus, "round %d", i)
	}
}

func TestInspectionOKAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)

	for i := 0; i < 2; i++ {
		in, err := f.svc.Inspection.Submit(ctx, inspector, SubmitInput{ComponentID: c.ID, Status: "ok", Comments: ptr("  ")})
		require.NoError(t, err)
		assert.Equal(t, lifecycle.OutcomeOK, in.Outcome)
		assert.Nil(t, in.Comments)
	}

	got, err := f.svc.Component.Get(ctx, inspector, c.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.QCPassed, got.QCStatus)
	assert.Equal(t, lifecycle.StatusManufactured, got.Status)
	require.NotNil(t, got.QCDate)

	history, err := f.svc.Inspection.History(ctx, inspector, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestInspectionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)

	_, err := f.svc.Inspection.Submit(ctx, inspector, SubmitInput{ComponentID: c.ID, Status: "MAYBE"})
	assert.ErrorIs(t, err, apperr.InvalidArgument)

	_, err = f.svc.Inspection.Submit(ctx, installer, SubmitInput{ComponentID: c.ID, Status: "OK"})
	assert.ErrorIs(t, err, apperr.Forbidden)

	_, err = f.svc.Inspection.Submit(ctx, inspector, SubmitInput{ComponentID: "x", Status: "OK"})
	assert.ErrorIs(t, err, apperr.InvalidIdentifier)

	_, err = f.svc.Inspection.History(ctx, inspector, "11111111111111111111111111111111")
	assert.ErrorIs(t, err, apperr.NotFound)

	history, err := f.svc.Inspection.History(ctx, inspector, c.ID)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestRecordMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)

	_, err := f.svc.Component.RecordMaintenance(ctx, field, c.ID, "greased")
	assert.ErrorIs(t, err, apperr.InvalidStateTransition)

	_, err = f.svc.Component.Install(ctx, installer, c.ID, InstallInput{Latitude: ptr(1.0), Longitude: ptr(2.0)})
	require.NoError(t, err)

	got, err := f.svc.Component.RecordMaintenance(ctx, field, c.ID, "greased")
	require.NoError(t, err)
	require.NotNil(t, got.LastMaintenance)
	assert.Equal(t, fixedNow, *got.LastMaintenance)

	acts, err := f.svc.Component.Activity(ctx, inspector, c.ID)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	assert.Equal(t, entity.ActionMaintain, acts[0].Action)
	assert.Equal(t, "greased", acts[0].Content)

	_, err = f.svc.Component.RecordMaintenance(ctx, inspector, c.ID, "")
	assert.ErrorIs(t, err, apperr.Forbidden)
}

func TestResolveScan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.allocate(t)

	byKey, err := f.svc.Component.ResolveScan(ctx, installer, " "+c.ID+"\n", nil)
	require.NoError(t, err)
	assert.Equal(t, c.ComponentID, byKey.ComponentID)

	byCode, err := f.svc.Component.ResolveScan(ctx, installer, c.ComponentID, nil)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byCode.ID)

	_, png, err := f.svc.Component.QRImage(ctx, installer, c.ID)
	require.NoError(t, err)
	byImage, err := f.svc.Component.ResolveScan(ctx, installer, "", png)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byImage.ID)

	_, err = f.svc.Component.ResolveScan(ctx, installer, "", nil)
	assert.ErrorIs(t, err, apperr.InvalidArgument)

	_, err = f.svc.Component.ResolveScan(ctx, installer, "", []byte("not an image"))
	assert.ErrorIs(t, err, apperr.InvalidArgument)
}

func TestDailyCountsAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.allocate(t)
	}
	insertPending(t, f, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "COMP20240309000900", "m-rival")

	counts, err := f.svc.Component.DailyCounts(ctx, acme, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int{"2024-03-09": {"Elastic Rail Clip": 3}}, counts)

	counts, err = f.svc.Component.DailyCounts(ctx, acme, "2024-03-10")
	require.NoError(t, err)
	assert.Empty(t, counts)

	_, err = f.svc.Component.DailyCounts(ctx, acme, "09/03/2024")
	assert.ErrorIs(t, err, apperr.InvalidArgument)

	file, name, err := f.svc.Component.Export(ctx, acme)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "components_20240309.xlsx", name)
	rows, err := file.GetRows("Components")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Component ID", rows[0][0])
	assert.Equal(t, fmt.Sprintf("COMP20240309%06d", 3), rows[1][0])
}

func TestManufacturerMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.Manufacturer.Me(ctx, acme)
	require.NoError(t, err)
	assert.Equal(t, "m-acme", m.ID)

	_, err = f.svc.Manufacturer.Me(ctx, authz.Actor{ID: "u", Username: "ghost", Role: authz.RoleManufacturer})
	assert.ErrorIs(t, err, apperr.NotFound)

	_, err = f.svc.Manufacturer.Me(ctx, installer)
	assert.ErrorIs(t, err, apperr.Forbidden)
}
