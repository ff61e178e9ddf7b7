package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/allocator"
	"github.com/bitfantasy/railtrace/internal/railtrace/apperr"
	"github.com/bitfantasy/railtrace/internal/railtrace/authz"
	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/bitfantasy/railtrace/internal/railtrace/events"
	"github.com/bitfantasy/railtrace/internal/railtrace/lifecycle"
	"github.com/bitfantasy/railtrace/internal/railtrace/qrcode"
	"github.com/bitfantasy/railtrace/internal/railtrace/repository"
	"github.com/bitfantasy/railtrace/internal/railtrace/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultWarrantyMonths applies when the request leaves warranty_period out.
const DefaultWarrantyMonths = 24

// ComponentService 部件服务
type ComponentService struct {
	*base
	alloc      *allocator.Allocator
	encoder    *qrcode.Encoder
	artifacts  storage.ArtifactStore
	maxRetries int
	warranty   int
}

// AllocateInput 创建部件请求
type AllocateInput struct {
	UUID             string                 `json:"uuid"`
	ItemCode         string                 `json:"item_code"`
	ComponentName    string                 `json:"component_name"`
	Specifications   map[string]interface{} `json:"specifications"`
	UnitWeight       decimal.Decimal        `json:"unit_weight"`
	IRSSpecification string                 `json:"irs_specification"`
	BatchNumber      string                 `json:"batch_number"`
	SerialNumber     string                 `json:"serial_number"`
	ProductionDate   Date                   `json:"production_date"`
	WarrantyPeriod   *int                   `json:"warranty_period"`
}

func (in *AllocateInput) validate() error {
	switch {
	case strings.TrimSpace(in.ItemCode) == "":
		return apperr.New(apperr.InvalidArgument, "item_code is required")
	case strings.TrimSpace(in.ComponentName) == "":
		return apperr.New(apperr.InvalidArgument, "component_name is required")
	case strings.TrimSpace(in.IRSSpecification) == "":
		return apperr.New(apperr.InvalidArgument, "irs_specification is required")
	case !in.UnitWeight.IsPositive():
		return apperr.New(apperr.InvalidArgument, "unit_weight must be greater than zero")
	case in.ProductionDate.IsZero():
		return apperr.New(apperr.InvalidArgument, "production_date is required")
	case in.WarrantyPeriod != nil && *in.WarrantyPeriod < 0:
		return apperr.New(apperr.InvalidArgument, "warranty_period must not be negative")
	}
	return nil
}

// Allocate creates a component for the calling manufacturer. The record is stored
// with a pending QR artifact first, then the artifact is attached.
func (s *ComponentService) Allocate(ctx context.Context, actor authz.Actor, in AllocateInput) (*entity.Component, error) {
	if err := s.gate.Authorize(actor, authz.OpAllocate, authz.Target{}); err != nil {
		return nil, err
	}
	actor, err := s.withManufacturer(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	warranty := s.warranty
	if in.WarrantyPeriod != nil {
		warranty = *in.WarrantyPeriod
	}

	var c *entity.Component
	for attempt := 1; ; attempt++ {
		a, err := s.alloc.Allocate(ctx, strings.TrimSpace(in.UUID))
		if err != nil {
			return nil, err
		}
		c = newComponent(a, actor.ManufacturerID, in, warranty)

		err = s.store.InTx(ctx, func(tx repository.Store) error {
			if err := tx.InsertComponent(ctx, c); err != nil {
				return err
			}
			return tx.InsertActivity(ctx, activity(c, entity.ActionAllocate, "", string(c.Status),
				"allocated "+c.ComponentID, actor, a.At))
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, storeError(err, "insert component %s", c.ComponentID)
		}
		if a.CallerToken {
			return nil, apperr.Wrap(apperr.AllocationConflict, err, "uuid %s is already in use", a.Token)
		}
		if attempt > s.maxRetries {
			return nil, apperr.Wrap(apperr.AllocationConflict, err, "identifier allocation kept colliding after %d retries", s.maxRetries)
		}
		s.logger.Info("component identifier collision, retrying",
			zap.String("component_id", c.ComponentID),
			zap.Int("attempt", attempt))
	}

	s.publish(ctx, events.ComponentAllocated, c, actor)

	if err := s.attachQR(ctx, c, actor); err != nil {
		return nil, fmt.Errorf("component %s created with pending QR: %w", c.ComponentID, err)
	}
	s.fillManufacturer(ctx, c)
	return c, nil
}

func newComponent(a *allocator.Allocation, manufacturerID string, in AllocateInput, warranty int) *entity.Component {
	batch := strings.TrimSpace(in.BatchNumber)
	if batch == "" {
		batch = a.BatchNumber
	}
	serial := strings.TrimSpace(in.SerialNumber)
	if serial == "" {
		serial = a.SerialNumber
	}
	return &entity.Component{
		ID:               repository.NewID(),
		ComponentID:      a.ComponentID,
		QRCode:           a.QRCode,
		UUID:             a.Token,
		ItemCode:         strings.TrimSpace(in.ItemCode),
		ComponentName:    strings.TrimSpace(in.ComponentName),
		Specifications:   in.Specifications,
		UnitWeight:       in.UnitWeight,
		IRSSpecification: strings.TrimSpace(in.IRSSpecification),
		BatchNumber:      batch,
		SerialNumber:     serial,
		ManufacturerID:   manufacturerID,
		ProductionDate:   in.ProductionDate.Time,
		WarrantyPeriod:   warranty,
		ExpectedExpiry:   lifecycle.ExpectedExpiry(in.ProductionDate.Time, warranty),
		GeneratedAt:      a.At,
		Status:           lifecycle.StatusManufactured,
		QCStatus:         lifecycle.QCPending,
		QRData:           entity.QRDataPending,
		UpdatedAt:        a.At,
	}
}

// attachQR encodes the storage key and stores the artifact on a still pending record.
func (s *ComponentService) attachQR(ctx context.Context, c *entity.Component, actor authz.Actor) error {
	png, err := s.encoder.Encode(c.ID)
	if err != nil {
		return err
	}
	data := qrcode.DataURI(png)

	var objectKey string
	if s.artifacts != nil {
		key, err := s.artifacts.Put(ctx, storage.QRObjectKey(c.ComponentID), "image/png", png)
		if err != nil {
			s.logger.Warn("mirror QR image failed", zap.String("component_id", c.ComponentID), zap.Error(err))
		} else {
			objectKey = key
		}
	}

	now := s.now()
	patch := entity.ComponentPatch{QRData: &data, UpdatedAt: now}
	if objectKey != "" {
		patch.QRObjectKey = &objectKey
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		ok, err := tx.UpdateComponentIf(ctx, c.ID, entity.ComponentCondition{QRPending: true}, patch)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.InvalidStateTransition, "QR artifact of %s is already attached", c.ComponentID)
		}
		return tx.InsertActivity(ctx, activity(c, entity.ActionAttachQR, "", "", objectKey, actor, now))
	})
	if err != nil {
		return storeError(err, "attach QR to %s", c.ComponentID)
	}
	patch.Apply(c)
	return nil
}

// RegenerateQR retries artifact generation for an owned component still pending.
func (s *ComponentService) RegenerateQR(ctx context.Context, actor authz.Actor, ref string) (*entity.Component, error) {
	if err := s.gate.Authorize(actor, authz.OpRegenerateQR, authz.Target{}); err != nil {
		return nil, err
	}
	actor, err := s.withManufacturer(ctx, actor)
	if err != nil {
		return nil, err
	}
	c, err := findComponent(ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	if err := authz.CheckOwnership(actor, authz.Target{ManufacturerID: c.ManufacturerID}); err != nil {
		return nil, err
	}
	if !c.QRPending() {
		return nil, apperr.New(apperr.InvalidStateTransition, "QR artifact of %s is already attached", c.ComponentID)
	}
	if err := s.attachQR(ctx, c, actor); err != nil {
		return nil, err
	}
	s.fillManufacturer(ctx, c)
	return c, nil
}

// Get returns a component joined with its manufacturer name.
func (s *ComponentService) Get(ctx context.Context, actor authz.Actor, ref string) (*entity.Component, error) {
	if err := s.gate.Authorize(actor, authz.OpView, authz.Target{}); err != nil {
		return nil, err
	}
	c, err := findComponent(ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	s.fillManufacturer(ctx, c)
	return c, nil
}

// GetOwned is Get restricted to the calling manufacturer's components.
func (s *ComponentService) GetOwned(ctx context.Context, actor authz.Actor, ref string) (*entity.Component, error) {
	if err := s.gate.Authorize(actor, authz.OpListOwn, authz.Target{}); err != nil {
		return nil, err
	}
	actor, err := s.withManufacturer(ctx, actor)
	if err != nil {
		return nil, err
	}
	c, err := findComponent(ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	if err := authz.CheckOwnership(actor, authz.Target{ManufacturerID: c.ManufacturerID}); err != nil {
		return nil, err
	}
	s.fillManufacturer(ctx, c)
	return c, nil
}

// List returns every component matching filter, newest first.
func (s *ComponentService) List(ctx context.Context, actor authz.Actor, filter entity.ComponentFilter, page, pageSize int) ([]entity.Component, int64, error) {
	if err := s.gate.Authorize(actor, authz.OpListAll, authz.Target{}); err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.ListComponents(ctx, filter, page, pageSize)
	if err != nil {
		return nil, 0, storeError(err, "list components")
	}
	return items, total, nil
}

// ListOwn returns the calling manufacturer's components.
func (s *ComponentService) ListOwn(ctx context.Context, actor authz.Actor, page, pageSize int) ([]entity.Component, int64, error) {
	if err := s.gate.Authorize(actor, authz.OpListOwn, authz.Target{}); err != nil {
		return nil, 0, err
	}
	actor, err := s.withManufacturer(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.ListComponents(ctx, entity.ComponentFilter{ManufacturerID: actor.ManufacturerID}, page, pageSize)
	if err != nil {
		return nil, 0, storeError(err, "list components")
	}
	return items, total, nil
}

// InstallInput 安装请求
type InstallInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (in InstallInput) location() (string, error) {
	if in.Latitude == nil || in.Longitude == nil {
		return "", apperr.New(apperr.InvalidArgument, "latitude and longitude are required")
	}
	lat, lon := *in.Latitude, *in.Longitude
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return "", apperr.New(apperr.InvalidArgument, "latitude must be within [-90, 90]")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return "", apperr.New(apperr.InvalidArgument, "longitude must be within [-180, 180]")
	}
	return fmt.Sprintf("%g,%g", lat, lon), nil
}

// Install marks a component as installed at the given location. The write only
// lands if the status read here is still current and the component is not condemned.
func (s *ComponentService) Install(ctx context.Context, actor authz.Actor, ref string, in InstallInput) (*entity.Component, error) {
	if err := s.gate.Authorize(actor, authz.OpInstall, authz.Target{}); err != nil {
		return nil, err
	}
	if err := ValidateRef(strings.TrimSpace(ref)); err != nil {
		return nil, err
	}
	loc, err := in.location()
	if err != nil {
		return nil, err
	}
	c, err := findComponent(ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckInstall(c.Status, c.QCStatus); err != nil {
		return nil, err
	}

	now := s.now()
	installed := lifecycle.StatusInstalled
	actorID := actor.ID
	cond := entity.ComponentCondition{
		Statuses:   []lifecycle.Status{c.Status},
		QCStatuses: []lifecycle.QCStatus{lifecycle.QCPending, lifecycle.QCPassed},
	}
	patch := entity.ComponentPatch{
		Status:               &installed,
		InstallationLocation: &loc,
		InstalledBy:          &actorID,
		UpdatedAt:            now,
	}

	err = s.store.InTx(ctx, func(tx repository.Store) error {
		ok, err := tx.UpdateComponentIf(ctx, c.ID, cond, patch)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.InvalidStateTransition, "component %s changed state concurrently", c.ComponentID)
		}
		return tx.InsertActivity(ctx, activity(c, entity.ActionInstall, string(c.Status), string(installed), loc, actor, now))
	})
	if err != nil {
		return nil, storeError(err, "install component %s", c.ComponentID)
	}
	patch.Apply(c)

	s.publish(ctx, events.ComponentInstalled, c, actor)
	s.fillManufacturer(ctx, c)
	return c, nil
}

// RecordMaintenance stamps last_maintenance on an installed component.
func (s *ComponentService) RecordMaintenance(ctx context.Context, actor authz.Actor, ref, notes string) (*entity.Component, error) {
	if err := s.gate.Authorize(actor, authz.OpMaintain, authz.Target{}); err != nil {
		return nil, err
	}
	c, err := findComponent(ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckMaintenance(c.Status); err != nil {
		return nil, err
	}

	now := s.now()
	patch := entity.ComponentPatch{LastMaintenance: &now, UpdatedAt: now}
	err = s.store.InTx(ctx, func(tx repository.Store) error {
		ok, err := tx.UpdateComponentIf(ctx, c.ID, entity.ComponentCondition{
			Statuses: []lifecycle.Status{lifecycle.StatusInstalled},
		}, patch)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.InvalidStateTransition, "component %s is no longer installed", c.ComponentID)
		}
		return tx.InsertActivity(ctx, activity(c, entity.ActionMaintain, string(c.Status), string(c.Status),
			strings.TrimSpace(notes), actor, now))
	})
	if err != nil {
		return nil, storeError(err, "record maintenance for %s", c.ComponentID)
	}
	patch.Apply(c)

	s.publish(ctx, events.ComponentMaintained, c, actor)
	s.fillManufacturer(ctx, c)
	return c, nil
}

// Activity returns the transition log of a component, newest first.
func (s *ComponentService) Activity(ctx context.Context, actor authz.Actor, ref string) ([]entity.ComponentActivity, error) {
	if err := s.gate.Authorize(actor, authz.OpView, authz.Target{}); err != nil {
		return nil, err
	}
	c, err := findComponent(ctx, s.store, ref)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListActivities(ctx, c.ID)
	if err != nil {
		return nil, storeError(err, "list activity of %s", c.ComponentID)
	}
	return items, nil
}

// ResolveScan resolves a scanned payload, or a photographed QR image, to its component.
func (s *ComponentService) ResolveScan(ctx context.Context, actor authz.Actor, payload string, image []byte) (*entity.Component, error) {
	if err := s.gate.Authorize(actor, authz.OpView, authz.Target{}); err != nil {
		return nil, err
	}
	if len(image) > 0 {
		decoded, err := qrcode.Decode(image)
		if err != nil {
			return nil, err
		}
		payload = decoded
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, apperr.New(apperr.InvalidArgument, "payload or image is required")
	}
	c, err := findComponent(ctx, s.store, payload)
	if err != nil {
		return nil, err
	}
	s.fillManufacturer(ctx, c)
	return c, nil
}

// QRImage returns the PNG attached to a component.
func (s *ComponentService) QRImage(ctx context.Context, actor authz.Actor, ref string) (*entity.Component, []byte, error) {
	if err := s.gate.Authorize(actor, authz.OpView, authz.Target{}); err != nil {
		return nil, nil, err
	}
	c, err := findComponent(ctx, s.store, ref)
	if err != nil {
		return nil, nil, err
	}
	if c.QRPending() {
		return nil, nil, apperr.New(apperr.NotFound, "QR artifact of %s is still pending", c.ComponentID)
	}
	png, err := qrcode.ParseDataURI(c.QRData)
	if err != nil {
		return nil, nil, err
	}
	return c, png, nil
}

// DailyCounts groups the caller's components by UTC creation day and name.
// An empty date returns every day.
func (s *ComponentService) DailyCounts(ctx context.Context, actor authz.Actor, date string) (map[string]map[string]int, error) {
	if err := s.gate.Authorize(actor, authz.OpListOwn, authz.Target{}); err != nil {
		return nil, err
	}
	if date != "" {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return nil, apperr.New(apperr.InvalidArgument, "date must be YYYY-MM-DD")
		}
	}
	items, _, err := s.ListOwn(ctx, actor, 1, 0)
	if err != nil {
		return nil, err
	}

	counts := map[string]map[string]int{}
	for _, c := range items {
		day := c.GeneratedAt.UTC().Format("2006-01-02")
		if date != "" && day != date {
			continue
		}
		if counts[day] == nil {
			counts[day] = map[string]int{}
		}
		counts[day][c.ComponentName]++
	}
	return counts, nil
}
