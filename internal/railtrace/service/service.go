package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/allocator"
	"github.com/bitfantasy/railtrace/internal/railtrace/apperr"
	"github.com/bitfantasy/railtrace/internal/railtrace/authz"
	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/bitfantasy/railtrace/internal/railtrace/events"
	"github.com/bitfantasy/railtrace/internal/railtrace/qrcode"
	"github.com/bitfantasy/railtrace/internal/railtrace/repository"
	"github.com/bitfantasy/railtrace/internal/railtrace/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxRetries bounds allocation retries after a unique-key conflict.
const DefaultMaxRetries = 3

var (
	storageKeyPattern    = regexp.MustCompile(`^[0-9a-f]{32}$`)
	componentCodePattern = regexp.MustCompile(`^COMP\d{14,}$`)
)

// Deps 服务依赖
type Deps struct {
	Store     repository.Store
	Sequencer allocator.Sequencer
	Encoder   *qrcode.Encoder
	// Artifacts is optional; nil disables the object storage mirror.
	Artifacts  storage.ArtifactStore
	Publisher  events.Publisher
	Gate       authz.Gate
	Logger     *zap.Logger
	Clock      func() time.Time
	MaxRetries int
	// WarrantyMonths is the default warranty when a request omits one.
	WarrantyMonths int
	// NewToken overrides the allocator token source.
	NewToken func() string
}

// Services 服务集合
type Services struct {
	Component    *ComponentService
	Inspection   *InspectionService
	Manufacturer *ManufacturerService
}

// NewServices 创建服务集合
func NewServices(d Deps) *Services {
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Gate == nil {
		d.Gate = authz.NewTableGate()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.MaxRetries <= 0 {
		d.MaxRetries = DefaultMaxRetries
	}
	if d.WarrantyMonths <= 0 {
		d.WarrantyMonths = DefaultWarrantyMonths
	}

	opts := []allocator.Option{allocator.WithClock(d.Clock)}
	if d.NewToken != nil {
		opts = append(opts, allocator.WithTokenSource(d.NewToken))
	}

	b := &base{
		store:     d.Store,
		gate:      d.Gate,
		publisher: d.Publisher,
		logger:    d.Logger,
		now:       d.Clock,
	}
	return &Services{
		Component: &ComponentService{
			base:       b,
			alloc:      allocator.New(d.Sequencer, opts...),
			encoder:    d.Encoder,
			artifacts:  d.Artifacts,
			maxRetries: d.MaxRetries,
			warranty:   d.WarrantyMonths,
		},
		Inspection:   &InspectionService{base: b},
		Manufacturer: &ManufacturerService{base: b},
	}
}

// base carries what every service needs.
type base struct {
	store     repository.Store
	gate      authz.Gate
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// ValidateRef checks the shape of a component reference, either a storage key or a
// component code.
func ValidateRef(ref string) error {
	if storageKeyPattern.MatchString(ref) || componentCodePattern.MatchString(ref) {
		return nil
	}
	return apperr.New(apperr.InvalidIdentifier, "malformed component identifier %q", ref)
}

// findComponent resolves ref against store.
func findComponent(ctx context.Context, store repository.Store, ref string) (*entity.Component, error) {
	ref = strings.TrimSpace(ref)
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}
	var (
		c   *entity.Component
		err error
	)
	if storageKeyPattern.MatchString(ref) {
		c, err = store.FindComponent(ctx, ref)
	} else {
		c, err = store.FindComponentByCode(ctx, ref)
	}
	if err != nil {
		return nil, storeError(err, "component %s", ref)
	}
	return c, nil
}

// storeError maps a repository error onto an apperr kind.
func storeError(err error, format string, args ...interface{}) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.NotFound, format+" not found", args...)
	}
	return apperr.Wrap(apperr.Internal, err, format, args...)
}

// withManufacturer fills actor.ManufacturerID for manufacturer actors. Lookups go
// by username, the token subject.
func (b *base) withManufacturer(ctx context.Context, actor authz.Actor) (authz.Actor, error) {
	if actor.Role != authz.RoleManufacturer || actor.ManufacturerID != "" {
		return actor, nil
	}
	m, err := b.store.FindManufacturerByUsername(ctx, actor.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return actor, apperr.New(apperr.Forbidden, "no manufacturer profile for user %s", actor.Username)
		}
		return actor, apperr.Wrap(apperr.Internal, err, "load manufacturer profile")
	}
	actor.ManufacturerID = m.ID
	return actor, nil
}

// fillManufacturer sets the display name and never fails.
func (b *base) fillManufacturer(ctx context.Context, c *entity.Component) {
	c.Manufacturer = entity.UnknownManufacturer
	m, err := b.store.FindManufacturer(ctx, c.ManufacturerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			b.logger.Warn("manufacturer lookup failed",
				zap.String("component_id", c.ComponentID),
				zap.String("manufacturer_id", c.ManufacturerID),
				zap.Error(err))
		}
		return
	}
	if m.CompanyName != "" {
		c.Manufacturer = m.CompanyName
	}
}

// publish sends an event after commit; failures are only logged.
func (b *base) publish(ctx context.Context, typ string, c *entity.Component, actor authz.Actor) {
	e := events.Event{
		ID:             uuid.NewString(),
		Type:           typ,
		EntityID:       c.ID,
		ComponentID:    c.ComponentID,
		ManufacturerID: c.ManufacturerID,
		Status:         string(c.Status),
		QCStatus:       string(c.QCStatus),
		ActorID:        actor.ID,
		OccurredAt:     b.now().UTC(),
	}
	if err := b.publisher.Publish(ctx, e); err != nil {
		b.logger.Warn("publish event failed",
			zap.String("type", typ),
			zap.String("component_id", c.ComponentID),
			zap.Error(err))
	}
}

func activity(c *entity.Component, action, from, to, content string, actor authz.Actor, at time.Time) *entity.ComponentActivity {
	return &entity.ComponentActivity{
		EntityID:     c.ID,
		EntityCode:   c.ComponentID,
		Action:       action,
		FromStatus:   from,
		ToStatus:     to,
		Content:      content,
		OperatorID:   actor.ID,
		OperatorRole: string(actor.Role),
		CreatedAt:    at,
	}
}
