package repository

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// PostgreSQL unique_violation
const pgErrUniqueViolation = "23505"

// Store is the document-store contract the lifecycle services run against.
// Repositories implements it over postgres; tests use the in-memory store.
type Store interface {
	InsertComponent(ctx context.Context, c *entity.Component) error
	UpdateComponentIf(ctx context.Context, id string, cond entity.ComponentCondition, patch entity.ComponentPatch) (bool, error)
	FindComponent(ctx context.Context, id string) (*entity.Component, error)
	FindComponentByCode(ctx context.Context, code string) (*entity.Component, error)
	ListComponents(ctx context.Context, filter entity.ComponentFilter, page, pageSize int) ([]entity.Component, int64, error)

	FindManufacturer(ctx context.Context, id string) (*entity.Manufacturer, error)
	FindManufacturerByUsername(ctx context.Context, username string) (*entity.Manufacturer, error)

	InsertInspection(ctx context.Context, in *entity.Inspection) error
	ListInspectionsByComponent(ctx context.Context, componentID string) ([]entity.Inspection, error)

	InsertActivity(ctx context.Context, a *entity.ComponentActivity) error
	ListActivities(ctx context.Context, componentID string) ([]entity.ComponentActivity, error)

	// InTx runs fn against a store bound to one transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

// Repositories 仓库集合
type Repositories struct {
	db           *gorm.DB
	Component    *ComponentRepository
	Inspection   *InspectionRepository
	Manufacturer *ManufacturerRepository
	Activity     *ActivityRepository
	Sequence     *SequenceRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Component:    NewComponentRepository(db),
		Inspection:   NewInspectionRepository(db),
		Manufacturer: NewManufacturerRepository(db),
		Activity:     NewActivityRepository(db),
		Sequence:     NewSequenceRepository(db),
	}
}

// AutoMigrate creates or updates every table owned by this service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Manufacturer{},
		&entity.Component{},
		&entity.Inspection{},
		&entity.ComponentActivity{},
		&entity.ComponentSequence{},
	)
}

func (r *Repositories) InTx(ctx context.Context, fn func(tx Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

func (r *Repositories) InsertComponent(ctx context.Context, c *entity.Component) error {
	return r.Component.Create(ctx, c)
}

func (r *Repositories) UpdateComponentIf(ctx context.Context, id string, cond entity.ComponentCondition, patch entity.ComponentPatch) (bool, error) {
	return r.Component.UpdateIf(ctx, id, cond, patch)
}

func (r *Repositories) FindComponent(ctx context.Context, id string) (*entity.Component, error) {
	return r.Component.FindByID(ctx, id)
}

func (r *Repositories) FindComponentByCode(ctx context.Context, code string) (*entity.Component, error) {
	return r.Component.FindByCode(ctx, code)
}

func (r *Repositories) ListComponents(ctx context.Context, filter entity.ComponentFilter, page, pageSize int) ([]entity.Component, int64, error) {
	return r.Component.FindAll(ctx, filter, page, pageSize)
}

func (r *Repositories) FindManufacturer(ctx context.Context, id string) (*entity.Manufacturer, error) {
	return r.Manufacturer.FindByID(ctx, id)
}

func (r *Repositories) FindManufacturerByUsername(ctx context.Context, username string) (*entity.Manufacturer, error) {
	return r.Manufacturer.FindByUsername(ctx, username)
}

func (r *Repositories) InsertInspection(ctx context.Context, in *entity.Inspection) error {
	return r.Inspection.Create(ctx, in)
}

func (r *Repositories) ListInspectionsByComponent(ctx context.Context, componentID string) ([]entity.Inspection, error) {
	return r.Inspection.FindByComponent(ctx, componentID)
}

func (r *Repositories) InsertActivity(ctx context.Context, a *entity.ComponentActivity) error {
	return r.Activity.Create(ctx, a)
}

func (r *Repositories) ListActivities(ctx context.Context, componentID string) ([]entity.ComponentActivity, error) {
	return r.Activity.FindByEntity(ctx, componentID)
}

// Ping checks the database connection.
func (r *Repositories) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver errors onto repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return ErrDuplicateKey
	}
	return err
}

// NewID returns a 32 char lowercase hex storage key.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
