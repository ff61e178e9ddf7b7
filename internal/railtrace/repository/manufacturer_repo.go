package repository

import (
	"context"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"gorm.io/gorm"
)

// ManufacturerRepository 制造商仓库
type ManufacturerRepository struct {
	db *gorm.DB
}

func NewManufacturerRepository(db *gorm.DB) *ManufacturerRepository {
	return &ManufacturerRepository{db: db}
}

func (r *ManufacturerRepository) FindByID(ctx context.Context, id string) (*entity.Manufacturer, error) {
	var m entity.Manufacturer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// FindByUsername resolves the manufacturer behind a login name.
func (r *ManufacturerRepository) FindByUsername(ctx context.Context, username string) (*entity.Manufacturer, error) {
	var m entity.Manufacturer
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *ManufacturerRepository) Create(ctx context.Context, m *entity.Manufacturer) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}
