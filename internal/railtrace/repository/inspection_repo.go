package repository

import (
	"context"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"gorm.io/gorm"
)

// InspectionRepository 检验仓库
type InspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// Create 追加检验记录
func (r *InspectionRepository) Create(ctx context.Context, in *entity.Inspection) error {
	return translate(r.db.WithContext(ctx).Create(in).Error)
}

// FindByComponent 检验历史，最新在前
func (r *InspectionRepository) FindByComponent(ctx context.Context, componentID string) ([]entity.Inspection, error) {
	var items []entity.Inspection
	err := r.db.WithContext(ctx).
		Where("component_id = ?", componentID).
		Order("inspected_at DESC").
		Order("id DESC").
		Find(&items).Error
	return items, err
}
