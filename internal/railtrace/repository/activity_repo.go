package repository

import (
	"context"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"gorm.io/gorm"
)

// ActivityRepository 部件操作日志仓库
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 创建操作日志
func (r *ActivityRepository) Create(ctx context.Context, a *entity.ComponentActivity) error {
	if a.ID == "" {
		a.ID = NewID()
	}
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

// FindByEntity 查询部件的操作日志，最新在前
func (r *ActivityRepository) FindByEntity(ctx context.Context, entityID string) ([]entity.ComponentActivity, error) {
	var items []entity.ComponentActivity
	err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error
	return items, err
}
