package repository

import (
	"context"

	"github.com/bitfantasy/railtrace/internal/railtrace/entity"
	"gorm.io/gorm"
)

// ComponentRepository 部件仓库
type ComponentRepository struct {
	db *gorm.DB
}

func NewComponentRepository(db *gorm.DB) *ComponentRepository {
	return &ComponentRepository{db: db}
}

// Create 创建部件，唯一键冲突返回 ErrDuplicateKey
func (r *ComponentRepository) Create(ctx context.Context, c *entity.Component) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

// UpdateIf applies patch only while the row still satisfies cond. The check and
// the write are one UPDATE statement, so a concurrent transition cannot slip in between.
func (r *ComponentRepository) UpdateIf(ctx context.Context, id string, cond entity.ComponentCondition, patch entity.ComponentPatch) (bool, error) {
	query := r.db.WithContext(ctx).Model(&entity.Component{}).Where("id = ?", id)
	if len(cond.Statuses) > 0 {
		query = query.Where("status IN ?", cond.Statuses)
	}
	if len(cond.QCStatuses) > 0 {
		query = query.Where("qc_status IN ?", cond.QCStatuses)
	}
	if cond.QRPending {
		query = query.Where("(qr_data = '' OR qr_data = ?)", entity.QRDataPending)
	}

	result := query.Updates(patch.Columns())
	if result.Error != nil {
		return false, translate(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByID 根据存储主键查找部件
func (r *ComponentRepository) FindByID(ctx context.Context, id string) (*entity.Component, error) {
	var c entity.Component
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// FindByCode 根据部件编码查找
func (r *ComponentRepository) FindByCode(ctx context.Context, code string) (*entity.Component, error) {
	var c entity.Component
	err := r.db.WithContext(ctx).Where("component_id = ?", code).First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// FindAll 查询部件列表，pageSize <= 0 返回全部
func (r *ComponentRepository) FindAll(ctx context.Context, filter entity.ComponentFilter, page, pageSize int) ([]entity.Component, int64, error) {
	var items []entity.Component
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Component{})
	if filter.ManufacturerID != "" {
		query = query.Where("manufacturer_id = ?", filter.ManufacturerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.QCStatus != "" {
		query = query.Where("qc_status = ?", filter.QCStatus)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("generated_at DESC").Order("component_id DESC")
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	err := query.Find(&items).Error
	return items, total, err
}
