package entity

import (
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/lifecycle"
)

// Inspection 检验记录，只追加不修改
type Inspection struct {
	ID          string            `json:"inspection_id" gorm:"primaryKey;size:32"`
	ComponentID string            `json:"component_id" gorm:"size:32;not null;index:idx_inspection_component"`
	Outcome     lifecycle.Outcome `json:"status" gorm:"size:20;not null"`
	DefectType  *string           `json:"defect_type" gorm:"size:100"`
	Comments    *string           `json:"comments" gorm:"type:text"`
	InspectedBy string            `json:"inspected_by" gorm:"size:64;not null"`
	InspectedAt time.Time         `json:"inspected_at" gorm:"not null;index:idx_inspection_component"`
}

func (Inspection) TableName() string {
	return "component_inspections"
}
