package entity

import "time"

// ComponentActivity 部件操作日志
type ComponentActivity struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_component_activity"`
	EntityCode string `json:"entity_code" gorm:"size:32"`

	Action     string `json:"action" gorm:"size:50;not null"` // allocate/attach_qr/install/inspect_ok/inspect_defected/maintain
	FromStatus string `json:"from_status" gorm:"size:20"`
	ToStatus   string `json:"to_status" gorm:"size:20"`
	Content    string `json:"content" gorm:"type:text"`

	OperatorID   string    `json:"operator_id" gorm:"size:64"`
	OperatorRole string    `json:"operator_role" gorm:"size:32"`
	CreatedAt    time.Time `json:"created_at" gorm:"index:idx_component_activity"`
}

func (ComponentActivity) TableName() string {
	return "component_activities"
}

// 操作类型
const (
	ActionAllocate        = "allocate"
	ActionAttachQR        = "attach_qr"
	ActionInstall         = "install"
	ActionInspectOK       = "inspect_ok"
	ActionInspectDefected = "inspect_defected"
	ActionMaintain        = "maintain"
)

// ComponentSequence is the per-day counter behind component codes.
type ComponentSequence struct {
	Day   string `gorm:"primaryKey;size:8"`
	Value int64  `gorm:"not null"`
}

func (ComponentSequence) TableName() string {
	return "component_sequences"
}
