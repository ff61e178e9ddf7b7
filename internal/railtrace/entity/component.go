package entity

import (
	"time"

	"github.com/bitfantasy/railtrace/internal/railtrace/lifecycle"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// QRDataPending marks a component whose QR artifact has not been attached yet.
const QRDataPending = "pending"

// Component 铁路部件
type Component struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	ComponentID string `json:"component_id" gorm:"size:32;uniqueIndex;not null"`
	QRCode      string `json:"qr_code" gorm:"size:32;uniqueIndex;not null"`
	UUID        string `json:"uuid" gorm:"size:64;uniqueIndex;not null"`

	// 描述信息
	ItemCode         string            `json:"item_code" gorm:"size:50;not null"`
	ComponentName    string            `json:"component_name" gorm:"size:200;not null;index"`
	Specifications   datatypes.JSONMap `json:"specifications" gorm:"type:jsonb"`
	UnitWeight       decimal.Decimal   `json:"unit_weight" gorm:"type:decimal(12,3)"`
	IRSSpecification string            `json:"irs_specification" gorm:"size:100"`

	BatchNumber  string `json:"batch_number" gorm:"size:50"`
	SerialNumber string `json:"serial_number" gorm:"size:50"`

	ManufacturerID string `json:"manufacturer_id" gorm:"size:32;not null;index"`

	ProductionDate time.Time `json:"production_date"`
	WarrantyPeriod int       `json:"warranty_period"` // 月
	ExpectedExpiry time.Time `json:"expected_expiry"`
	GeneratedAt    time.Time `json:"generated_at" gorm:"index"`

	// 生命周期
	Status               lifecycle.Status   `json:"status" gorm:"size:20;not null;index"`
	QCStatus             lifecycle.QCStatus `json:"qc_status" gorm:"size:20;not null;index"`
	QCDate               *time.Time         `json:"qc_date"`
	InspectorID          *string            `json:"inspector_id" gorm:"size:64"`
	InstallationLocation *string            `json:"installation_location" gorm:"size:64"`
	InstalledBy          *string            `json:"installed_by" gorm:"size:64"`
	LastMaintenance      *time.Time         `json:"last_maintenance"`

	QRData      string `json:"qr_data" gorm:"type:text"`
	QRObjectKey string `json:"qr_object_key,omitempty" gorm:"size:200"`

	UpdatedAt time.Time `json:"updated_at"`

	// 查询时填充
	Manufacturer string `json:"manufacturer,omitempty" gorm:"-"`
}

func (Component) TableName() string {
	return "components"
}

// QRPending reports whether the QR artifact is still missing.
func (c *Component) QRPending() bool {
	return c.QRData == "" || c.QRData == QRDataPending
}

// ComponentCondition guards a conditional update. Empty slices match any value.
type ComponentCondition struct {
	Statuses   []lifecycle.Status
	QCStatuses []lifecycle.QCStatus
	QRPending  bool
}

// Matches evaluates the condition against an in-memory record.
func (cond ComponentCondition) Matches(c *Component) bool {
	if len(cond.Statuses) > 0 && !containsStatus(cond.Statuses, c.Status) {
		return false
	}
	if len(cond.QCStatuses) > 0 && !containsQC(cond.QCStatuses, c.QCStatus) {
		return false
	}
	if cond.QRPending && !c.QRPending() {
		return false
	}
	return true
}

// ComponentPatch lists the mutable lifecycle fields. Identity, ownership and
// derived fields have no entry here and therefore never change after creation.
type ComponentPatch struct {
	Status               *lifecycle.Status
	QCStatus             *lifecycle.QCStatus
	QCDate               *time.Time
	InspectorID          *string
	InstallationLocation *string
	InstalledBy          *string
	LastMaintenance      *time.Time
	QRData               *string
	QRObjectKey          *string
	UpdatedAt            time.Time
}

// Columns returns the patch as a column map for gorm Updates.
func (p ComponentPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{"updated_at": p.UpdatedAt}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.QCStatus != nil {
		cols["qc_status"] = *p.QCStatus
	}
	if p.QCDate != nil {
		cols["qc_date"] = *p.QCDate
	}
	if p.InspectorID != nil {
		cols["inspector_id"] = *p.InspectorID
	}
	if p.InstallationLocation != nil {
		cols["installation_location"] = *p.InstallationLocation
	}
	if p.InstalledBy != nil {
		cols["installed_by"] = *p.InstalledBy
	}
	if p.LastMaintenance != nil {
		cols["last_maintenance"] = *p.LastMaintenance
	}
	if p.QRData != nil {
		cols["qr_data"] = *p.QRData
	}
	if p.QRObjectKey != nil {
		cols["qr_object_key"] = *p.QRObjectKey
	}
	return cols
}

// Apply writes the patch onto an in-memory record.
func (p ComponentPatch) Apply(c *Component) {
	c.UpdatedAt = p.UpdatedAt
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.QCStatus != nil {
		c.QCStatus = *p.QCStatus
	}
	if p.QCDate != nil {
		t := *p.QCDate
		c.QCDate = &t
	}
	if p.InspectorID != nil {
		s := *p.InspectorID
		c.InspectorID = &s
	}
	if p.InstallationLocation != nil {
		s := *p.InstallationLocation
		c.InstallationLocation = &s
	}
	if p.InstalledBy != nil {
		s := *p.InstalledBy
		c.InstalledBy = &s
	}
	if p.LastMaintenance != nil {
		t := *p.LastMaintenance
		c.LastMaintenance = &t
	}
	if p.QRData != nil {
		c.QRData = *p.QRData
	}
	if p.QRObjectKey != nil {
		c.QRObjectKey = *p.QRObjectKey
	}
}

// ComponentFilter 部件查询条件
type ComponentFilter struct {
	ManufacturerID string
	Status         lifecycle.Status
	QCStatus       lifecycle.QCStatus
}

func containsStatus(list []lifecycle.Status, s lifecycle.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsQC(list []lifecycle.QCStatus, s lifecycle.QCStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
