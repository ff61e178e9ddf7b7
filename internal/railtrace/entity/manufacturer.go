package entity

import "time"

// UnknownManufacturer is shown when a component's manufacturer record is missing.
const UnknownManufacturer = "Unknown"

// Manufacturer 制造商
type Manufacturer struct {
	ID               string    `json:"id" gorm:"primaryKey;size:32"`
	Username         string    `json:"username" gorm:"size:64;uniqueIndex;not null"`
	CompanyName      string    `json:"company_name" gorm:"size:200;not null"`
	ContactEmail     string    `json:"contact_email" gorm:"size:200"`
	Address          string    `json:"address" gorm:"type:text"`
	LicenseNumber    string    `json:"license_number" gorm:"size:64"`
	ApprovalStatus   string    `json:"approval_status" gorm:"size:20;default:PENDING"`
	RegistrationDate time.Time `json:"registration_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Manufacturer) TableName() string {
	return "manufacturers"
}

// 审批状态
const (
	ManufacturerPending  = "PENDING"
	ManufacturerApproved = "APPROVED"
)
