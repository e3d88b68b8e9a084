package models

import (
	"time"

	"gorm.io/gorm"
)

type ClientStatus string

const (
	ClientActive   ClientStatus = "Active"
	ClientInactive ClientStatus = "Inactive"
)

type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Code      string         `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name      string         `gorm:"size:200;not null" json:"name"`
	Phone     string         `gorm:"size:50;not null" json:"phone"`
	Address   string         `gorm:"size:1000" json:"address"`
	Area      string         `gorm:"size:100;index" json:"area"`
	Subarea   string         `gorm:"size:100;index" json:"subarea"`
	Status    ClientStatus   `gorm:"size:20;not null;default:Active" json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
