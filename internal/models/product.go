package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is the price source for bills. Bills copy Name and Price when they
// are created, so later edits here never touch issued invoices.
type Product struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Code        string         `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Price       float64        `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int            `gorm:"not null;default:0" json:"stock"`
	Category    string         `gorm:"size:100;index" json:"category"`
	Description string         `gorm:"size:1000" json:"description"`
	Image       string         `gorm:"size:500" json:"image"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
