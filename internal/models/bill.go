package models

import (
	"time"

	"gorm.io/gorm"
)

// Bill is a priced, itemized sales record. FinalAmount is always
// TotalAmount - Discount; items carry their own name/price snapshot.
type Bill struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	BillNumber  string         `gorm:"size:40;uniqueIndex;not null" json:"billNumber"`
	ClientID    uint           `gorm:"index;not null" json:"clientId"`
	Client      *Client        `json:"client,omitempty"`
	Items       []BillItem     `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount float64        `gorm:"type:decimal(12,2);not null" json:"totalAmount"`
	TaxAmount   float64        `gorm:"type:decimal(12,2);not null;default:0" json:"taxAmount"`
	TaxRate     float64        `gorm:"type:decimal(6,3);not null;default:0" json:"taxRate"`
	Discount    float64        `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	FinalAmount float64        `gorm:"type:decimal(12,2);not null" json:"finalAmount"`
	Date        time.Time      `gorm:"index;not null" json:"date"`
	CreatedBy   uint           `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deletedAt"`
	IsDeleted   bool           `gorm:"-" json:"isDeleted"`
}

// BillItem is one snapshotted line. MRP is the catalog price when the line
// was added and Price the charged unit price, both tax inclusive. BasePrice
// and TaxAmount are the breakdown of Price at the bill's tax rate.
type BillItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	BillID    uint    `gorm:"index;not null" json:"billId"`
	Position  int     `gorm:"not null;default:0" json:"position"`
	ProductID uint    `gorm:"index;not null" json:"product"`
	Name      string  `gorm:"size:200;not null" json:"name"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	MRP       float64 `gorm:"type:decimal(12,2);not null;default:0" json:"mrp"`
	Price     float64 `gorm:"type:decimal(12,2);not null" json:"price"`
	BasePrice float64 `gorm:"type:decimal(12,2);not null;default:0" json:"basePrice"`
	TaxAmount float64 `gorm:"type:decimal(12,2);not null;default:0" json:"taxAmount"`
	Amount    float64 `gorm:"type:decimal(12,2);not null" json:"amount"`
}

func (b *Bill) AfterFind(tx *gorm.DB) error {
	b.IsDeleted = b.DeletedAt.Valid
	return nil
}
