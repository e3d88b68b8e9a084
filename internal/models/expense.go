package models

import (
	"time"

	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "Cash"
	PaymentUPI          PaymentMethod = "UPI"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
	PaymentCard         PaymentMethod = "Card"
	PaymentOther        PaymentMethod = "Other"
)

var PaymentMethods = []string{
	string(PaymentCash), string(PaymentUPI), string(PaymentBankTransfer), string(PaymentCard), string(PaymentOther),
}

type ExpenseCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Expense struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	Date          time.Time        `gorm:"index;not null" json:"date"`
	Amount        float64          `gorm:"type:decimal(12,2);not null" json:"amount"`
	CategoryID    uint             `gorm:"index;not null" json:"categoryId"`
	Category      *ExpenseCategory `json:"category,omitempty"`
	Description   string           `gorm:"size:1000;not null" json:"description"`
	PaymentMethod PaymentMethod    `gorm:"size:30;not null;default:Cash" json:"paymentMethod"`
	ReceiptURL    string           `gorm:"size:500" json:"receiptUrl,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
}
