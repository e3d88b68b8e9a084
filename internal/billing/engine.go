// Package billing prices and persists bills. Every line copies the product's
// name and price when it is added, so later catalog edits never change an
// issued bill.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"billing-backend/internal/apperror"
	"billing-backend/internal/models"
	"billing-backend/internal/validation"

	"gorm.io/gorm"
)

const maxNumberAttempts = 5

// ProductRef names a product either by numeric id or by code. JSON accepts
// a number, a numeric string, or a code string.
type ProductRef struct {
	ID   uint
	Code string
}

func (r *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*r = ProductRef{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ParseProductRef(s)
		return nil
	}
	var id uint
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("product must be an id or a code: %w", err)
	}
	*r = ProductRef{ID: id}
	return nil
}

func (r ProductRef) MarshalJSON() ([]byte, error) {
	if r.ID != 0 {
		return json.Marshal(r.ID)
	}
	return json.Marshal(r.Code)
}

func ParseProductRef(s string) ProductRef {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return ProductRef{ID: uint(n)}
	}
	return ProductRef{Code: strings.ToUpper(s)}
}

func (r ProductRef) IsZero() bool { return r.ID == 0 && r.Code == "" }

func (r ProductRef) String() string {
	if r.ID != 0 {
		return strconv.FormatUint(uint64(r.ID), 10)
	}
	return r.Code
}

type ItemInput struct {
	// Line names an existing bill line to keep on update. Optional; without
	// it lines are matched to the bill's lines for the same product in order.
	Line     uint       `json:"id,omitempty"`
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
	// Price overrides the catalog price for this line when set.
	Price *float64 `json:"price,omitempty"`
}

type CreateInput struct {
	ClientID  uint        `json:"clientId"`
	Items     []ItemInput `json:"items"`
	Discount  float64     `json:"discount"`
	CreatedBy uint        `json:"-"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	ClientID *uint        `json:"clientId"`
	Items    *[]ItemInput `json:"items"`
	Discount *float64     `json:"discount"`
}

type ListFilter struct {
	ClientID uint
	Range    validation.DateRange
	Offset   int
	Limit    int
}

type Engine struct {
	db         *gorm.DB
	taxRate    float64
	nextNumber NumberGenerator
	now        func() time.Time
}

// NewEngine builds an engine charging taxRate percent, included in the
// catalog prices.
func NewEngine(db *gorm.DB, taxRate float64) *Engine {
	return &Engine{db: db, taxRate: taxRate, nextNumber: DefaultNumber, now: time.Now}
}

// WithNumberGenerator replaces the bill number source.
func (e *Engine) WithNumberGenerator(g NumberGenerator) *Engine {
	e.nextNumber = g
	return e
}

func (e *Engine) TaxRate() float64 { return e.taxRate }

func validateItems(items []ItemInput, v validation.Violations) {
	if len(items) == 0 {
		v.Add("items", "at_least_one_item")
		return
	}
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if it.Product.IsZero() {
			v.Add(field+".product", "required")
		}
		if it.Quantity <= 0 {
			v.Add(field+".quantity", "must_be_positive")
		}
		if it.Price != nil && *it.Price < 0 {
			v.Add(field+".price", "must_not_be_negative")
		}
	}
}

func ValidateCreate(in CreateInput) error {
	v := validation.New()
	if in.ClientID == 0 {
		v.Add("clientId", "required")
	}
	validateItems(in.Items, v)
	return v.Err()
}

func ValidateUpdate(in UpdateInput) error {
	v := validation.New()
	if in.ClientID != nil && *in.ClientID == 0 {
		v.Add("clientId", "required")
	}
	if in.Items != nil {
		validateItems(*in.Items, v)
	}
	return v.Err()
}

func findClient(tx *gorm.DB, id uint) (*models.Client, error) {
	var cl models.Client
	if err := tx.First(&cl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("Client %d not found", id))
		}
		return nil, apperror.Internal("client lookup failed", err)
	}
	return &cl, nil
}

func findProduct(tx *gorm.DB, ref ProductRef) (*models.Product, error) {
	var p models.Product
	q := tx
	if ref.ID != 0 {
		q = q.Where("id = ?", ref.ID)
	} else {
		q = q.Where("code = ?", ref.Code)
	}
	if err := q.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound(fmt.Sprintf("Product %s not found", ref))
		}
		return nil, apperror.Internal("product lookup failed", err)
	}
	return &p, nil
}

// snapshotLine copies the product's current name and price into a new line.
func snapshotLine(p *models.Product, in ItemInput) models.BillItem {
	item := models.BillItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  in.Quantity,
		MRP:       p.Price,
		Price:     p.Price,
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	return item
}

func (e *Engine) uniqueNumber(tx *gorm.DB, now time.Time) (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		candidate := e.nextNumber(now)
		var n int64
		if err := tx.Unscoped().Model(&models.Bill{}).Where("bill_number = ?", candidate).Count(&n).Error; err != nil {
			return "", apperror.Internal("bill number check failed", err)
		}
		if n == 0 {
			return candidate, nil
		}
	}
	return "", apperror.Internal("bill number generation failed", fmt.Errorf("%d duplicate candidates", maxNumberAttempts))
}

// Create prices the request and stores the bill with its lines in one
// transaction. Any unknown client or product aborts before anything is
// written.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*models.Bill, error) {
	if err := ValidateCreate(in); err != nil {
		return nil, err
	}

	var bill models.Bill
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cl, err := findClient(tx, in.ClientID)
		if err != nil {
			return err
		}

		items := make([]models.BillItem, 0, len(in.Items))
		for i, it := range in.Items {
			p, err := findProduct(tx, it.Product)
			if err != nil {
				return err
			}
			line := snapshotLine(p, it)
			line.Position = i
			PriceLine(&line, e.taxRate)
			items = append(items, line)
		}

		now := e.now().UTC()
		number, err := e.uniqueNumber(tx, now)
		if err != nil {
			return err
		}

		bill = models.Bill{
			BillNumber: number,
			ClientID:   cl.ID,
			Items:      items,
			TaxRate:    e.taxRate,
			Discount:   in.Discount,
			Date:       now,
			CreatedBy:  in.CreatedBy,
		}
		Totals(&bill)

		if err := tx.Create(&bill).Error; err != nil {
			return apperror.FromDB(err, "Bill", "number")
		}
		bill.Client = cl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// Update applies a partial change. Items matching a line already on the bill
// (by line id, else the next unused line for the same product) keep that
// line's name and price; other items are priced from the catalog now.
// Totals are always recomputed at the bill's own rate.
func (e *Engine) Update(ctx context.Context, id uint, in UpdateInput) (*models.Bill, error) {
	if err := ValidateUpdate(in); err != nil {
		return nil, err
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := e.load(tx, id)
		if err != nil {
			return err
		}

		if in.ClientID != nil {
			cl, err := findClient(tx, *in.ClientID)
			if err != nil {
				return err
			}
			bill.ClientID = cl.ID
		}
		if in.Discount != nil {
			bill.Discount = *in.Discount
		}

		if in.Items != nil {
			lines := newLineSet(bill.Items)
			items := make([]models.BillItem, 0, len(*in.Items))
			for i, it := range *in.Items {
				line, err := lines.resolve(tx, i, it)
				if err != nil {
					return err
				}
				line.BillID = bill.ID
				line.Position = i
				PriceLine(&line, bill.TaxRate)
				items = append(items, line)
			}

			if err := tx.Where("bill_id = ?", bill.ID).Delete(&models.BillItem{}).Error; err != nil {
				return apperror.Internal("replace bill items failed", err)
			}
			if err := tx.Create(&items).Error; err != nil {
				return apperror.Internal("replace bill items failed", err)
			}
			bill.Items = items
		}

		Totals(bill)
		if err := tx.Model(bill).
			Select("client_id", "discount", "total_amount", "tax_amount", "final_amount").
			Updates(bill).Error; err != nil {
			return apperror.Internal("update bill failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.Get(ctx, id)
}

// lineSet hands out a bill's current lines for reuse, each at most once.
type lineSet struct {
	byID      map[uint]models.BillItem
	byProduct map[uint][]uint // line ids in position order
	used      map[uint]bool
}

func newLineSet(items []models.BillItem) *lineSet {
	ls := &lineSet{
		byID:      make(map[uint]models.BillItem, len(items)),
		byProduct: make(map[uint][]uint),
		used:      make(map[uint]bool),
	}
	for _, it := range items {
		ls.byID[it.ID] = it
		ls.byProduct[it.ProductID] = append(ls.byProduct[it.ProductID], it.ID)
	}
	return ls
}

// take returns the first unused line for productID.
func (ls *lineSet) take(productID uint) (models.BillItem, bool) {
	for _, id := range ls.byProduct[productID] {
		if !ls.used[id] {
			ls.used[id] = true
			return ls.byID[id], true
		}
	}
	return models.BillItem{}, false
}

// resolve builds the line for input i: an existing line keeps its snapshot,
// anything else is snapshotted from the live catalog.
func (ls *lineSet) resolve(tx *gorm.DB, i int, in ItemInput) (models.BillItem, error) {
	productID, err := productIDOf(tx, in.Product)
	if err != nil {
		return models.BillItem{}, err
	}

	if in.Line != 0 {
		prev, ok := ls.byID[in.Line]
		if !ok || ls.used[in.Line] || prev.ProductID != productID {
			return models.BillItem{}, apperror.ValidationFields("Validation failed",
				map[string]string{fmt.Sprintf("items[%d].id", i): "not_a_line_of_this_bill"})
		}
		ls.used[in.Line] = true
		return keepLine(prev, in), nil
	}

	if prev, ok := ls.take(productID); ok {
		return keepLine(prev, in), nil
	}

	p, err := findProduct(tx, in.Product)
	if err != nil {
		return models.BillItem{}, err
	}
	return snapshotLine(p, in), nil
}

// productIDOf resolves a code reference including deleted products, so lines
// whose product has left the catalog can still be kept.
func productIDOf(tx *gorm.DB, ref ProductRef) (uint, error) {
	if ref.ID != 0 {
		return ref.ID, nil
	}
	var p models.Product
	if err := tx.Unscoped().Select("id").Where("code = ?", ref.Code).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperror.NotFound(fmt.Sprintf("Product %s not found", ref))
		}
		return 0, apperror.Internal("product lookup failed", err)
	}
	return p.ID, nil
}

// keepLine reuses the snapshot of an existing line with a new quantity.
func keepLine(prev models.BillItem, in ItemInput) models.BillItem {
	line := models.BillItem{
		ProductID: prev.ProductID,
		Name:      prev.Name,
		Quantity:  in.Quantity,
		MRP:       prev.MRP,
		Price:     prev.Price,
	}
	if in.Price != nil {
		line.Price = *in.Price
	}
	return line
}

// Delete hides the bill from every default query. The record is kept.
func (e *Engine) Delete(ctx context.Context, id uint) (*models.Bill, error) {
	var bill *models.Bill
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := e.load(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(b).Error; err != nil {
			return apperror.Internal("delete bill failed", err)
		}
		bill = b
		return nil
	})
	return bill, err
}

func itemsInOrder(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }

// withClient preloads the client even when it has since been deleted.
func withClient(db *gorm.DB) *gorm.DB {
	return db.Preload("Client", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

func (e *Engine) load(tx *gorm.DB, id uint) (*models.Bill, error) {
	var bill models.Bill
	if err := withClient(tx).Preload("Items", itemsInOrder).First(&bill, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Bill not found")
		}
		return nil, apperror.Internal("bill lookup failed", err)
	}
	return &bill, nil
}

// Get returns a visible bill with its client and ordered lines.
func (e *Engine) Get(ctx context.Context, id uint) (*models.Bill, error) {
	return e.load(e.db.WithContext(ctx), id)
}

// List returns one page of bills, newest first, and the total match count.
func (e *Engine) List(ctx context.Context, f ListFilter) ([]models.Bill, int64, error) {
	dbq := e.db.WithContext(ctx).Model(&models.Bill{})
	if f.ClientID != 0 {
		dbq = dbq.Where("client_id = ?", f.ClientID)
	}
	dbq = f.Range.Apply(dbq, "date")

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return nil, 0, apperror.Internal("count bills failed", err)
	}

	bills := make([]models.Bill, 0)
	q := withClient(dbq).Preload("Items", itemsInOrder).Order("date DESC, id DESC")
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	if err := q.Find(&bills).Error; err != nil {
		return nil, 0, apperror.Internal("list bills failed", err)
	}
	return bills, total, nil
}
