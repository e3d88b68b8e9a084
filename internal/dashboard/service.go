// Package dashboard computes read-only rollups over bills and expenses.
// Grouping is done in Go over the fetched rows so postgres and sqlite give
// the same answers.
package dashboard

import (
	"context"
	"sort"

	"billing-backend/internal/apperror"
	"billing-backend/internal/models"
	"billing-backend/internal/validation"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RecentBillsLimit = 5
	unassigned       = "Unassigned"
)

type DayTotal struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

type GroupTotal struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

type ClientTotal struct {
	ClientID uint    `json:"clientId"`
	Name     string  `json:"name"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

type Summary struct {
	TotalRevenue       float64       `json:"totalRevenue"`
	TotalExpenses      float64       `json:"totalExpenses"`
	NetIncome          float64       `json:"netIncome"`
	BillCount          int           `json:"billCount"`
	ExpenseCount       int           `json:"expenseCount"`
	RevenueByDay       []DayTotal    `json:"revenueByDay"`
	RevenueByArea      []GroupTotal  `json:"revenueByArea"`
	RevenueBySubarea   []GroupTotal  `json:"revenueBySubarea"`
	RevenueByClient    []ClientTotal `json:"revenueByClient"`
	ExpensesByCategory []GroupTotal  `json:"expensesByCategory"`
	RecentBills        []models.Bill `json:"recentBills"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

type acc struct {
	sum   decimal.Decimal
	count int
}

func (a *acc) add(v float64) {
	a.sum = a.sum.Add(decimal.NewFromFloat(v))
	a.count++
}

func (a acc) total() float64 { return a.sum.Round(2).InexactFloat64() }

func orUnassigned(s string) string {
	if s == "" {
		return unassigned
	}
	return s
}

// groups returns the accumulated totals, largest first and then by name.
func groups(m map[string]*acc) []GroupTotal {
	out := make([]GroupTotal, 0, len(m))
	for name, a := range m {
		out = append(out, GroupTotal{Name: name, Total: a.total(), Count: a.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Service) bills(ctx context.Context, rng validation.DateRange) ([]models.Bill, error) {
	var bills []models.Bill
	q := rng.Apply(s.db.WithContext(ctx).Model(&models.Bill{}), "date").
		Preload("Client", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("date DESC, id DESC")
	if err := q.Find(&bills).Error; err != nil {
		return nil, apperror.Internal("load bills failed", err)
	}
	return bills, nil
}

// Summary aggregates every visible bill and expense inside rng. Empty input
// yields zeros and empty lists.
func (s *Service) Summary(ctx context.Context, rng validation.DateRange) (*Summary, error) {
	bills, err := s.bills(ctx, rng)
	if err != nil {
		return nil, err
	}

	var expenses []models.Expense
	if err := rng.Apply(s.db.WithContext(ctx).Model(&models.Expense{}), "date").
		Preload("Category").
		Find(&expenses).Error; err != nil {
		return nil, apperror.Internal("load expenses failed", err)
	}

	var revenue, spent acc
	days := map[string]*acc{}
	areas := map[string]*acc{}
	subareas := map[string]*acc{}
	clients := map[uint]*acc{}
	clientNames := map[uint]string{}
	categories := map[string]*acc{}

	bump := func(m map[string]*acc, key string, v float64) {
		a, ok := m[key]
		if !ok {
			a = &acc{}
			m[key] = a
		}
		a.add(v)
	}

	for _, b := range bills {
		revenue.add(b.FinalAmount)
		bump(days, b.Date.UTC().Format(validation.DateLayout), b.FinalAmount)

		area, subarea, name := "", "", ""
		if b.Client != nil {
			area, subarea, name = b.Client.Area, b.Client.Subarea, b.Client.Name
		}
		bump(areas, orUnassigned(area), b.FinalAmount)
		bump(subareas, orUnassigned(subarea), b.FinalAmount)

		a, ok := clients[b.ClientID]
		if !ok {
			a = &acc{}
			clients[b.ClientID] = a
			clientNames[b.ClientID] = name
		}
		a.add(b.FinalAmount)
	}

	for _, e := range expenses {
		spent.add(e.Amount)
		name := ""
		if e.Category != nil {
			name = e.Category.Name
		}
		bump(categories, orUnassigned(name), e.Amount)
	}

	out := &Summary{
		TotalRevenue:       revenue.total(),
		TotalExpenses:      spent.total(),
		NetIncome:          revenue.sum.Sub(spent.sum).Round(2).InexactFloat64(),
		BillCount:          revenue.count,
		ExpenseCount:       spent.count,
		RevenueByDay:       byDay(days),
		RevenueByArea:      groups(areas),
		RevenueBySubarea:   groups(subareas),
		RevenueByClient:    make([]ClientTotal, 0, len(clients)),
		ExpensesByCategory: groups(categories),
		RecentBills:        recent(bills),
	}
	for id, a := range clients {
		out.RevenueByClient = append(out.RevenueByClient, ClientTotal{ClientID: id, Name: clientNames[id], Total: a.total(), Count: a.count})
	}
	sort.Slice(out.RevenueByClient, func(i, j int) bool {
		ci, cj := out.RevenueByClient[i], out.RevenueByClient[j]
		if ci.Total != cj.Total {
			return ci.Total > cj.Total
		}
		return ci.ClientID < cj.ClientID
	})
	return out, nil
}

// byDay returns the per-day totals in calendar order.
func byDay(m map[string]*acc) []DayTotal {
	out := make([]DayTotal, 0, len(m))
	for day, a := range m {
		out = append(out, DayTotal{Date: day, Total: a.total(), Count: a.count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// recent takes the newest bills from a date-descending slice.
func recent(bills []models.Bill) []models.Bill {
	n := len(bills)
	if n > RecentBillsLimit {
		n = RecentBillsLimit
	}
	out := make([]models.Bill, n)
	copy(out, bills[:n])
	return out
}
