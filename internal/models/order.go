package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one requested furniture piece within a draft or an order.
type LineItem struct {
	ID                int64               `json:"id" gorm:"primaryKey"`
	OrderID           int64               `json:"order_id,omitempty" gorm:"index"`
	Description       string              `json:"description" gorm:"type:text;not null"`
	Dimensions        string              `json:"dimensions,omitempty" gorm:"type:varchar(200)"`
	Material          string              `json:"material,omitempty" gorm:"type:varchar(100)"`
	Color             string              `json:"color,omitempty" gorm:"type:varchar(50)"`
	Style             string              `json:"style,omitempty" gorm:"type:varchar(100)"`
	Quantity          int                 `json:"quantity" gorm:"not null;default:1"`
	UnitPrice         decimal.NullDecimal `json:"unit_price" gorm:"type:decimal(12,2)"`
	Notes             string              `json:"notes,omitempty" gorm:"type:varchar(500)"`
	ReferenceImageURL string              `json:"reference_image_url,omitempty" gorm:"type:varchar(500)"`
}

// Subtotal is unit price times quantity, zero while the line is unpriced.
func (l LineItem) Subtotal() decimal.Decimal {
	if !l.UnitPrice.Valid {
		return decimal.Zero
	}
	return l.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// StatusChange is one entry of an order's append-only status history.
// ChangedBy is nil for self-service and system changes.
type StatusChange struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	OrderID    int64     `json:"order_id" gorm:"index;not null"`
	FromStatus Status    `json:"from_status" gorm:"type:varchar(20)"`
	ToStatus   Status    `json:"to_status" gorm:"type:varchar(20)"`
	ChangedBy  *int64    `json:"changed_by"`
	Comment    string    `json:"comment,omitempty" gorm:"type:varchar(1000)"`
	ChangedAt  time.Time `json:"changed_at"`
}

// Order is a persisted purchase record.
type Order struct {
	ID              int64           `json:"id" gorm:"primaryKey"`
	OrderNumber     string          `json:"order_number,omitempty" gorm:"type:varchar(50)"`
	OwnerID         int64           `json:"owner_id" gorm:"index;not null"`
	Status          Status          `json:"status" gorm:"type:varchar(20);index;not null"`
	ClientNotes     string          `json:"client_notes,omitempty" gorm:"type:varchar(1000)"`
	DeliveryAddress string          `json:"delivery_address,omitempty" gorm:"type:varchar(500)"`
	AdminNotes      string          `json:"admin_notes,omitempty" gorm:"type:varchar(1000)"`
	EstimatedTotal  decimal.Decimal `json:"estimated_total" gorm:"type:decimal(12,2);not null;default:0"`
	DeliveryDate    *time.Time      `json:"delivery_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Lines           []LineItem      `json:"lines" gorm:"foreignKey:OrderID"`
	History         []StatusChange  `json:"history" gorm:"foreignKey:OrderID"`
}

// ComputedTotal sums the subtotals of every priced line.
func (o *Order) ComputedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Summary projects the order into the listing shape.
func (o *Order) Summary() OrderSummary {
	number := o.OrderNumber
	if number == "" {
		number = fmt.Sprintf("ORD-%06d", o.ID)
	}
	total := o.EstimatedTotal
	if total.IsZero() {
		total = o.ComputedTotal()
	}
	return OrderSummary{
		ID:           strconv.FormatInt(o.ID, 10),
		OrderNumber:  number,
		OwnerID:      o.OwnerID,
		Status:       o.Status,
		CreatedAt:    o.CreatedAt,
		LineCount:    len(o.Lines),
		Lines:        briefs(o.Lines),
		Total:        total,
		DeliveryDate: o.DeliveryDate,
	}
}

// LineBrief is the condensed line shape used in listings.
type LineBrief struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Quantity          int    `json:"quantity"`
	ReferenceImageURL string `json:"reference_image_url,omitempty"`
}

func briefs(lines []LineItem) []LineBrief {
	out := make([]LineBrief, 0, len(lines))
	for _, l := range lines {
		qty := l.Quantity
		if qty == 0 {
			qty = 1
		}
		out = append(out, LineBrief{ID: l.ID, Name: l.Description, Quantity: qty, ReferenceImageURL: l.ReferenceImageURL})
	}
	return out
}

// OrderSummary is the listing projection shared by drafts and persisted orders.
type OrderSummary struct {
	ID           string          `json:"id"`
	OrderNumber  string          `json:"order_number"`
	OwnerID      int64           `json:"owner_id"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	LineCount    int             `json:"line_count"`
	Lines        []LineBrief     `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	DeliveryDate *time.Time      `json:"delivery_date"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination fills Pages from total and limit.
func NewPagination(page, limit, total int) Pagination {
	pages := 1
	if limit > 0 && total > limit {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// OrderPage is a page of persisted orders.
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// EmptyOrderPage is the result of a listing that found nothing.
func EmptyOrderPage(page, limit int) *OrderPage {
	return &OrderPage{Orders: []Order{}, Pagination: Pagination{Page: page, Limit: limit, Total: 0, Pages: 0}}
}

// SummaryPage is a page of order summaries.
type SummaryPage struct {
	Orders     []OrderSummary `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	OwnerID *int64
	Status  Status
	Page    int
	Limit   int
}

// Normalize applies default paging.
func (f OrderFilter) Normalize() OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

// LineQuote prices a single line of an order.
type LineQuote struct {
	LineID    int64           `json:"id"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Quote is the price set an administrator attaches to an order.
type Quote struct {
	Lines          []LineQuote
	EstimatedTotal decimal.Decimal
}

// QuoteResult exposes the supplied and the computed totals side by side.
type QuoteResult struct {
	Order          *Order          `json:"order"`
	SuppliedTotal  decimal.Decimal `json:"supplied_total"`
	ComputedTotal  decimal.Decimal `json:"computed_total"`
	TotalMismatch  bool            `json:"total_mismatch"`
	UnmatchedLines []int64         `json:"unmatched_lines,omitempty"`
}

// StatusStat aggregates orders sharing a status.
type StatusStat struct {
	Status     Status          `json:"status"`
	Count      int             `json:"count"`
	TotalValue decimal.Decimal `json:"total_value"`
}
