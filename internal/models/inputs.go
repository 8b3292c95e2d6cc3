package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineInput is the caller-supplied shape of a new line item.
type LineInput struct {
	Description       string           `json:"description" validate:"required,min=10,max=1000"`
	Dimensions        string           `json:"dimensions" validate:"omitempty,max=200"`
	Material          string           `json:"material" validate:"omitempty,max=100"`
	Color             string           `json:"color" validate:"omitempty,max=50"`
	Style             string           `json:"style" validate:"omitempty,max=100"`
	Quantity          *int             `json:"quantity" validate:"omitempty,gte=1"`
	UnitPrice         *decimal.Decimal `json:"unitPrice"`
	Notes             string           `json:"notes" validate:"omitempty,max=500"`
	ReferenceImageURL string           `json:"referenceImageUrl" validate:"omitempty,url,max=500"`
}

func (in LineInput) extraChecks(prefix string, fields map[string]string) {
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		fields[prefix+"unitPrice"] = "Field 'unitPrice' must not be negative"
	}
	if strings.TrimSpace(in.Description) == "" {
		if _, ok := fields[prefix+"description"]; !ok {
			fields[prefix+"description"] = "Field 'description' failed on the 'required' tag"
		}
	}
}

// ToLine builds an unnumbered line item, defaulting quantity to 1.
func (in LineInput) ToLine() LineItem {
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	line := LineItem{
		Description:       strings.TrimSpace(in.Description),
		Dimensions:        in.Dimensions,
		Material:          in.Material,
		Color:             in.Color,
		Style:             in.Style,
		Quantity:          qty,
		Notes:             in.Notes,
		ReferenceImageURL: in.ReferenceImageURL,
	}
	if in.UnitPrice != nil {
		line.UnitPrice = decimal.NewNullDecimal(*in.UnitPrice)
	}
	return line
}

// CreateOrderInput creates an order directly, bypassing the draft.
type CreateOrderInput struct {
	Lines           []LineInput `json:"lines" validate:"required,min=1,dive"`
	ClientNotes     string      `json:"clientNotes" validate:"omitempty,max=1000"`
	DeliveryAddress string      `json:"deliveryAddress" validate:"omitempty,max=500"`
}

func (in CreateOrderInput) extraChecks(_ string, fields map[string]string) {
	for i, l := range in.Lines {
		l.extraChecks(fmt.Sprintf("lines[%d].", i), fields)
	}
}

// RequestQuoteInput carries the optional notes copied onto a materialized draft.
type RequestQuoteInput struct {
	ClientNotes     string `json:"clientNotes" validate:"omitempty,max=1000"`
	DeliveryAddress string `json:"deliveryAddress" validate:"omitempty,max=500"`
}

// StatusUpdateInput is the administrator request to move an order.
type StatusUpdateInput struct {
	Status       Status     `json:"status" validate:"required,oneof=new quoting approved in_production delivered cancelled"`
	AdminNotes   string     `json:"adminNotes" validate:"omitempty,max=1000"`
	DeliveryDate *time.Time `json:"deliveryDate"`
}

// LineQuoteInput prices one line. A missing price is rejected rather than
// read as zero.
type LineQuoteInput struct {
	LineID    int64            `json:"id" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"price" validate:"required"`
}

// QuoteInput is the administrator request to price an order.
type QuoteInput struct {
	Lines          []LineQuoteInput `json:"lines" validate:"required,min=1,dive"`
	EstimatedTotal *decimal.Decimal `json:"estimatedTotal" validate:"required"`
}

func (in QuoteInput) extraChecks(_ string, fields map[string]string) {
	for i, l := range in.Lines {
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			fields[fmt.Sprintf("lines[%d].price", i)] = "Field 'price' must not be negative"
		}
	}
	if in.EstimatedTotal != nil && in.EstimatedTotal.IsNegative() {
		fields["estimatedTotal"] = "Field 'estimatedTotal' must not be negative"
	}
}

// ToQuote converts the request into the repository shape.
func (in QuoteInput) ToQuote() Quote {
	q := Quote{Lines: make([]LineQuote, 0, len(in.Lines))}
	for _, l := range in.Lines {
		lq := LineQuote{LineID: l.LineID}
		if l.UnitPrice != nil {
			lq.UnitPrice = *l.UnitPrice
		}
		q.Lines = append(q.Lines, lq)
	}
	if in.EstimatedTotal != nil {
		q.EstimatedTotal = *in.EstimatedTotal
	}
	return q
}
