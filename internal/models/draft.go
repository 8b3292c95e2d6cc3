package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const draftPrefix = "draft-"

// DraftOrderNumber is the placeholder label drafts carry in listings.
const DraftOrderNumber = "Draft"

// Draft is the in-memory line buffer a user fills before submitting an order.
type Draft struct {
	ID        string     `json:"id"`
	OwnerID   int64      `json:"owner_id"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Lines     []LineItem `json:"lines"`
}

// DraftID derives the synthetic key of the owner's draft.
func DraftID(ownerID int64) string {
	return fmt.Sprintf("%s%d", draftPrefix, ownerID)
}

// ParseDraftID extracts the owner from a synthetic draft key.
func ParseDraftID(id string) (int64, bool) {
	if !strings.HasPrefix(id, draftPrefix) {
		return 0, false
	}
	owner, err := strconv.ParseInt(strings.TrimPrefix(id, draftPrefix), 10, 64)
	if err != nil || owner <= 0 {
		return 0, false
	}
	return owner, true
}

// Clone returns a deep copy safe to hand out of a store.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := *d
	out.Lines = make([]LineItem, len(d.Lines))
	copy(out.Lines, d.Lines)
	return &out
}

// Summarize projects the draft into the listing shape.
func (d *Draft) Summarize() OrderSummary {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Subtotal())
	}
	return OrderSummary{
		ID:          d.ID,
		OrderNumber: DraftOrderNumber,
		OwnerID:     d.OwnerID,
		Status:      StatusDraft,
		CreatedAt:   d.CreatedAt,
		LineCount:   len(d.Lines),
		Lines:       briefs(d.Lines),
		Total:       total,
	}
}
