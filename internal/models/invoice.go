package models

import (
	"errors"
	"fmt"
)

// Invoice statuses.
const (
	InvoiceStatusDraft   = "draft"
	InvoiceStatusSent    = "sent"
	InvoiceStatusPaid    = "paid"
	InvoiceStatusOverdue = "overdue"
)

// ValidInvoiceStatus reports whether s is a known invoice status.
func ValidInvoiceStatus(s string) bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// LineItem is one billed line on an invoice. Amounts and GST rates are
// computed by the tax collaborator and stored here verbatim.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	GSTRate     float64 `json:"gst_rate"`
	Amount      float64 `json:"amount"`
}

// Invoice represents a bill issued against a project.
type Invoice struct {
	ID        string     `json:"id"`
	Number    string     `json:"number"`
	ClientID  string     `json:"client_id"`
	ProjectID string     `json:"project_id,omitempty"`
	Status    string     `json:"status"`
	IssueDate string     `json:"issue_date"` // YYYY-MM-DD
	DueDate   string     `json:"due_date,omitempty"`
	LineItems []LineItem `json:"line_items,omitempty"`
	Subtotal  float64    `json:"subtotal"`
	GSTAmount float64    `json:"gst_amount"`
	Total     float64    `json:"total"`
	Notes     string     `json:"notes,omitempty"`
	Synced    bool       `json:"synced"`
	CreatedAt int64      `json:"created_at"`
	UpdatedAt int64      `json:"updated_at"`
}

// Validate checks the fields a new invoice record must carry.
func (i *Invoice) Validate() error {
	if i.Number == "" {
		return errors.New("invoice number is required")
	}
	if i.ClientID == "" {
		return errors.New("invoice client_id is required")
	}
	if i.Status != "" && !ValidInvoiceStatus(i.Status) {
		return fmt.Errorf("unknown invoice status %q", i.Status)
	}
	return nil
}
