package models

import "errors"

// Client represents a customer the business invoices.
//
// GSTIN and the place-of-supply state are carried as opaque data for the
// invoicing collaborator; no tax arithmetic happens in this layer.
type Client struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	GSTIN     string `json:"gstin,omitempty"`
	Address   string `json:"address,omitempty"`
	State     string `json:"state,omitempty"`
	Synced    bool   `json:"synced"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Validate checks the fields a new client record must carry.
func (c *Client) Validate() error {
	if c.Name == "" {
		return errors.New("client name is required")
	}
	return nil
}
