package model

import "time"

// Client represents a customer owned by a user and shared with the user's
// company through CompanyCIF.  It corresponds to a row in the `clients`
// table.
type Client struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	NIF        string    `json:"nif,omitempty"`
	Address    Address   `json:"address"`
	Archived   bool      `json:"archived"`
	CreatedBy  uint64    `json:"createdBy"`
	CompanyCIF string    `json:"companyCIF,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Owner implements access.Record.
func (c *Client) Owner() uint64 { return c.CreatedBy }

// SharedCIF implements access.Record.
func (c *Client) SharedCIF() string { return c.CompanyCIF }

// ClientPatch lists the mutable client fields.  Nil means "keep".
type ClientPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	NIF     *string
	Address *Address
}

// Apply copies every non-nil field onto c.
func (p ClientPatch) Apply(c *Client) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.NIF != nil {
		c.NIF = *p.NIF
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
}
