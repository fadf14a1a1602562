package model

import "time"

// Project is a work engagement for exactly one client.  Projects are private
// to their creator; there is no company sharing.
type Project struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	ProjectCode string    `json:"projectCode"`
	Code        string    `json:"code"`
	Email       string    `json:"email"`
	Address     Address   `json:"address"`
	ClientID    uint64    `json:"clientId"`
	Archived    bool      `json:"archived"`
	CreatedBy   uint64    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectPatch lists the mutable project fields.
type ProjectPatch struct {
	Name        *string
	ProjectCode *string
	Code        *string
	Email       *string
	Address     *Address
	ClientID    *uint64
}

// Apply copies every non-nil field onto p.
func (pp ProjectPatch) Apply(p *Project) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.ProjectCode != nil {
		p.ProjectCode = *pp.ProjectCode
	}
	if pp.Code != nil {
		p.Code = *pp.Code
	}
	if pp.Email != nil {
		p.Email = *pp.Email
	}
	if pp.Address != nil {
		p.Address = *pp.Address
	}
	if pp.ClientID != nil {
		p.ClientID = *pp.ClientID
	}
}
