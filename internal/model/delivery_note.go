package model

import (
	"errors"
	"strings"
	"time"
)

// Delivery note formats.
const (
	FormatMaterial = "material"
	FormatHours    = "hours"
)

// DeliveryNote documents work done for a client under a project.  Exactly
// one of Material or Hours is set, chosen by Format.  Once Signed is true the
// content is frozen; PDFURL/PDFCID reference the rendered artifact.
// DeletedAt marks a recoverable (soft) deletion.
type DeliveryNote struct {
	ID          uint64     `json:"id"`
	ClientID    uint64     `json:"clientId"`
	ProjectID   uint64     `json:"projectId"`
	Format      string     `json:"format"`
	Material    *string    `json:"material,omitempty"`
	Hours       *float64   `json:"hours,omitempty"`
	Description string     `json:"description"`
	WorkDate    time.Time  `json:"workdate"`
	CreatedBy   uint64     `json:"user"`
	CompanyCIF  string     `json:"companyCIF,omitempty"`
	Signed      bool       `json:"signed"`
	PDFURL      string     `json:"pdfUrl,omitempty"`
	PDFCID      string     `json:"pdfCid,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Owner implements access.Record.
func (d *DeliveryNote) Owner() uint64 { return d.CreatedBy }

// SharedCIF implements access.Record.
func (d *DeliveryNote) SharedCIF() string { return d.CompanyCIF }

// Deleted reports whether the note is soft-deleted.
func (d *DeliveryNote) Deleted() bool { return d.DeletedAt != nil }

// DeliveryNoteDetail is a note with its client, project and issuer resolved,
// which is what the PDF renderer needs.
type DeliveryNoteDetail struct {
	DeliveryNote
	Client  *Client  `json:"client"`
	Project *Project `json:"project"`
	Issuer  *User    `json:"issuer"`
}

// DeliveryNotePatch lists the mutable fields of an unsigned note.  Setting
// Format requires the matching companion field; the service validates the
// merged result.
type DeliveryNotePatch struct {
	Format      *string
	Material    *string
	Hours       *float64
	Description *string
	WorkDate    *time.Time
}

// Apply merges the patch onto d and clears the companion field that no
// longer matches the format.
func (p DeliveryNotePatch) Apply(d *DeliveryNote) {
	if p.Format != nil {
		d.Format = *p.Format
	}
	if p.Material != nil {
		m := *p.Material
		d.Material = &m
	}
	if p.Hours != nil {
		h := *p.Hours
		d.Hours = &h
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.WorkDate != nil {
		d.WorkDate = *p.WorkDate
	}
	switch d.Format {
	case FormatHours:
		d.Material = nil
	case FormatMaterial:
		d.Hours = nil
	}
}

// Validate checks the format invariant: hours notes carry a positive number
// of hours and no material, material notes carry a material and no hours.
func (d *DeliveryNote) Validate() error {
	switch d.Format {
	case FormatHours:
		if d.Hours == nil || *d.Hours <= 0 {
			return errors.New("format hours requires a positive hours value")
		}
		if d.Material != nil {
			return errors.New("format hours does not accept material")
		}
	case FormatMaterial:
		if d.Material == nil || strings.TrimSpace(*d.Material) == "" {
			return errors.New("format material requires material")
		}
		if d.Hours != nil {
			return errors.New("format material does not accept hours")
		}
	default:
		return errors.New("format must be material or hours")
	}
	if strings.TrimSpace(d.Description) == "" {
		return errors.New("description is required")
	}
	if d.WorkDate.IsZero() {
		return errors.New("workdate is required")
	}
	return nil
}

// Conflicts reports a companion field that contradicts the format the note
// will have once the patch is applied to a note currently in format current.
func (p DeliveryNotePatch) Conflicts(current string) error {
	format := current
	if p.Format != nil {
		format = *p.Format
	}
	switch {
	case format == FormatHours && p.Material != nil:
		return errors.New("format hours does not accept material")
	case format == FormatMaterial && p.Hours != nil:
		return errors.New("format material does not accept hours")
	}
	return nil
}
