// Package access holds the ownership predicates applied before every read,
// mutation, archive or delete of a client, project or delivery note.  The
// functions are pure: they never touch storage.
package access

import "github.com/iliyamo/albaranes/internal/model"

// Record is anything owned by a user and optionally shared with a company.
type Record interface {
	Owner() uint64
	SharedCIF() string
}

// CanAccess reports whether principal may act on rec: the principal created
// it, or the principal has a company CIF equal to the CIF stamped on the
// record.  CIFs are compared verbatim; an empty CIF never matches.
func CanAccess(principal *model.User, rec Record) bool {
	if principal == nil || rec == nil {
		return false
	}
	if rec.Owner() == principal.ID {
		return true
	}
	cif := principal.CompanyCIF()
	return cif != "" && rec.SharedCIF() == cif
}

// CanAccessProject is the narrower project rule: creator only.
func CanAccessProject(principal *model.User, p *model.Project) bool {
	return principal != nil && p != nil && p.CreatedBy == principal.ID
}
