package model

import (
	"strconv"
	"strings"
)

// Address is the structured postal address shared by clients and projects.
// Postal is kept as a string so leading zeros survive (e.g. 08001).
type Address struct {
	Street   string `json:"street"`
	Number   int    `json:"number"`
	Postal   string `json:"postal"`
	City     string `json:"city"`
	Province string `json:"province"`
}

// OneLine renders the address for documents, skipping empty parts.
func (a Address) OneLine() string {
	street := a.Street
	if a.Number != 0 {
		street = strings.TrimSpace(street + " " + strconv.Itoa(a.Number))
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{street, a.Postal, a.City, a.Province} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
