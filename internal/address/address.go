// Package address formats delivery addresses for the logistics center.
package address

import "strings"

// Parts is a street address as stored on orders, groups and suppliers.
type Parts struct {
	City      string
	Street    string
	Number    string
	Apartment string
}

// StreetLine renders "<number> <street>[, <apartment>]", skipping blanks.
func StreetLine(street, number, apartment string) string {
	line := strings.TrimSpace(strings.Join(nonEmpty(number, street), " "))
	if apt := strings.TrimSpace(apartment); apt != "" {
		if line == "" {
			return apt
		}
		line += ", " + apt
	}
	return line
}

// StreetLine renders the street line of p.
func (p Parts) StreetLine() string {
	return StreetLine(p.Street, p.Number, p.Apartment)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
