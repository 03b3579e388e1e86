package models

import "strings"

// Subject belongs to one school. Abbreviation keys spreadsheet answer columns.
type Subject struct {
	ID           string  `db:"id" json:"id"`
	SchoolID     string  `db:"school_id" json:"school_id" validate:"required"`
	Name         string  `db:"name" json:"name" validate:"required,max=128"`
	Abbreviation *string `db:"abbreviation" json:"abbreviation,omitempty" validate:"omitempty,max=16"`
}

// AbbreviationKey returns the upper-cased abbreviation used for column matching.
func (s Subject) AbbreviationKey() string {
	if s.Abbreviation == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*s.Abbreviation))
}
