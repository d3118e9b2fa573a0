package models

import "time"

// Project is the subset of the externally owned project record the assistant reads and writes.
type Project struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	Tags         []string   `json:"tags"`
	Summary      string     `json:"summary"`
	Role         string     `json:"role"`
	Achievements string     `json:"achievements"`
	Tools        string     `json:"tools"`
	Description  string     `json:"description"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
}

// Clone returns a copy that shares no slices or pointers with p.
func (p Project) Clone() Project {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.StartDate != nil {
		d := *p.StartDate
		out.StartDate = &d
	}
	if p.EndDate != nil {
		d := *p.EndDate
		out.EndDate = &d
	}
	return out
}
