package domain

import "time"

// Project is a tracked facility project, identified by a stable content
// slug that is immutable once recorded except by explicit rename migration.
type Project struct {
	Slug        string
	LocalNames  []string // append-only set of directory names observed for this slug
	Visibility  Visibility
	FirstSeen   time.Time
	LastActive  time.Time
	TotalEvents int64
}

// AddLocalName appends dir to LocalNames if not already present.
func (p *Project) AddLocalName(dir string) {
	for _, n := range p.LocalNames {
		if n == dir {
			return
		}
	}
	p.LocalNames = append(p.LocalNames, dir)
}

// Visibility classifies a project as publicly visible or not.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)
