// Package features manages the global feature catalog. A feature's slug is
// its immutable identity; plans, roles and overrides all reference features
// by slug.
package features

import "time"

// Feature is one catalog entry.
type Feature struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
