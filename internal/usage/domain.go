// Package usage tracks per-user consumption counters for limited features.
// Counters only grow between resets; the monthly reset job zeroes them all
// at the start of each billing period.
package usage

import "time"

// Counter is one user's consumption of one limited feature.
type Counter struct {
	UserID      int64     `json:"user_id"`
	FeatureSlug string    `json:"feature_slug"`
	Used        int64     `json:"used"`
	UpdatedAt   time.Time `json:"updated_at"`
}
