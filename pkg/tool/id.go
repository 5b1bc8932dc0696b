// Package tool holds small helpers shared across packages.
package tool

import "github.com/google/uuid"

// GenerateUUIDV7 returns a time-ordered UUID so primary keys sort by creation. It falls back to a
// random UUID if the clock source fails.
func GenerateUUIDV7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
