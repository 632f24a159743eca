// Package uuid issues aggregation run IDs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator issues run IDs. IDs are UUIDv7, so sorting the run ledger by ID
// orders runs by start time.
type Generator struct{}

// New returns a run ID generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns the ID for a new aggregation run.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("run id: %w", err)
	}
	return id.String(), nil
}
