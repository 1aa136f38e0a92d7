// Package nutrition resolves one food name to a per-100 g nutrient record.
package nutrition

import (
	"context"
	"errors"
	"strings"

	"nutrilens-server-go/internal/domain/food"
)

var (
	// ErrNotFound means the database has no entry for the name.
	ErrNotFound = errors.New("food not found in nutrition database")
	// ErrUnavailable means the database could not be consulted.
	ErrUnavailable = errors.New("nutrition lookup unavailable")
)

// Lookup resolves a food name. Missing nutrients are left unavailable, never zero.
type Lookup interface {
	Lookup(ctx context.Context, name string) (food.NutrientRecord, error)
}

// NormalizeName lowercases name and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
