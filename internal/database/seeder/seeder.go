// Package seeder writes demo documents so a fresh environment has data to
// show on the dashboard.
package seeder

import (
	"context"

	"apply-codes/internal/store"
)

type Seeder interface {
	Name() string
	Run(ctx context.Context, s store.Store) error
}
