package seeder

import (
	"context"
	"errors"
	"fmt"

	"apply-codes/internal/logger"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

type Runner struct {
	Seeders []Seeder
	Logger  *zap.Logger
}

func (r Runner) Run(ctx context.Context, s store.Store) error {
	if s == nil {
		return fmt.Errorf("nil store")
	}
	log := logger.OrNop(r.Logger)
	for _, sd := range r.Seeders {
		if sd == nil {
			continue
		}
		if err := sd.Run(ctx, s); err != nil {
			return fmt.Errorf("seed %s: %w", sd.Name(), err)
		}
		log.Info("seeded", zap.String("seeder", sd.Name()))
	}
	return nil
}

// create inserts a document and treats an existing id as already seeded.
func create(ctx context.Context, s store.Store, collection, id string, data any) error {
	err := s.Create(ctx, collection, id, data)
	if errors.Is(err, store.ErrAlreadyExists) {
		return nil
	}
	return err
}
