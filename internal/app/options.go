package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"venue_finder/internal/domain"
)

// Options carries the tunables of the query and write paths.
type Options struct {
	PageSize       int
	TopMinReviews  int
	TopLimit       int
	MaxDistanceM   float64
	SlugMaxRetries int
	OpTimeout      time.Duration
	CacheTTL       time.Duration
}

func DefaultOptions() Options {
	return Options{
		PageSize:       6,
		TopMinReviews:  2,
		TopLimit:       10,
		MaxDistanceM:   10000,
		SlugMaxRetries: 5,
		OpTimeout:      5 * time.Second,
		CacheTTL:       5 * time.Minute,
	}
}

func (o Options) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.OpTimeout)
}

func (o Options) ttlSeconds() int { return int(o.CacheTTL.Seconds()) }

// classify turns whatever the store returned into one of the domain errors.
// Anything unexpected is logged here and surfaced as a StorageError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Str("op", op).Err(err).Msg("operation deadline exceeded")
		return fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, context.Canceled):
		return err
	}
	log.Error().Str("op", op).Err(err).Msg("storage failure")
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StorageError{Op: op, Err: err}
}
