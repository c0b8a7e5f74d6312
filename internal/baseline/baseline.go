// internal/baseline/baseline.go
package baseline

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"shoe-size-analytics/internal/models"
)

var (
	ErrNotFound      = errors.New("baseline period not found")
	ErrInvalidPeriod = errors.New("invalid baseline period")
)

// Provider returns the size counts recorded for an earlier period. The data
// is read-only reference input for the demand projector.
type Provider interface {
	Lookup(ctx context.Context, period string) (*models.PriorPeriod, error)
}

var periodRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:\-]{0,63}$`)

// NormalizePeriod trims and validates a period key such as "2024-Q1".
func NormalizePeriod(period string) (string, error) {
	p := strings.TrimSpace(period)
	if !periodRe.MatchString(p) {
		return "", ErrInvalidPeriod
	}
	return p, nil
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout bounds every lookup on next by d. A non-positive d returns
// next unchanged.
func WithTimeout(next Provider, d time.Duration) Provider {
	if d <= 0 {
		return next
	}
	return &timeoutProvider{next: next, timeout: d}
}

func (p *timeoutProvider) Lookup(ctx context.Context, period string) (*models.PriorPeriod, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.next.Lookup(ctx, period)
}
