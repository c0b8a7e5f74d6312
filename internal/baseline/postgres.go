// internal/baseline/postgres.go
package baseline

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	apperrors "shoe-size-analytics/internal/common/errors"
	"shoe-size-analytics/internal/models"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore reads baselines from a table shaped like
//
//	CREATE TABLE size_baselines (period TEXT, size NUMERIC(4,1), order_count INTEGER)
type PostgresStore struct {
	db    *sql.DB
	query string
}

func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid baseline table name %q", table)
	}
	return &PostgresStore{
		db: db,
		query: fmt.Sprintf(`
		SELECT size, SUM(order_count)
		FROM %s
		WHERE period = $1
		GROUP BY size
		ORDER BY size`, table),
	}, nil
}

func (s *PostgresStore) Lookup(ctx context.Context, period string) (*models.PriorPeriod, error) {
	period, err := NormalizePeriod(period)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.query, period)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("baseline", err)
	}
	defer rows.Close()

	prior := &models.PriorPeriod{Label: period}
	for rows.Next() {
		var (
			size  float64
			count int
		)
		if err := rows.Scan(&size, &count); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("baseline", err)
		}
		if !models.ValidSize(size) || count <= 0 {
			continue
		}
		prior.Sizes = append(prior.Sizes, models.SizeStat{Size: size, Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("baseline", err)
	}

	if len(prior.Sizes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, period)
	}
	return prior, nil
}
