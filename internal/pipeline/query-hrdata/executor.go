package queryhrdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "hr-assistant/internal/common/errors"
	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/common/metrics"
	"hr-assistant/internal/models"
)

const (
	TaskType = "query-hrdata"
)

var (
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
)

// Executor runs built queries read-only against the dataset store.
type Executor struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewExecutor(config *Config, db *sql.DB, log logger.Logger) *Executor {
	if config == nil {
		config = LoadConfig()
	}
	return &Executor{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"stage": TaskType}),
	}
}

// Run executes q under the per-statement timeout. Zero rows yield an empty,
// non-nil Rows.
func (e *Executor) Run(ctx context.Context, q Query) (models.Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.query(ctx, q)
	elapsed := time.Since(start)
	metrics.QueryDuration.WithLabelValues(string(q.Shape)).Observe(elapsed.Seconds())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrQueryTimeout,
				apperrors.NewQueryTimeoutError(e.config.Timeout).WithMetadata("shape", string(q.Shape)))
		}
		return nil, fmt.Errorf("%w: %w", ErrQueryExecutionFailed,
			apperrors.NewQueryExecutionFailedError(err).WithMetadata("shape", string(q.Shape)))
	}

	e.logger.Debug("query executed", map[string]interface{}{
		"shape":    string(q.Shape),
		"rowCount": len(rows),
		"duration": elapsed.Milliseconds(),
	})
	return rows, nil
}

func (e *Executor) query(ctx context.Context, q Query) (models.Rows, error) {
	rows, err := e.db.QueryContext(ctx, e.config.Dialect.Rebind(q.Text), q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := models.Rows{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Drivers return TEXT and NUMERIC as []byte; callers only deal with strings.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02")
	}
	return v
}
