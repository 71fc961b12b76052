// Package postgres implements a Postgres-backed points repository.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/Deltaline/internal/domain"
	"github.com/vshulcz/Deltaline/internal/misc"
	"github.com/vshulcz/Deltaline/internal/ports"
)

// Repo persists points in Postgres with retryable operations.
type Repo struct {
	db      *sql.DB
	backoff []time.Duration
}

var _ ports.PointsRepo = (*Repo)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
}

// New returns a repository retrying transient failures on misc.DefaultBackoff.
func New(db *sql.DB) *Repo {
	return &Repo{db: db, backoff: misc.DefaultBackoff}
}

const qInsert = `INSERT INTO points (name, source, measure_time, value) VALUES ($1, $2, $3, $4)`

// Append inserts every point in one transaction.
func (r *Repo) Append(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	attempt := func() error {
		tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return err
		}
		defer func() {
			_ = tx.Rollback()
		}()

		stmt, err := tx.PrepareContext(ctx, qInsert)
		if err != nil {
			return err
		}
		defer func() {
			_ = stmt.Close()
		}()

		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, p.Name, p.Source, p.MeasureTime, p.Value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}
	return misc.Retry(ctx, r.backoff, isRetryablePG, attempt)
}

// Latest returns up to limit points of name, newest first, or domain.ErrNotFound.
func (r *Repo) Latest(ctx context.Context, name string, limit int) ([]domain.Point, error) {
	const q = `
SELECT name, source, measure_time, value FROM points
WHERE name=$1
ORDER BY measure_time DESC, id DESC
LIMIT $2`
	if limit <= 0 {
		limit = 100
	}

	var out []domain.Point
	op := func() error {
		rows, err := r.db.QueryContext(ctx, q, name, limit)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		pts := make([]domain.Point, 0, limit)
		for rows.Next() {
			var p domain.Point
			if err := rows.Scan(&p.Name, &p.Source, &p.MeasureTime, &p.Value); err != nil {
				return err
			}
			pts = append(pts, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = pts
		return nil
	}
	if err := misc.Retry(ctx, r.backoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domain.ErrNotFound
	}
	return out, nil
}

// Names lists stored measurement names in lexical order.
func (r *Repo) Names(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT name FROM points ORDER BY name`
	var out []string
	op := func() error {
		rows, err := r.db.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		var names []string
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				return err
			}
			names = append(names, n)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		out = names
		return nil
	}
	if err := misc.Retry(ctx, r.backoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping verifies the database connection using a short-lived context.
func (r *Repo) Ping(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

// IsRetryable reports whether err is a transient Postgres or network failure.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

// Class 08 is connection exceptions, class 40 is transaction rollback.
func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "40")
}
