package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Sunnyio/attendanceManager/internal/apperror"
	"github.com/Sunnyio/attendanceManager/internal/database"
	"github.com/Sunnyio/attendanceManager/internal/retry"
)

const (
	msgAdded    = "Attendance added successfully"
	msgUpdated  = "Attendance updated successfully"
	msgNotFound = "Attendance record not found"

	msgAddConflict    = "attendance record already exists or violates constraints"
	msgUpdateConflict = "update violates data constraints"
	msgUnavailable    = "database temporarily unavailable"
)

// Repository reads and writes attendance records. Each operation runs in its
// own transaction and is retried only on transient storage failures.
type Repository struct {
	pool   *database.Pool
	policy retry.Policy
}

func NewRepository(pool *database.Pool, policy retry.Policy) *Repository {
	return &Repository{
		pool:   pool,
		policy: policy.WithRetryable(isTransient),
	}
}

func isTransient(err error) bool {
	return apperror.Is(err, apperror.KindTransient)
}

// Add inserts entry.
func (r *Repository) Add(ctx context.Context, entry Entry) (Ack, error) {
	if err := entry.Validate(); err != nil {
		return Ack{}, err
	}

	return retry.Do(ctx, r.policy, "add attendance", func(ctx context.Context) (Ack, error) {
		return database.WithTx(ctx, r.pool, func(ctx context.Context, tx *database.Tx) (Ack, error) {
			_, err := tx.Exec(ctx,
				"INSERT INTO attendance (employee_id, date, status, department) VALUES (?, ?, ?, ?)",
				entry.EmployeeID, tx.Dialect().DateArg(entry.Date.Time), string(entry.Status), entry.Department)
			if err != nil {
				return Ack{}, writeError("add", entry, err, msgAddConflict)
			}
			return Ack{Message: msgAdded}, nil
		})
	})
}

// Update sets status and department on the row keyed by (employee_id, date).
// It never inserts; a missing row is a not-found error.
func (r *Repository) Update(ctx context.Context, entry Entry) (Ack, error) {
	if err := entry.Validate(); err != nil {
		return Ack{}, err
	}

	return retry.Do(ctx, r.policy, "update attendance", func(ctx context.Context) (Ack, error) {
		return database.WithTx(ctx, r.pool, func(ctx context.Context, tx *database.Tx) (Ack, error) {
			result, err := tx.Exec(ctx, `
				UPDATE attendance
				SET status = ?, department = ?
				WHERE employee_id = ? AND date = ?
			`, string(entry.Status), entry.Department, entry.EmployeeID, tx.Dialect().DateArg(entry.Date.Time))
			if err != nil {
				return Ack{}, writeError("update", entry, err, msgUpdateConflict)
			}

			affected, err := result.RowsAffected()
			if err != nil {
				return Ack{}, writeError("update", entry, err, msgUpdateConflict)
			}
			if affected == 0 {
				log.Warn().
					Int64("employee_id", entry.EmployeeID).
					Str("date", entry.Date.String()).
					Msg("No attendance record found to update")
				return Ack{}, apperror.New(apperror.KindNotFound, msgNotFound)
			}

			return Ack{Message: msgUpdated}, nil
		})
	})
}

// Trends counts records per employee and status. An empty table yields an
// empty, non-nil aggregate. When an employee has records in several
// departments, the counts are summed across them and Department is the
// first of those departments in ascending order.
func (r *Repository) Trends(ctx context.Context) (Trends, error) {
	return retry.Do(ctx, r.policy, "get attendance trends", func(ctx context.Context) (Trends, error) {
		return database.WithTx(ctx, r.pool, func(ctx context.Context, tx *database.Tx) (Trends, error) {
			rows, err := tx.Query(ctx, `
				SELECT employee_id, department, status, COUNT(*)
				FROM attendance
				GROUP BY department, employee_id, status
				ORDER BY department, employee_id, status
			`)
			if err != nil {
				return nil, readError("get attendance trends", err)
			}
			defer rows.Close()

			trends := make(Trends)
			for rows.Next() {
				var (
					employeeID int64
					department string
					status     string
					count      int64
				)
				if err := rows.Scan(&employeeID, &department, &status, &count); err != nil {
					return nil, readError("scan attendance trend", err)
				}
				trends.add(employeeID, department, Status(status), count)
			}
			if err := rows.Err(); err != nil {
				return nil, readError("iterate attendance trends", err)
			}

			return trends, nil
		})
	})
}

// ByEmployee returns the employee's records, most recent date first.
// Ties on date fall back to descending id. No records is not an error.
func (r *Repository) ByEmployee(ctx context.Context, employeeID int64) ([]Record, error) {
	return retry.Do(ctx, r.policy, "get employee attendance", func(ctx context.Context) ([]Record, error) {
		return database.WithTx(ctx, r.pool, func(ctx context.Context, tx *database.Tx) ([]Record, error) {
			rows, err := tx.Query(ctx, `
				SELECT id, employee_id, date, status, department
				FROM attendance
				WHERE employee_id = ?
				ORDER BY date DESC, id DESC
			`, employeeID)
			if err != nil {
				return nil, readError("get employee attendance", err)
			}
			defer rows.Close()

			records := []Record{}
			for rows.Next() {
				var rec Record
				var status string
				if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.Date, &status, &rec.Department); err != nil {
					return nil, readError("scan employee attendance", err)
				}
				rec.Status = Status(status)
				records = append(records, rec)
			}
			if err := rows.Err(); err != nil {
				return nil, readError("iterate employee attendance", err)
			}

			return records, nil
		})
	})
}

func writeError(op string, entry Entry, err error, conflictMsg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	event := log.Error()
	var tagged error
	switch {
	case database.IsConstraintViolation(err):
		tagged = apperror.Wrap(apperror.KindConflict, conflictMsg, err)
	case database.IsTransient(err):
		event = log.Warn()
		tagged = apperror.Wrap(apperror.KindTransient, msgUnavailable, err)
	default:
		tagged = apperror.Wrap(apperror.KindStorage, fmt.Sprintf("failed to %s attendance", op), err)
	}

	event.
		Err(err).
		Str("operation", op).
		Str("kind", string(apperror.KindOf(tagged))).
		Int64("employee_id", entry.EmployeeID).
		Str("date", entry.Date.String()).
		Msg("Attendance write failed")
	return tagged
}

func readError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if database.IsTransient(err) {
		log.Warn().Err(err).Str("operation", op).Msg("Attendance read failed")
		return apperror.Wrap(apperror.KindTransient, msgUnavailable, err)
	}

	log.Error().Err(err).Str("operation", op).Msg("Attendance read failed")
	return apperror.Wrap(apperror.KindStorage, "failed to "+op, err)
}
