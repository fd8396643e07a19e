package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cdi-tracker/internal/domain/frequentation"
	interfaces "cdi-tracker/internal/interfaces/infrastructure"
	"cdi-tracker/pkg/timestamp"

	"github.com/jmoiron/sqlx"
)

type FrequentationRepository struct {
	db *sqlx.DB
}

func NewFrequentationRepository(db *sqlx.DB) interfaces.FrequentationRepository {
	return &FrequentationRepository{
		db: db,
	}
}

func (r *FrequentationRepository) Create(ctx context.Context, row frequentation.NewRow) (*frequentation.Entity, error) {
	res, err := r.db.ExecContext(ctx, insertFrequentation, row.StartsAt, row.Activity, row.StudentID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// CreateMany inserts every row in one transaction, several rows per
// statement. Either all rows are stored or none.
func (r *FrequentationRepository) CreateMany(ctx context.Context, rows []frequentation.NewRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for start := 0; start < len(rows); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		res, err := tx.NamedExecContext(ctx, insertFrequentationNamed, rows[start:end])
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

func (r *FrequentationRepository) FindAll(ctx context.Context) ([]*frequentation.Entity, error) {
	rows := []*frequentation.Entity{}
	if err := r.db.SelectContext(ctx, &rows, selectAllFrequentations); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID returns (nil, nil) when no row matches.
func (r *FrequentationRepository) FindByID(ctx context.Context, id int64) (*frequentation.Entity, error) {
	var f frequentation.Entity
	err := r.db.GetContext(ctx, &f, selectFrequentationByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *FrequentationRepository) FindByIDWithStudent(ctx context.Context, id int64) (*frequentation.EntityWithStudent, error) {
	var f frequentation.EntityWithStudent
	err := r.db.GetContext(ctx, &f, selectFrequentationByIDWithStudent, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *FrequentationRepository) FindByStudentID(ctx context.Context, studentID int64) ([]*frequentation.EntityWithStudent, error) {
	rows := []*frequentation.EntityWithStudent{}
	if err := r.db.SelectContext(ctx, &rows, selectFrequentationsByStudentID, studentID); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByDateRange returns rows with start <= starts_at <= end, newest first.
func (r *FrequentationRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]*frequentation.EntityWithStudent, error) {
	rows := []*frequentation.EntityWithStudent{}
	err := r.db.SelectContext(ctx, &rows, selectFrequentationsByDateRange,
		timestamp.Format(start), timestamp.Format(end))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *FrequentationRepository) FindAllWithStudent(ctx context.Context) ([]*frequentation.EntityWithStudent, error) {
	rows := []*frequentation.EntityWithStudent{}
	if err := r.db.SelectContext(ctx, &rows, selectAllFrequentationsWithStudent); err != nil {
		return nil, err
	}
	return rows, nil
}

// Update writes the present fields only and bumps updated_at. An empty
// patch returns the current row; a missing row gives (nil, nil).
func (r *FrequentationRepository) Update(ctx context.Context, id int64, patch *frequentation.Patch) (*frequentation.Entity, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}

	var sets []string
	var args []interface{}
	if patch.StartsAt != nil {
		sets = append(sets, "starts_at = ?")
		args = append(args, timestamp.Format(*patch.StartsAt))
	}
	if patch.Activity != nil {
		sets = append(sets, "activity = ?")
		args = append(args, *patch.Activity)
	}
	if patch.StudentID != nil {
		sets = append(sets, "student_id = ?")
		args = append(args, *patch.StudentID)
	}
	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id)
	query := "UPDATE frequentation SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *FrequentationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.exec(ctx, deleteFrequentation, id)
	return n > 0, err
}

func (r *FrequentationRepository) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(deleteFrequentationsByIDs, ids)
	if err != nil {
		return 0, err
	}
	return r.exec(ctx, r.db.Rebind(query), args...)
}

func (r *FrequentationRepository) DeleteByStudentID(ctx context.Context, studentID int64) (int, error) {
	return r.exec(ctx, deleteFrequentationsByStudentID, studentID)
}

// DeleteOlderThan removes rows that started strictly before cutoff.
func (r *FrequentationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return r.exec(ctx, deleteFrequentationsOlderThan, timestamp.Format(cutoff))
}

func (r *FrequentationRepository) exec(ctx context.Context, query string, args ...interface{}) (int, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *FrequentationRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, countFrequentations); err != nil {
		return 0, err
	}
	return count, nil
}

type activityCount struct {
	Activity string `db:"activity"`
	Count    int    `db:"count"`
}

func (r *FrequentationRepository) CountByActivity(ctx context.Context, start, end time.Time) (map[string]int, error) {
	var rows []activityCount
	err := r.db.SelectContext(ctx, &rows, countFrequentationsByActivity,
		timestamp.Format(start), timestamp.Format(end))
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Activity] = row.Count
	}
	return counts, nil
}

type studentCount struct {
	StudentID int64 `db:"student_id"`
	Count     int   `db:"count"`
}

func (r *FrequentationRepository) CountByStudent(ctx context.Context, start, end time.Time) (map[int64]int, error) {
	var rows []studentCount
	err := r.db.SelectContext(ctx, &rows, countFrequentationsByStudent,
		timestamp.Format(start), timestamp.Format(end))
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.StudentID] = row.Count
	}
	return counts, nil
}

type bounds struct {
	Earliest sql.NullString `db:"earliest"`
	Latest   sql.NullString `db:"latest"`
}

// Bounds returns the first and last starts_at within [start, end], nil when
// the range is empty.
func (r *FrequentationRepository) Bounds(ctx context.Context, start, end time.Time) (*time.Time, *time.Time, error) {
	var b bounds
	err := r.db.GetContext(ctx, &b, frequentationBounds, timestamp.Format(start), timestamp.Format(end))
	if err != nil {
		return nil, nil, err
	}
	earliest, err := parseNullTimestamp(b.Earliest)
	if err != nil {
		return nil, nil, err
	}
	latest, err := parseNullTimestamp(b.Latest)
	if err != nil {
		return nil, nil, err
	}
	return earliest, latest, nil
}

func parseNullTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := timestamp.Parse(s.String, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid stored timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
