package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cdi-tracker/internal/domain/student"
	interfaces "cdi-tracker/internal/interfaces/infrastructure"
	"cdi-tracker/pkg/timestamp"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

type StudentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) interfaces.StudentRepository {
	return &StudentRepository{
		db: db,
	}
}

func (r *StudentRepository) Create(ctx context.Context, nom, prenom, classe string) (*student.Entity, error) {
	res, err := r.db.ExecContext(ctx, insertStudent, nom, prenom, classe)
	if err != nil {
		return nil, uniqueViolation(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *StudentRepository) FindAll(ctx context.Context) ([]*student.Entity, error) {
	students := []*student.Entity{}
	if err := r.db.SelectContext(ctx, &students, selectAllStudents); err != nil {
		return nil, err
	}
	return students, nil
}

// FindByID returns (nil, nil) when no row matches.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*student.Entity, error) {
	var s student.Entity
	err := r.db.GetContext(ctx, &s, selectStudentByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *StudentRepository) FindByClass(ctx context.Context, classe string) ([]*student.Entity, error) {
	students := []*student.Entity{}
	if err := r.db.SelectContext(ctx, &students, selectStudentsByClass, classe); err != nil {
		return nil, err
	}
	return students, nil
}

// Update writes the present fields only. An empty patch returns the current
// row; a missing row gives (nil, nil).
func (r *StudentRepository) Update(ctx context.Context, id int64, patch *student.UpdateStudentRequest) (*student.Entity, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}

	var sets []string
	var args []interface{}
	if patch.Nom != nil {
		sets = append(sets, "nom = ?")
		args = append(args, *patch.Nom)
	}
	if patch.Prenom != nil {
		sets = append(sets, "prenom = ?")
		args = append(args, *patch.Prenom)
	}
	if patch.Classe != nil {
		sets = append(sets, "classe = ?")
		args = append(args, *patch.Classe)
	}
	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id)
	query := "UPDATE students SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, uniqueViolation(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *StudentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteStudent, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, countStudents); err != nil {
		return 0, err
	}
	return count, nil
}

type classCount struct {
	Classe string `db:"classe"`
	Count  int    `db:"count"`
}

func (r *StudentRepository) CountByClass(ctx context.Context) (map[string]int, error) {
	var rows []classCount
	if err := r.db.SelectContext(ctx, &rows, countStudentsByClass); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Classe] = row.Count
	}
	return counts, nil
}

// FindWithoutFrequentationBetween lists students with no attendance row in
// [start, end].
func (r *StudentRepository) FindWithoutFrequentationBetween(ctx context.Context, start, end time.Time) ([]*student.Entity, error) {
	students := []*student.Entity{}
	err := r.db.SelectContext(ctx, &students, selectStudentsWithoutFrequentationBetween,
		timestamp.Format(start), timestamp.Format(end))
	if err != nil {
		return nil, err
	}
	return students, nil
}

func uniqueViolation(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", interfaces.ErrDuplicate, err)
	}
	return err
}
