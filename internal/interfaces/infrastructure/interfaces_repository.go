package interfaces

import (
	"context"
	"errors"
	"time"

	"cdi-tracker/internal/domain/frequentation"
	"cdi-tracker/internal/domain/student"
)

// ErrDuplicate is returned when a write collides with the student name index.
var ErrDuplicate = errors.New("student name already taken")

type StudentRepository interface {
	Create(ctx context.Context, nom, prenom, classe string) (*student.Entity, error)
	FindAll(ctx context.Context) ([]*student.Entity, error)
	FindByID(ctx context.Context, id int64) (*student.Entity, error)
	FindByClass(ctx context.Context, classe string) ([]*student.Entity, error)
	Update(ctx context.Context, id int64, patch *student.UpdateStudentRequest) (*student.Entity, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
	CountByClass(ctx context.Context) (map[string]int, error)
	FindWithoutFrequentationBetween(ctx context.Context, start, end time.Time) ([]*student.Entity, error)
}

type FrequentationRepository interface {
	Create(ctx context.Context, row frequentation.NewRow) (*frequentation.Entity, error)
	CreateMany(ctx context.Context, rows []frequentation.NewRow) (int, error)
	FindAll(ctx context.Context) ([]*frequentation.Entity, error)
	FindByID(ctx context.Context, id int64) (*frequentation.Entity, error)
	FindByIDWithStudent(ctx context.Context, id int64) (*frequentation.EntityWithStudent, error)
	FindByStudentID(ctx context.Context, studentID int64) ([]*frequentation.EntityWithStudent, error)
	FindByDateRange(ctx context.Context, start, end time.Time) ([]*frequentation.EntityWithStudent, error)
	FindAllWithStudent(ctx context.Context) ([]*frequentation.EntityWithStudent, error)
	Update(ctx context.Context, id int64, patch *frequentation.Patch) (*frequentation.Entity, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteMany(ctx context.Context, ids []int64) (int, error)
	DeleteByStudentID(ctx context.Context, studentID int64) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	CountByActivity(ctx context.Context, start, end time.Time) (map[string]int, error)
	CountByStudent(ctx context.Context, start, end time.Time) (map[int64]int, error)
	Bounds(ctx context.Context, start, end time.Time) (earliest, latest *time.Time, err error)
}
