package service

import (
	"context"
	"time"

	"cdi-tracker/internal/domain/frequentation"
	"cdi-tracker/internal/domain/student"
	"cdi-tracker/pkg/validator"
)

// BatchResult is the outcome of a per-item batch create. Errors holds one
// readable line per rejected item, in input order.
type BatchResult[T any] struct {
	Created []T
	Errors  []string
}

type StudentManager interface {
	Create(ctx context.Context, req *student.CreateStudentRequest) (*student.Student, error)
	Update(ctx context.Context, id int64, req *student.UpdateStudentRequest) (*student.Student, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*student.Student, error)
	FindAll(ctx context.Context) ([]*student.Student, error)
	FindByClass(ctx context.Context, classe string) ([]*student.Student, error)
	GetStudentStats(ctx context.Context) (*student.Stats, error)
	CreateBatch(ctx context.Context, reqs []*student.CreateStudentRequest) (*BatchResult[*student.Student], error)
	FindWithoutFrequentationAtDate(ctx context.Context, day time.Time) ([]*student.Student, error)
	Validate(req *student.CreateStudentRequest) validator.Result

	ToResponseDto(s *student.Student) student.StudentResponse
	ToResponseDtos(students []*student.Student) []student.StudentResponse
}

type FrequentationManager interface {
	Create(ctx context.Context, req *frequentation.CreateFrequentationRequest) (*frequentation.Frequentation, error)
	Update(ctx context.Context, id int64, req *frequentation.UpdateFrequentationRequest) (*frequentation.Frequentation, error)
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int, error)
	DeleteByStudentID(ctx context.Context, studentID int64) (int, error)
	CreateBatch(ctx context.Context, reqs []*frequentation.CreateFrequentationRequest) (*BatchResult[*frequentation.Frequentation], error)
	RecordPresence(ctx context.Context, req *frequentation.RecordPresenceRequest) (int, error)
	FindByID(ctx context.Context, id int64) (*frequentation.Frequentation, error)
	FindAll(ctx context.Context) ([]*frequentation.Frequentation, error)
	FindByStudentID(ctx context.Context, studentID int64) ([]*frequentation.Frequentation, error)
	FindByDateRange(ctx context.Context, start, end time.Time) ([]*frequentation.Frequentation, error)
	FindByDate(ctx context.Context, day time.Time) ([]*frequentation.Frequentation, error)
	GetStats(ctx context.Context, start, end time.Time) (*frequentation.Stats, error)
	Validate(req *frequentation.CreateFrequentationRequest) validator.Result

	ToResponseDto(f *frequentation.Frequentation) frequentation.FrequentationResponse
	ToResponseDtos(list []*frequentation.Frequentation) []frequentation.FrequentationResponse
	FromResponseDto(r frequentation.FrequentationResponse) (*frequentation.Frequentation, error)
}

// RetentionService removes attendance rows past the retention period.
type RetentionService interface {
	Cleanup(ctx context.Context) (int, error)
	Start(ctx context.Context, interval time.Duration)
}
