package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cdi-tracker/internal/domain/student"
	infrastructure "cdi-tracker/internal/interfaces/infrastructure"
	interfaces "cdi-tracker/internal/interfaces/service"
	"cdi-tracker/pkg/apperr"
	"cdi-tracker/pkg/logger"
	"cdi-tracker/pkg/validator"
)

const (
	msgStudentNotFound  = "Étudiant non trouvé"
	msgStudentDuplicate = "Un étudiant avec le même nom et prénom existe déjà"

	studentStatsKey = "students:stats"
)

type StudentManagerConfig struct {
	MaxBatchSize int
	StatsTTL     time.Duration
}

// studentManager implements the StudentManager interface
type studentManager struct {
	repo  infrastructure.StudentRepository
	cache infrastructure.CacheService
	cal   *Calendar
	cfg   StudentManagerConfig
}

// NewStudentManager creates a new student manager. cache may be nil.
func NewStudentManager(repo infrastructure.StudentRepository, cache infrastructure.CacheService, cal *Calendar, cfg StudentManagerConfig) interfaces.StudentManager {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1000
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 5 * time.Minute
	}
	return &studentManager{
		repo:  repo,
		cache: cache,
		cal:   cal,
		cfg:   cfg,
	}
}

// Create validates, enforces name uniqueness and persists a student.
func (m *studentManager) Create(ctx context.Context, req *student.CreateStudentRequest) (*student.Student, error) {
	req.Normalize()
	if msgs := validator.Messages(req); len(msgs) > 0 {
		return nil, apperr.Validation(msgs...)
	}

	logger.Info("Creating student: %s %s (%s)", req.Prenom, req.Nom, req.Classe)

	if err := m.ensureUnique(ctx, req.Nom, req.Prenom, 0); err != nil {
		return nil, err
	}

	entity, err := m.repo.Create(ctx, req.Nom, req.Prenom, req.Classe)
	if errors.Is(err, infrastructure.ErrDuplicate) {
		return nil, apperr.Conflict(msgStudentDuplicate)
	}
	if err != nil {
		logger.Error("Failed to create student: %v", err)
		return nil, apperr.Persistence("Erreur lors de la création de l'étudiant", err)
	}
	m.invalidateStats(ctx)

	logger.Info("Student created successfully with ID: %d", entity.ID)
	return student.FromEntity(entity), nil
}

// ensureUnique rejects a (nom, prenom) pair already used by another student.
// Names are compared in memory so case folding covers accented letters.
func (m *studentManager) ensureUnique(ctx context.Context, nom, prenom string, exceptID int64) error {
	existing, err := m.repo.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to list students: %v", err)
		return apperr.Persistence("Erreur lors de la vérification de l'unicité", err)
	}
	for _, e := range existing {
		if e.ID == exceptID {
			continue
		}
		if student.FromEntity(e).SamePerson(nom, prenom) {
			return apperr.Conflict(msgStudentDuplicate)
		}
	}
	return nil
}

// Update applies a partial update. Only the supplied fields are validated.
func (m *studentManager) Update(ctx context.Context, id int64, req *student.UpdateStudentRequest) (*student.Student, error) {
	req.Normalize()
	if msgs := validator.Messages(req); len(msgs) > 0 {
		return nil, apperr.Validation(msgs...)
	}

	logger.Info("Updating student with ID: %d", id)

	current, err := m.repo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get student: %v", err)
		return nil, apperr.Persistence("Erreur lors de la récupération de l'étudiant", err)
	}
	if current == nil {
		return nil, apperr.NotFound(msgStudentNotFound)
	}

	if req.Renames() {
		nom, prenom := current.Nom, current.Prenom
		if req.Nom != nil {
			nom = *req.Nom
		}
		if req.Prenom != nil {
			prenom = *req.Prenom
		}
		if err := m.ensureUnique(ctx, nom, prenom, id); err != nil {
			return nil, err
		}
	}

	updated, err := m.repo.Update(ctx, id, req)
	if errors.Is(err, infrastructure.ErrDuplicate) {
		return nil, apperr.Conflict(msgStudentDuplicate)
	}
	if err != nil {
		logger.Error("Failed to update student: %v", err)
		return nil, apperr.Persistence("Erreur lors de la mise à jour de l'étudiant", err)
	}
	if updated == nil {
		return nil, apperr.NotFound(msgStudentNotFound)
	}
	m.invalidateStats(ctx)

	return student.FromEntity(updated), nil
}

// Delete removes a student. Attendance rows go with it through the store
// cascade; this method does not touch them.
func (m *studentManager) Delete(ctx context.Context, id int64) error {
	logger.Info("Deleting student with ID: %d", id)

	current, err := m.repo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get student: %v", err)
		return apperr.Persistence("Erreur lors de la récupération de l'étudiant", err)
	}
	if current == nil {
		return apperr.NotFound(msgStudentNotFound)
	}

	deleted, err := m.repo.Delete(ctx, id)
	if err != nil {
		logger.Error("Failed to delete student: %v", err)
		return apperr.Persistence("Erreur lors de la suppression de l'étudiant", err)
	}
	if !deleted {
		return apperr.NotFound(msgStudentNotFound)
	}
	m.invalidateStats(ctx)

	return nil
}

func (m *studentManager) FindByID(ctx context.Context, id int64) (*student.Student, error) {
	logger.Debug("Getting student with ID: %d", id)

	entity, err := m.repo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get student: %v", err)
		return nil, apperr.Persistence("Erreur lors de la récupération de l'étudiant", err)
	}
	if entity == nil {
		return nil, apperr.NotFound(msgStudentNotFound)
	}
	return student.FromEntity(entity), nil
}

func (m *studentManager) FindAll(ctx context.Context) ([]*student.Student, error) {
	entities, err := m.repo.FindAll(ctx)
	if err != nil {
		logger.Error("Failed to list students: %v", err)
		return nil, apperr.Persistence("Erreur lors de la récupération des étudiants", err)
	}
	return fromEntities(entities), nil
}

func (m *studentManager) FindByClass(ctx context.Context, classe string) ([]*student.Student, error) {
	entities, err := m.repo.FindByClass(ctx, classe)
	if err != nil {
		logger.Error("Failed to list students of class %s: %v", classe, err)
		return nil, apperr.Persistence("Erreur lors de la récupération des étudiants de la classe", err)
	}
	return fromEntities(entities), nil
}

// GetStudentStats counts students overall and per class. The result is
// cached until the next write.
func (m *studentManager) GetStudentStats(ctx context.Context) (*student.Stats, error) {
	if m.cache != nil {
		if raw, ok, err := m.cache.Get(ctx, studentStatsKey); err != nil {
			logger.Warn("Failed to read student stats from cache: %v", err)
		} else if ok {
			var stats student.Stats
			if err := json.Unmarshal([]byte(raw), &stats); err == nil {
				return &stats, nil
			}
		}
	}

	total, err := m.repo.Count(ctx)
	if err != nil {
		logger.Error("Failed to count students: %v", err)
		return nil, apperr.Persistence("Erreur lors du calcul des statistiques", err)
	}
	byClass, err := m.repo.CountByClass(ctx)
	if err != nil {
		logger.Error("Failed to count students by class: %v", err)
		return nil, apperr.Persistence("Erreur lors du calcul des statistiques", err)
	}
	stats := &student.Stats{Total: total, ByClass: byClass}

	if m.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := m.cache.Set(ctx, studentStatsKey, string(raw), m.cfg.StatsTTL); err != nil {
				logger.Warn("Failed to cache student stats: %v", err)
			}
		}
	}
	return stats, nil
}

func (m *studentManager) invalidateStats(ctx context.Context) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Delete(ctx, studentStatsKey); err != nil {
		logger.Warn("Failed to invalidate student stats: %v", err)
	}
}

// CreateBatch creates each item in turn. A failing item is reported and
// the batch goes on; the batch fails only when nothing was created.
func (m *studentManager) CreateBatch(ctx context.Context, reqs []*student.CreateStudentRequest) (*interfaces.BatchResult[*student.Student], error) {
	if len(reqs) == 0 {
		return nil, apperr.Validation("Aucun étudiant à créer")
	}
	if len(reqs) > m.cfg.MaxBatchSize {
		return nil, apperr.Validation(fmt.Sprintf("Un lot ne peut pas dépasser %d étudiants", m.cfg.MaxBatchSize))
	}

	logger.Info("Creating batch of %d students", len(reqs))

	result := &interfaces.BatchResult[*student.Student]{
		Created: []*student.Student{},
		Errors:  []string{},
	}
	for _, req := range reqs {
		if req == nil {
			req = &student.CreateStudentRequest{}
		}
		created, err := m.Create(ctx, req)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Étudiant %s %s: %s", req.Prenom, req.Nom, apperr.As(err).Message()))
			continue
		}
		result.Created = append(result.Created, created)
	}

	logger.Info("Student batch done: %d created, %d failed", len(result.Created), len(result.Errors))
	if len(result.Created) == 0 {
		return result, apperr.Validation(result.Errors...)
	}
	return result, nil
}

// FindWithoutFrequentationAtDate lists students with no attendance on the
// calendar day of day.
func (m *studentManager) FindWithoutFrequentationAtDate(ctx context.Context, day time.Time) ([]*student.Student, error) {
	start, end := m.cal.Day(day)
	entities, err := m.repo.FindWithoutFrequentationBetween(ctx, start, end)
	if err != nil {
		logger.Error("Failed to list students without attendance: %v", err)
		return nil, apperr.Persistence("Erreur lors de la récupération des étudiants", err)
	}
	return fromEntities(entities), nil
}

func (m *studentManager) Validate(req *student.CreateStudentRequest) validator.Result {
	req.Normalize()
	return validator.Check(req)
}

func (m *studentManager) ToResponseDto(s *student.Student) student.StudentResponse {
	return student.StudentResponse{
		ID:       s.ID,
		Nom:      s.Nom,
		Prenom:   s.Prenom,
		Classe:   s.Classe,
		FullName: s.FullName,
	}
}

func (m *studentManager) ToResponseDtos(students []*student.Student) []student.StudentResponse {
	out := make([]student.StudentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, m.ToResponseDto(s))
	}
	return out
}

func fromEntities(entities []*student.Entity) []*student.Student {
	out := make([]*student.Student, 0, len(entities))
	for _, e := range entities {
		out = append(out, student.FromEntity(e))
	}
	return out
}
