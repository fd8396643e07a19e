package service

import (
	"context"
	"fmt"
	"time"

	"cdi-tracker/internal/domain/frequentation"
	infrastructure "cdi-tracker/internal/interfaces/infrastructure"
	interfaces "cdi-tracker/internal/interfaces/service"
	"cdi-tracker/pkg/apperr"
	"cdi-tracker/pkg/logger"
	"cdi-tracker/pkg/timestamp"
	"cdi-tracker/pkg/validator"
)

const (
	msgFrequentationNotFound = "Fréquentation non trouvée"
	msgFutureStartsAt        = "La date et heure de fréquentation ne peuvent pas être dans le futur"
	msgInvalidStartsAt       = "La date et heure de début ne sont pas valides"
)

var (
	// Open bounds for statistics over the whole history.
	minStatsTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxStatsTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

type frequentationManager struct {
	repo     infrastructure.FrequentationRepository
	students infrastructure.StudentRepository
	cal      *Calendar
	now      func() time.Time
}

func NewFrequentationManager(repo infrastructure.FrequentationRepository, students infrastructure.StudentRepository, cal *Calendar) interfaces.FrequentationManager {
	return &frequentationManager{
		repo:     repo,
		students: students,
		cal:      cal,
		now:      time.Now,
	}
}

// parseStartsAt reads a validated startsAt and refuses future instants.
func (m *frequentationManager) parseStartsAt(s string) (time.Time, error) {
	startsAt, err := m.cal.Parse(s)
	if err != nil {
		return time.Time{}, apperr.Validation(msgInvalidStartsAt)
	}
	if startsAt.After(m.now()) {
		return time.Time{}, apperr.Validation(msgFutureStartsAt)
	}
	return startsAt, nil
}

func (m *frequentationManager) ensureStudent(ctx context.Context, id int64) error {
	s, err := m.students.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get student: %v", err)
		return apperr.Persistence("Erreur lors de la vérification de l'étudiant", err)
	}
	if s == nil {
		return apperr.NotFound(msgStudentNotFound)
	}
	return nil
}

func (m *frequentationManager) reload(ctx context.Context, id int64) (*frequentation.Frequentation, error) {
	row, err := m.repo.FindByIDWithStudent(ctx, id)
	if err != nil {
		logger.Error("Failed to get frequentation: %v", err)
		return nil, apperr.Persistence("Erreur lors de la récupération de la fréquentation", err)
	}
	if row == nil {
		return nil, apperr.NotFound(msgFrequentationNotFound)
	}
	return frequentation.FromEntityWithStudent(row), nil
}

// Create records one attendance row and returns it with its student.
func (m *frequentationManager) Create(ctx context.Context, req *frequentation.CreateFrequentationRequest) (*frequentation.Frequentation, error) {
	req.Normalize()
	if msgs := validator.Messages(req); len(msgs) > 0 {
		return nil, apperr.Validation(msgs...)
	}
	startsAt, err := m.parseStartsAt(req.StartsAt)
	if err != nil {
		return nil, err
	}
	if err := m.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	activity := frequentation.NormalizeActivity(req.Activity)
	logger.Info("Creating frequentation for student %d: %s at %s", req.StudentID, activity, timestamp.Format(startsAt))

	entity, err := m.repo.Create(ctx, frequentation.NewRow{
		StartsAt:  timestamp.Format(startsAt),
		Activity:  string(activity),
		StudentID: req.StudentID,
	})
	if err != nil {
		logger.Error("Failed to create frequentation: %v", err)
		return nil, apperr.Persistence("Erreur lors de la création de la fréquentation", err)
	}

	return m.reload(ctx, entity.ID)
}

// Update applies a partial update. Omitted fields are neither validated nor
// written.
func (m *frequentationManager) Update(ctx context.Context, id int64, req *frequentation.UpdateFrequentationRequest) (*frequentation.Frequentation, error) {
	req.Normalize()
	if msgs := validator.Messages(req); len(msgs) > 0 {
		return nil, apperr.Validation(msgs...)
	}

	logger.Info("Updating frequentation with ID: %d", id)

	current, err := m.repo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get frequentation: %v", err)
		return nil, apperr.Persistence("Erreur lors de la récupération de la fréquentation", err)
	}
	if current == nil {
		return nil, apperr.NotFound(msgFrequentationNotFound)
	}

	patch := &frequentation.Patch{StudentID: req.StudentID}
	if req.StartsAt != nil {
		startsAt, err := m.parseStartsAt(*req.StartsAt)
		if err != nil {
			return nil, err
		}
		patch.StartsAt = &startsAt
	}
	if req.Activity != nil {
		activity := string(frequentation.NormalizeActivity(*req.Activity))
		patch.Activity = &activity
	}
	if req.StudentID != nil && *req.StudentID != current.StudentID {
		if err := m.ensureStudent(ctx, *req.StudentID); err != nil {
			return nil, err
		}
	}

	updated, err := m.repo.Update(ctx, id, patch)
	if err != nil {
		logger.Error("Failed to update frequentation: %v", err)
		return nil, apperr.Persistence("Erreur lors de la mise à jour de la fréquentation", err)
	}
	if updated == nil {
		return nil, apperr.NotFound(msgFrequentationNotFound)
	}

	return m.reload(ctx, id)
}

func (m *frequentationManager) Delete(ctx context.Context, id int64) error {
	logger.Info("Deleting frequentation with ID: %d", id)

	current, err := m.repo.FindByID(ctx, id)
	if err != nil {
		logger.Error("Failed to get frequentation: %v", err)
		return apperr.Persistence("Erreur lors de la récupération de la fréquentation", err)
	}
	if current == nil {
		return apperr.NotFound(msgFrequentationNotFound)
	}

	deleted, err := m.repo.Delete(ctx, id)
	if err != nil {
		logger.Error("Failed to delete frequentation: %v", err)
		return apperr.Persistence("Erreur lors de la suppression de la fréquentation", err)
	}
	if !deleted {
		return apperr.NotFound(msgFrequentationNotFound)
	}
	return nil
}

// DeleteMany removes the listed rows and returns how many existed.
func (m *frequentationManager) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("Aucune fréquentation à supprimer")
	}

	logger.Info("Deleting %d frequentations", len(ids))

	n, err := m.repo.DeleteMany(ctx, ids)
	if err != nil {
		logger.Error("Failed to delete frequentations: %v", err)
		return 0, apperr.Persistence("Erreur lors de la suppression des fréquentations", err)
	}
	return n, nil
}

func (m *frequentationManager) DeleteByStudentID(ctx context.Context, studentID int64) (int, error) {
	logger.Info("Deleting frequentations of student %d", studentID)

	n, err := m.repo.DeleteByStudentID(ctx, studentID)
	if err != nil {
		logger.Error("Failed to delete frequentations of student %d: %v", studentID, err)
		return 0, apperr.Persistence("Erreur lors de la suppression des fréquentations de l'étudiant", err)
	}
	return n, nil
}

// CreateBatch creates each item in turn; see studentManager.CreateBatch.
func (m *frequentationManager) CreateBatch(ctx context.Context, reqs []*frequentation.CreateFrequentationRequest) (*interfaces.BatchResult[*frequentation.Frequentation], error) {
	if len(reqs) == 0 {
		return nil, apperr.Validation("Aucune fréquentation à créer")
	}

	logger.Info("Creating batch of %d frequentations", len(reqs))

	result := &interfaces.BatchResult[*frequentation.Frequentation]{
		Created: []*frequentation.Frequentation{},
		Errors:  []string{},
	}
	for _, req := range reqs {
		if req == nil {
			req = &frequentation.CreateFrequentationRequest{}
		}
		created, err := m.Create(ctx, req)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Fréquentation %s (%s): %s", req.Activity, req.StartsAt, apperr.As(err).Message()))
			continue
		}
		result.Created = append(result.Created, created)
	}

	logger.Info("Frequentation batch done: %d created, %d failed", len(result.Created), len(result.Errors))
	if len(result.Created) == 0 {
		return result, apperr.Validation(result.Errors...)
	}
	return result, nil
}

// RecordPresence stores one row per student at the same moment and activity.
// All rows are written or none.
func (m *frequentationManager) RecordPresence(ctx context.Context, req *frequentation.RecordPresenceRequest) (int, error) {
	req.Normalize()
	if msgs := validator.Messages(req); len(msgs) > 0 {
		return 0, apperr.Validation(msgs...)
	}
	startsAt, err := m.parseStartsAt(req.StartsAt)
	if err != nil {
		return 0, err
	}

	seen := make(map[int64]bool, len(req.StudentIDs))
	rows := make([]frequentation.NewRow, 0, len(req.StudentIDs))
	activity := string(frequentation.NormalizeActivity(req.Activity))
	for _, id := range req.StudentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		s, err := m.students.FindByID(ctx, id)
		if err != nil {
			logger.Error("Failed to get student: %v", err)
			return 0, apperr.Persistence("Erreur lors de la vérification de l'étudiant", err)
		}
		if s == nil {
			return 0, apperr.NotFound(fmt.Sprintf("%s: %d", msgStudentNotFound, id))
		}
		rows = append(rows, frequentation.NewRow{
			StartsAt:  timestamp.Format(startsAt),
			Activity:  activity,
			StudentID: id,
		})
	}

	logger.Info("Recording presence of %d students: %s at %s", len(rows), activity, timestamp.Format(startsAt))

	n, err := m.repo.CreateMany(ctx, rows)
	if err != nil {
		logger.Error("Failed to record presence: %v", err)
		return 0, apperr.Persistence("Erreur lors de l'enregistrement des présences", err)
	}
	return n, nil
}

func (m *frequentationManager) FindByID(ctx context.Context, id int64) (*frequentation.Frequentation, error) {
	logger.Debug("Getting frequentation with ID: %d", id)
	return m.reload(ctx, id)
}

func (m *frequentationManager) FindAll(ctx context.Context) ([]*frequentation.Frequentation, error) {
	rows, err := m.repo.FindAllWithStudent(ctx)
	if err != nil {
		logger.Error("Failed to list frequentations: %v", err)
		return nil, apperr.Persistence("Erreur lors de la récupération des fréquentations", err)
	}
	return fromJoined(rows), nil
}

func (m *frequentationManager) FindByStudentID(ctx context.Context, studentID int64) ([]*frequentation.Frequentation, error) {
	rows, err := m.repo.FindByStudentID(ctx, studentID)
	if err != nil {
		logger.Error("Failed to list frequentations of student %d: %v", studentID, err)
		return nil, apperr.Persistence("Erreur lors de la récupération des fréquentations de l'étudiant", err)
	}
	return fromJoined(rows), nil
}

// FindByDateRange returns rows with start <= startsAt <= end, newest first.
func (m *frequentationManager) FindByDateRange(ctx context.Context, start, end time.Time) ([]*frequentation.Frequentation, error) {
	rows, err := m.repo.FindByDateRange(ctx, start, end)
	if err != nil {
		logger.Error("Failed to list frequentations by date range: %v", err)
		return nil, apperr.Persistence("Erreur lors de la récupération des fréquentations", err)
	}
	return fromJoined(rows), nil
}

// FindByDate returns the rows of the calendar day containing day.
func (m *frequentationManager) FindByDate(ctx context.Context, day time.Time) ([]*frequentation.Frequentation, error) {
	start, end := m.cal.Day(day)
	return m.FindByDateRange(ctx, start, end)
}

// GetStats summarizes [start, end]. Zero bounds leave that side open.
func (m *frequentationManager) GetStats(ctx context.Context, start, end time.Time) (*frequentation.Stats, error) {
	if start.IsZero() {
		start = minStatsTime
	}
	if end.IsZero() {
		end = maxStatsTime
	}

	byActivity, err := m.repo.CountByActivity(ctx, start, end)
	if err != nil {
		logger.Error("Failed to count frequentations by activity: %v", err)
		return nil, apperr.Persistence("Erreur lors du calcul des statistiques", err)
	}
	byStudent, err := m.repo.CountByStudent(ctx, start, end)
	if err != nil {
		logger.Error("Failed to count frequentations by student: %v", err)
		return nil, apperr.Persistence("Erreur lors du calcul des statistiques", err)
	}
	earliest, latest, err := m.repo.Bounds(ctx, start, end)
	if err != nil {
		logger.Error("Failed to read frequentation bounds: %v", err)
		return nil, apperr.Persistence("Erreur lors du calcul des statistiques", err)
	}

	stats := &frequentation.Stats{
		ByActivity: byActivity,
		ByStudent:  byStudent,
		Earliest:   earliest,
		Latest:     latest,
	}
	for _, n := range byActivity {
		stats.Total += n
	}
	return stats, nil
}

// Validate checks a create payload without touching the store. The future
// check is included since it needs no store access.
func (m *frequentationManager) Validate(req *frequentation.CreateFrequentationRequest) validator.Result {
	req.Normalize()
	result := validator.Check(req)
	if result.IsValid {
		if _, err := m.parseStartsAt(req.StartsAt); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, apperr.As(err).Messages...)
		}
	}
	return result
}

func (m *frequentationManager) ToResponseDto(f *frequentation.Frequentation) frequentation.FrequentationResponse {
	return frequentation.ToResponse(f)
}

func (m *frequentationManager) ToResponseDtos(list []*frequentation.Frequentation) []frequentation.FrequentationResponse {
	out := make([]frequentation.FrequentationResponse, 0, len(list))
	for _, f := range list {
		out = append(out, frequentation.ToResponse(f))
	}
	return out
}

func (m *frequentationManager) FromResponseDto(r frequentation.FrequentationResponse) (*frequentation.Frequentation, error) {
	f, err := frequentation.FromResponse(r)
	if err != nil {
		return nil, apperr.Validation(msgInvalidStartsAt)
	}
	return f, nil
}

func fromJoined(rows []*frequentation.EntityWithStudent) []*frequentation.Frequentation {
	out := make([]*frequentation.Frequentation, 0, len(rows))
	for _, r := range rows {
		out = append(out, frequentation.FromEntityWithStudent(r))
	}
	return out
}
