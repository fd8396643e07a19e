package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"cdi-tracker/internal/api/ipc"
	"cdi-tracker/internal/domain/student"
	interfaces "cdi-tracker/internal/interfaces/service"
	"cdi-tracker/internal/service"
	"cdi-tracker/pkg/apperr"
	"cdi-tracker/pkg/logger"
)

// ForeignKeyChecker reports whether the store cascades student deletion.
type ForeignKeyChecker func(ctx context.Context) (bool, error)

type StudentController struct {
	students       interfaces.StudentManager
	frequentations interfaces.FrequentationManager
	cal            *service.Calendar
	foreignKeys    ForeignKeyChecker
}

// NewStudentController wires the student channels. foreignKeys may be nil,
// in which case the store is trusted to cascade.
func NewStudentController(students interfaces.StudentManager, frequentations interfaces.FrequentationManager, cal *service.Calendar, foreignKeys ForeignKeyChecker) *StudentController {
	return &StudentController{
		students:       students,
		frequentations: frequentations,
		cal:            cal,
		foreignKeys:    foreignKeys,
	}
}

func (c *StudentController) Register(bus *ipc.Bus) {
	bus.Handle("student:create", c.create)
	bus.Handle("student:getAll", c.getAll)
	bus.Handle("student:getById", c.getByID)
	bus.Handle("student:update", c.update)
	bus.Handle("student:delete", c.delete)
	bus.Handle("student:getByClass", c.getByClass)
	bus.Handle("student:getStats", c.getStats)
	bus.Handle("student:createBatch", c.createBatch)
	bus.Handle("student:validate", c.validate)
	bus.Handle("student:getWithoutFrequentationAt", c.getWithoutFrequentationAt)
}

func (c *StudentController) create(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req student.CreateStudentRequest
	if err := ipc.Bind(payload, &req); err != nil {
		return nil, err
	}
	created, err := c.students.Create(ctx, &req)
	if err != nil {
		return nil, err
	}
	return c.students.ToResponseDto(created), nil
}

func (c *StudentController) getAll(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	list, err := c.students.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ipc.NewList(c.students.ToResponseDtos(list)), nil
}

func (c *StudentController) getByID(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	id, err := bindID(payload)
	if err != nil {
		return nil, err
	}
	s, err := c.students.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.students.ToResponseDto(s), nil
}

func (c *StudentController) update(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p updateStudentPayload
	if err := ipc.Bind(payload, &p); err != nil {
		return nil, err
	}
	if p.ID <= 0 {
		return nil, apperr.Validation("Identifiant invalide")
	}
	updated, err := c.students.Update(ctx, p.ID, &p.Data)
	if err != nil {
		return nil, err
	}
	return c.students.ToResponseDto(updated), nil
}

// delete removes every listed student. The call succeeds only when all of
// them were deleted; the count is reported either way.
func (c *StudentController) delete(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p idsPayload
	if err := ipc.Bind(payload, &p); err != nil {
		return nil, err
	}
	ids := p.all()
	if len(ids) == 0 {
		return nil, apperr.Validation("Aucun étudiant à supprimer")
	}

	cascades := true
	if c.foreignKeys != nil {
		on, err := c.foreignKeys(ctx)
		if err != nil {
			logger.Warn("Cannot read foreign key state, purging attendance explicitly: %v", err)
		}
		cascades = err == nil && on
	}

	count := 0
	for _, id := range ids {
		if !cascades {
			if _, err := c.students.FindByID(ctx, id); err == nil {
				if _, err := c.frequentations.DeleteByStudentID(ctx, id); err != nil {
					logger.Error("Failed to purge attendance of student %d: %v", id, err)
					continue
				}
			}
		}
		if err := c.students.Delete(ctx, id); err != nil {
			logger.Warn("Failed to delete student %d: %v", id, err)
			continue
		}
		count++
	}

	if count < len(ids) {
		return ipc.Partial{
			Data:   countData{Count: count},
			Errors: []string{fmt.Sprintf("Échec de la suppression de %d étudiant(s)", len(ids)-count)},
		}, nil
	}
	return countData{Count: count}, nil
}

func (c *StudentController) getByClass(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p classePayload
	if err := json.Unmarshal(payload, &p.Classe); err != nil {
		if err := ipc.Bind(payload, &p); err != nil {
			return nil, err
		}
	}
	if p.Classe == "" {
		return nil, apperr.Validation("La classe est obligatoire")
	}
	list, err := c.students.FindByClass(ctx, p.Classe)
	if err != nil {
		return nil, err
	}
	return ipc.NewList(c.students.ToResponseDtos(list)), nil
}

func (c *StudentController) getStats(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	return c.students.GetStudentStats(ctx)
}

func (c *StudentController) createBatch(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var reqs []*student.CreateStudentRequest
	if err := ipc.Bind(payload, &reqs); err != nil {
		return nil, err
	}
	result, err := c.students.CreateBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	return batchData{Created: len(result.Created), Errors: result.Errors}, nil
}

func (c *StudentController) validate(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req student.CreateStudentRequest
	if err := ipc.Bind(payload, &req); err != nil {
		return nil, err
	}
	return c.students.Validate(&req), nil
}

func (c *StudentController) getWithoutFrequentationAt(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p datePayload
	if err := json.Unmarshal(payload, &p.Date); err != nil {
		if err := ipc.Bind(payload, &p); err != nil {
			return nil, err
		}
	}
	day, err := c.cal.ParseDay(p.Date)
	if err != nil {
		return nil, err
	}
	list, err := c.students.FindWithoutFrequentationAtDate(ctx, day)
	if err != nil {
		return nil, err
	}
	return ipc.NewList(c.students.ToResponseDtos(list)), nil
}
