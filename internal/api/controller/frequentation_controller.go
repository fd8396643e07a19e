package controller

import (
	"context"
	"encoding/json"
	"time"

	"cdi-tracker/internal/api/ipc"
	"cdi-tracker/internal/domain/frequentation"
	interfaces "cdi-tracker/internal/interfaces/service"
	"cdi-tracker/internal/service"
	"cdi-tracker/pkg/apperr"
	"cdi-tracker/pkg/timestamp"
)

type FrequentationController struct {
	frequentations interfaces.FrequentationManager
	cal            *service.Calendar
}

func NewFrequentationController(frequentations interfaces.FrequentationManager, cal *service.Calendar) *FrequentationController {
	return &FrequentationController{
		frequentations: frequentations,
		cal:            cal,
	}
}

func (c *FrequentationController) Register(bus *ipc.Bus) {
	bus.Handle("frequentation:create", c.create)
	bus.Handle("frequentation:getAll", c.getAll)
	bus.Handle("frequentation:getById", c.getByID)
	bus.Handle("frequentation:update", c.update)
	bus.Handle("frequentation:delete", c.delete)
	bus.Handle("frequentation:getByStudentId", c.getByStudentID)
	bus.Handle("frequentation:getByStudent", c.getByStudentID)
	bus.Handle("frequentation:getByDateRange", c.getByDateRange)
	bus.Handle("frequentation:getByDate", c.getByDate)
	bus.Handle("frequentation:createBatch", c.createBatch)
	bus.Handle("frequentation:recordPresence", c.recordPresence)
	bus.Handle("frequentation:validate", c.validate)
	bus.Handle("frequentation:deleteByStudentId", c.deleteByStudentID)
	bus.Handle("frequentation:getStats", c.getStats)
	bus.Handle("frequentation:getActivities", c.getActivities)
}

func (c *FrequentationController) list(items []*frequentation.Frequentation) ipc.List[frequentation.FrequentationResponse] {
	return ipc.NewList(c.frequentations.ToResponseDtos(items))
}

func (c *FrequentationController) create(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req frequentation.CreateFrequentationRequest
	if err := ipc.Bind(payload, &req); err != nil {
		return nil, err
	}
	created, err := c.frequentations.Create(ctx, &req)
	if err != nil {
		return nil, err
	}
	return c.frequentations.ToResponseDto(created), nil
}

func (c *FrequentationController) getAll(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	items, err := c.frequentations.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return c.list(items), nil
}

func (c *FrequentationController) getByID(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	id, err := bindID(payload)
	if err != nil {
		return nil, err
	}
	f, err := c.frequentations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.frequentations.ToResponseDto(f), nil
}

func (c *FrequentationController) update(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p updateFrequentationPayload
	if err := ipc.Bind(payload, &p); err != nil {
		return nil, err
	}
	if p.ID <= 0 {
		return nil, apperr.Validation("Identifiant invalide")
	}
	updated, err := c.frequentations.Update(ctx, p.ID, &p.Data)
	if err != nil {
		return nil, err
	}
	return c.frequentations.ToResponseDto(updated), nil
}

// delete accepts {"id": n} for one row or {"ids": [...]} for several.
func (c *FrequentationController) delete(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p idsPayload
	var bare int64
	if err := json.Unmarshal(payload, &bare); err == nil {
		p.ID = &bare
	} else if err := ipc.Bind(payload, &p); err != nil {
		return nil, err
	}

	if len(p.IDs) == 0 && p.ID != nil {
		if err := c.frequentations.Delete(ctx, *p.ID); err != nil {
			return nil, err
		}
		return countData{Count: 1}, nil
	}

	n, err := c.frequentations.DeleteMany(ctx, p.all())
	if err != nil {
		return nil, err
	}
	return countData{Count: n}, nil
}

func (c *FrequentationController) getByStudentID(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	id, err := bindStudentID(payload)
	if err != nil {
		return nil, err
	}
	items, err := c.frequentations.FindByStudentID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.list(items), nil
}

func (c *FrequentationController) getByDateRange(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p rangePayload
	if err := ipc.Bind(payload, &p); err != nil {
		return nil, err
	}
	start, end, err := c.cal.Range(p.StartDate, p.EndDate)
	if err != nil {
		return nil, err
	}
	items, err := c.frequentations.FindByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return c.list(items), nil
}

func (c *FrequentationController) getByDate(ctx context.Context, payload json.RawMessage) (interface{}, error) {
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
	items, err := c.frequentations.FindByDate(ctx, day)
	if err != nil {
		return nil, err
	}
	return c.list(items), nil
}

func (c *FrequentationController) createBatch(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var reqs []*frequentation.CreateFrequentationRequest
	if err := ipc.Bind(payload, &reqs); err != nil {
		return nil, err
	}
	result, err := c.frequentations.CreateBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}
	return batchData{Created: len(result.Created), Errors: result.Errors}, nil
}

func (c *FrequentationController) recordPresence(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req frequentation.RecordPresenceRequest
	if err := ipc.Bind(payload, &req); err != nil {
		return nil, err
	}
	n, err := c.frequentations.RecordPresence(ctx, &req)
	if err != nil {
		return nil, err
	}
	return struct {
		Created int `json:"created"`
	}{Created: n}, nil
}

func (c *FrequentationController) validate(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req frequentation.CreateFrequentationRequest
	if err := ipc.Bind(payload, &req); err != nil {
		return nil, err
	}
	return c.frequentations.Validate(&req), nil
}

func (c *FrequentationController) deleteByStudentID(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	id, err := bindStudentID(payload)
	if err != nil {
		return nil, err
	}
	n, err := c.frequentations.DeleteByStudentID(ctx, id)
	if err != nil {
		return nil, err
	}
	return struct {
		Deleted int `json:"deleted"`
	}{Deleted: n}, nil
}

// getStats accepts an optional period; a missing bound leaves that side open.
func (c *FrequentationController) getStats(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p rangePayload
	if err := ipc.Bind(payload, &p); err != nil {
		return nil, err
	}

	var start, end time.Time
	var msgs []string
	if p.StartDate != "" {
		t, err := c.cal.Parse(p.StartDate)
		if err != nil {
			msgs = append(msgs, "La date de début n'est pas valide")
		}
		start = t
	}
	if p.EndDate != "" {
		t, err := c.cal.Parse(p.EndDate)
		if err != nil {
			msgs = append(msgs, "La date de fin n'est pas valide")
		} else if timestamp.IsDateOnly(p.EndDate) {
			_, t = c.cal.Day(t)
		}
		end = t
	}
	if len(msgs) > 0 {
		return nil, apperr.Validation(msgs...)
	}
	return c.frequentations.GetStats(ctx, start, end)
}

func (c *FrequentationController) getActivities(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	return ipc.NewList(frequentation.ActivityOptions()), nil
}

func bindStudentID(payload json.RawMessage) (int64, error) {
	var id int64
	if err := json.Unmarshal(payload, &id); err != nil {
		var p studentIDPayload
		if err := ipc.Bind(payload, &p); err != nil {
			return 0, err
		}
		id = p.StudentID
	}
	if id <= 0 {
		return 0, apperr.Validation("L'identifiant de l'étudiant est obligatoire")
	}
	return id, nil
}
