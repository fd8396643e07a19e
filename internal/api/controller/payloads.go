package controller

import (
	"encoding/json"

	"cdi-tracker/internal/api/ipc"
	"cdi-tracker/internal/domain/frequentation"
	"cdi-tracker/internal/domain/student"
	"cdi-tracker/pkg/apperr"
)

type idPayload struct {
	ID int64 `json:"id"`
}

// idsPayload accepts either a single id or a list.
type idsPayload struct {
	ID  *int64  `json:"id"`
	IDs []int64 `json:"ids"`
}

func (p idsPayload) all() []int64 {
	if len(p.IDs) > 0 {
		return p.IDs
	}
	if p.ID != nil {
		return []int64{*p.ID}
	}
	return nil
}

type updateStudentPayload struct {
	ID   int64                        `json:"id"`
	Data student.UpdateStudentRequest `json:"data"`
}

type updateFrequentationPayload struct {
	ID   int64                                    `json:"id"`
	Data frequentation.UpdateFrequentationRequest `json:"data"`
}

type classePayload struct {
	Classe string `json:"classe"`
}

type studentIDPayload struct {
	StudentID int64 `json:"studentId"`
}

type datePayload struct {
	Date string `json:"date"`
}

type rangePayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type countData struct {
	Count int `json:"count"`
}

type batchData struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}

// bindID reads {"id": n}; a bare number is accepted too.
func bindID(payload json.RawMessage) (int64, error) {
	var id int64
	if err := json.Unmarshal(payload, &id); err != nil {
		var p idPayload
		if err := ipc.Bind(payload, &p); err != nil {
			return 0, err
		}
		id = p.ID
	}
	if id <= 0 {
		return 0, apperr.Validation("Identifiant invalide")
	}
	return id, nil
}
