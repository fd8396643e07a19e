package frequentation

import (
	"database/sql"
	"strings"
	"time"

	"cdi-tracker/pkg/timestamp"
	"cdi-tracker/pkg/validator"
)

const MaxActivityLength = 100

func init() {
	validator.RegisterMessages(map[string]string{
		"startsAt.required":   "La date et heure de début sont obligatoires",
		"startsAt.min":        "La date et heure de début sont obligatoires",
		"startsAt.timestamp":  "La date et heure de début ne sont pas valides",
		"activity.required":   "L'activité est obligatoire",
		"activity.min":        "L'activité est obligatoire",
		"activity.max":        "L'activité ne peut pas dépasser 100 caractères",
		"studentId.required":  "L'identifiant de l'étudiant est obligatoire",
		"studentId.gt":        "L'identifiant de l'étudiant est obligatoire",
		"studentIds.required": "Au moins un étudiant doit être sélectionné",
		"studentIds.min":      "Au moins un étudiant doit être sélectionné",
	})
}

// Entity is a row of the frequentation table.
type Entity struct {
	ID        int64     `db:"id"`
	StartsAt  time.Time `db:"starts_at"`
	Activity  string    `db:"activity"`
	StudentID int64     `db:"student_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// EntityWithStudent is a row joined with its student. The student columns
// are NULL when the student row is gone.
type EntityWithStudent struct {
	Entity
	Nom    sql.NullString `db:"nom"`
	Prenom sql.NullString `db:"prenom"`
	Classe sql.NullString `db:"classe"`
}

// NewRow is the insert shape; starts_at is already in the store layout.
type NewRow struct {
	StartsAt  string `db:"starts_at"`
	Activity  string `db:"activity"`
	StudentID int64  `db:"student_id"`
}

// Patch is the partial update handed to the repository.
type Patch struct {
	StartsAt  *time.Time
	Activity  *string
	StudentID *int64
}

func (p *Patch) Empty() bool {
	return p.StartsAt == nil && p.Activity == nil && p.StudentID == nil
}

// Frequentation is the business model. StudentName is "prenom nom".
type Frequentation struct {
	ID           int64
	StartsAt     time.Time
	Activity     string
	StudentID    int64
	StudentName  string
	StudentClass string
}

func FromEntityWithStudent(e *EntityWithStudent) *Frequentation {
	return &Frequentation{
		ID:           e.ID,
		StartsAt:     e.StartsAt,
		Activity:     e.Activity,
		StudentID:    e.StudentID,
		StudentName:  strings.TrimSpace(e.Prenom.String + " " + e.Nom.String),
		StudentClass: e.Classe.String,
	}
}

// CreateFrequentationRequest is the payload of frequentation:create.
type CreateFrequentationRequest struct {
	StartsAt  string `json:"startsAt" validate:"required,timestamp"`
	Activity  string `json:"activity" validate:"required,max=100"`
	StudentID int64  `json:"studentId" validate:"required,gt=0"`
}

func (r *CreateFrequentationRequest) Normalize() {
	r.StartsAt = strings.TrimSpace(r.StartsAt)
	r.Activity = strings.TrimSpace(r.Activity)
}

// UpdateFrequentationRequest is a patch: nil fields are neither validated
// nor written.
type UpdateFrequentationRequest struct {
	StartsAt  *string `json:"startsAt,omitempty" validate:"omitnil,min=1,timestamp"`
	Activity  *string `json:"activity,omitempty" validate:"omitnil,min=1,max=100"`
	StudentID *int64  `json:"studentId,omitempty" validate:"omitnil,gt=0"`
}

func (r *UpdateFrequentationRequest) Normalize() {
	if r.StartsAt != nil {
		*r.StartsAt = strings.TrimSpace(*r.StartsAt)
	}
	if r.Activity != nil {
		*r.Activity = strings.TrimSpace(*r.Activity)
	}
}

// RecordPresenceRequest creates one row per student at the same moment.
type RecordPresenceRequest struct {
	StudentIDs []int64 `json:"studentIds" validate:"required,min=1,dive,gt=0"`
	StartsAt   string  `json:"startsAt" validate:"required,timestamp"`
	Activity   string  `json:"activity" validate:"required,max=100"`
}

func (r *RecordPresenceRequest) Normalize() {
	r.StartsAt = strings.TrimSpace(r.StartsAt)
	r.Activity = strings.TrimSpace(r.Activity)
}

// StudentRef is the student block embedded in a response.
type StudentRef struct {
	ID     int64  `json:"id"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
	Classe string `json:"classe"`
}

// FrequentationResponse is what crosses the boundary.
type FrequentationResponse struct {
	ID       int64      `json:"id"`
	StartsAt string     `json:"startsAt"`
	Activity string     `json:"activity"`
	Student  StudentRef `json:"student"`
}

// SplitStudentName reads "prenom nom" as its first two words. Any further
// word is dropped, so compound names do not survive.
func SplitStudentName(name string) (prenom, nom string) {
	parts := strings.Split(strings.TrimSpace(name), " ")
	prenom = parts[0]
	if len(parts) > 1 {
		nom = parts[1]
	}
	return prenom, nom
}

// ToResponse converts the model into its boundary shape.
func ToResponse(m *Frequentation) FrequentationResponse {
	prenom, nom := SplitStudentName(m.StudentName)
	return FrequentationResponse{
		ID:       m.ID,
		StartsAt: timestamp.Format(m.StartsAt),
		Activity: m.Activity,
		Student: StudentRef{
			ID:     m.StudentID,
			Nom:    nom,
			Prenom: prenom,
			Classe: m.StudentClass,
		},
	}
}

// FromResponse rebuilds a model from its boundary shape.
func FromResponse(r FrequentationResponse) (*Frequentation, error) {
	startsAt, err := timestamp.Parse(r.StartsAt, time.UTC)
	if err != nil {
		return nil, err
	}
	return &Frequentation{
		ID:           r.ID,
		StartsAt:     startsAt,
		Activity:     r.Activity,
		StudentID:    r.Student.ID,
		StudentName:  strings.TrimSpace(r.Student.Prenom + " " + r.Student.Nom),
		StudentClass: r.Student.Classe,
	}, nil
}

// Stats summarizes attendance over a period.
type Stats struct {
	Total      int            `json:"total"`
	ByActivity map[string]int `json:"byActivity"`
	ByStudent  map[int64]int  `json:"byStudent"`
	Earliest   *time.Time     `json:"earliest"`
	Latest     *time.Time     `json:"latest"`
}
