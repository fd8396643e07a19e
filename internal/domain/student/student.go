package student

import (
	"strings"
	"time"

	"cdi-tracker/pkg/validator"
)

const (
	MaxNomLength    = 100
	MaxPrenomLength = 100
	MaxClasseLength = 50
)

func init() {
	validator.RegisterMessages(map[string]string{
		"nom.required":    "Le nom est obligatoire",
		"nom.min":         "Le nom est obligatoire",
		"nom.max":         "Le nom ne peut pas dépasser 100 caractères",
		"prenom.required": "Le prénom est obligatoire",
		"prenom.min":      "Le prénom est obligatoire",
		"prenom.max":      "Le prénom ne peut pas dépasser 100 caractères",
		"classe.required": "La classe est obligatoire",
		"classe.min":      "La classe est obligatoire",
		"classe.max":      "La classe ne peut pas dépasser 50 caractères",
	})
}

// Entity is a row of the students table.
type Entity struct {
	ID        int64     `db:"id"`
	Nom       string    `db:"nom"`
	Prenom    string    `db:"prenom"`
	Classe    string    `db:"classe"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Student is the business model handed out by the manager.
type Student struct {
	ID       int64
	Nom      string
	Prenom   string
	Classe   string
	FullName string
}

// NewStudent builds the model and computes the display name.
func NewStudent(id int64, nom, prenom, classe string) *Student {
	return &Student{
		ID:       id,
		Nom:      nom,
		Prenom:   prenom,
		Classe:   classe,
		FullName: strings.TrimSpace(prenom + " " + nom),
	}
}

func FromEntity(e *Entity) *Student {
	return NewStudent(e.ID, e.Nom, e.Prenom, e.Classe)
}

// SamePerson compares name pairs case-insensitively.
func (s *Student) SamePerson(nom, prenom string) bool {
	return strings.EqualFold(s.Nom, strings.TrimSpace(nom)) &&
		strings.EqualFold(s.Prenom, strings.TrimSpace(prenom))
}

// CreateStudentRequest is the payload of student:create.
type CreateStudentRequest struct {
	Nom    string `json:"nom" validate:"required,max=100"`
	Prenom string `json:"prenom" validate:"required,max=100"`
	Classe string `json:"classe" validate:"required,max=50"`
}

// Normalize trims every field in place.
func (r *CreateStudentRequest) Normalize() {
	r.Nom = strings.TrimSpace(r.Nom)
	r.Prenom = strings.TrimSpace(r.Prenom)
	r.Classe = strings.TrimSpace(r.Classe)
}

// UpdateStudentRequest is a patch: nil fields are left untouched. A present
// field must be non-empty once trimmed.
type UpdateStudentRequest struct {
	Nom    *string `json:"nom,omitempty" validate:"omitnil,min=1,max=100"`
	Prenom *string `json:"prenom,omitempty" validate:"omitnil,min=1,max=100"`
	Classe *string `json:"classe,omitempty" validate:"omitnil,min=1,max=50"`
}

func (r *UpdateStudentRequest) Normalize() {
	for _, f := range []*string{r.Nom, r.Prenom, r.Classe} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

// Empty reports whether the patch carries no field.
func (r *UpdateStudentRequest) Empty() bool {
	return r.Nom == nil && r.Prenom == nil && r.Classe == nil
}

// Renames reports whether the patch touches the name pair.
func (r *UpdateStudentRequest) Renames() bool {
	return r.Nom != nil || r.Prenom != nil
}

// StudentResponse is what crosses the boundary.
type StudentResponse struct {
	ID       int64  `json:"id"`
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Classe   string `json:"classe"`
	FullName string `json:"fullName"`
}

// Stats counts students overall and per class.
type Stats struct {
	Total   int            `json:"total"`
	ByClass map[string]int `json:"byClass"`
}
