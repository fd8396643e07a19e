package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		err    error
		kind   Kind
		status int
	}{
		{nil, "", http.StatusOK},
		{Validation("Le nom est obligatoire"), KindValidation, http.StatusBadRequest},
		{NotFound("Étudiant non trouvé"), KindNotFound, http.StatusNotFound},
		{Conflict("existe déjà"), KindConflict, http.StatusConflict},
		{Persistence("Erreur lors de la création", errors.New("disk I/O error")), KindPersistence, http.StatusInternalServerError},
		{errors.New("boom"), KindTransport, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("x")), KindNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v): expected %q, got %q", tt.err, tt.kind, got)
		}
		if got := HTTPStatus(tt.err); got != tt.status {
			t.Errorf("HTTPStatus(%v): expected %d, got %d", tt.err, tt.status, got)
		}
	}
}

func TestMessageAndUnwrap(t *testing.T) {
	err := Validation("Le nom est obligatoire", "La classe est obligatoire")
	if got := As(err).Message(); got != "Le nom est obligatoire, La classe est obligatoire" {
		t.Errorf("Unexpected message: %q", got)
	}

	cause := errors.New("database is locked")
	err = Persistence("Erreur lors de la suppression", cause)
	if !errors.Is(err, cause) {
		t.Error("Expected the cause to be reachable through Unwrap")
	}
}
