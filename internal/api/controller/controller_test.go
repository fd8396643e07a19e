package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cdi-tracker/internal/api/ipc"
	"cdi-tracker/internal/infrastructure/database"
	"cdi-tracker/internal/infrastructure/repository"
	"cdi-tracker/internal/service"
	"cdi-tracker/pkg/apperr"
	"cdi-tracker/pkg/timestamp"
)

type harness struct {
	bus   *ipc.Bus
	store *database.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := database.NewConnection(database.Config{Path: filepath.Join(t.TempDir(), "cdi.db")})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cal := service.NewCalendar(time.UTC)
	studentRepo := repository.NewStudentRepository(store.DB)
	frequentationRepo := repository.NewFrequentationRepository(store.DB)
	students := service.NewStudentManager(studentRepo, nil, cal, service.StudentManagerConfig{})
	frequentations := service.NewFrequentationManager(frequentationRepo, studentRepo, cal)

	bus := ipc.NewBus()
	NewStudentController(students, frequentations, cal, store.ForeignKeysEnabled).Register(bus)
	NewFrequentationController(frequentations, cal).Register(bus)
	return &harness{bus: bus, store: store}
}

// call invokes channel with v marshalled as payload and returns the
// envelope decoded from its JSON form.
func (h *harness) call(t *testing.T, channel string, v interface{}) (map[string]interface{}, error) {
	t.Helper()
	var payload json.RawMessage
	if v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		payload = raw
	}
	resp, callErr := h.bus.Invoke(context.Background(), channel, payload)
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, hasErr := out["error"]; hasErr {
		if _, hasData := out["data"]; hasData {
			t.Errorf("%s: envelope carries both error and data: %s", channel, raw)
		}
	}
	return out, callErr
}

func data(t *testing.T, env map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := env["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected object data, got %v", env)
	}
	return d
}

func TestStudentChannels(t *testing.T) {
	h := newHarness(t)

	env, err := h.call(t, "student:create", map[string]string{"nom": "Martin", "prenom": "Lea", "classe": "6A"})
	if err != nil || env["success"] != true {
		t.Fatalf("create failed: %v %v", env, err)
	}
	created := data(t, env)
	if created["fullName"] != "Lea Martin" || created["id"].(float64) != 1 {
		t.Errorf("Unexpected student: %v", created)
	}

	env, err = h.call(t, "student:create", map[string]string{"nom": "MARTIN", "prenom": "lea", "classe": "6B"})
	if !apperr.IsConflict(err) || env["success"] != false {
		t.Errorf("Expected conflict, got %v %v", env, err)
	}

	env, err = h.call(t, "student:create", map[string]string{"nom": "", "prenom": "", "classe": "6A"})
	if !apperr.IsValidation(err) {
		t.Fatalf("Expected validation failure, got %v", err)
	}
	if errs, _ := env["errors"].([]interface{}); len(errs) != 2 {
		t.Errorf("Expected 2 itemized errors, got %v", env["errors"])
	}

	h.call(t, "student:create", map[string]string{"nom": "Petit", "prenom": "Tom", "classe": "5B"})

	env, _ = h.call(t, "student:getAll", nil)
	list := data(t, env)
	if list["total"].(float64) != 2 || len(list["items"].([]interface{})) != 2 {
		t.Errorf("Unexpected list: %v", list)
	}

	env, _ = h.call(t, "student:getByClass", map[string]string{"classe": "5B"})
	if data(t, env)["total"].(float64) != 1 {
		t.Errorf("Unexpected class listing: %v", env)
	}

	env, err = h.call(t, "student:update", map[string]interface{}{"id": 1, "data": map[string]string{"classe": "5A"}})
	if err != nil || data(t, env)["classe"] != "5A" {
		t.Errorf("update failed: %v %v", env, err)
	}

	env, err = h.call(t, "student:update", map[string]interface{}{"id": 1, "data": map[string]string{"nom": "   "}})
	if !apperr.IsValidation(err) || env["error"] != "Le nom est obligatoire" {
		t.Errorf("Expected blank nom to be rejected, got %v %v", env, err)
	}

	env, err = h.call(t, "student:getById", map[string]int{"id": 42})
	if !apperr.IsNotFound(err) || env["error"] != "Étudiant non trouvé" {
		t.Errorf("Expected not found, got %v %v", env, err)
	}

	env, _ = h.call(t, "student:getStats", nil)
	stats := data(t, env)
	if stats["total"].(float64) != 2 {
		t.Errorf("Unexpected stats: %v", stats)
	}

	env, _ = h.call(t, "student:validate", map[string]string{"nom": "X"})
	v := data(t, env)
	if v["isValid"] != false || len(v["errors"].([]interface{})) != 2 {
		t.Errorf("Unexpected validation result: %v", v)
	}

	env, err = h.call(t, "student:createBatch", []map[string]string{
		{"nom": "Roux", "prenom": "Ana", "classe": "4A"},
		{"nom": "", "prenom": "Zoé", "classe": "4A"},
	})
	if err != nil {
		t.Fatalf("createBatch failed: %v", err)
	}
	batch := data(t, env)
	if batch["created"].(float64) != 1 || len(batch["errors"].([]interface{})) != 1 {
		t.Errorf("Unexpected batch result: %v", batch)
	}
}

func TestStudentDeleteChannel(t *testing.T) {
	h := newHarness(t)
	for _, n := range []string{"Martin", "Petit"} {
		h.call(t, "student:create", map[string]string{"nom": n, "prenom": "Lea", "classe": "6A"})
	}

	env, err := h.call(t, "student:delete", map[string][]int64{"ids": {1, 99}})
	if err == nil || env["success"] != false {
		t.Fatalf("Expected partial failure, got %v", env)
	}
	if data(t, env)["count"].(float64) != 1 {
		t.Errorf("Expected count 1, got %v", env["data"])
	}

	env, err = h.call(t, "student:delete", map[string][]int64{"ids": {2}})
	if err != nil || env["success"] != true || data(t, env)["count"].(float64) != 1 {
		t.Errorf("Expected full success, got %v %v", env, err)
	}
}

func TestStudentDeletePurgesAttendanceWithoutForeignKeys(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.DB.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		t.Fatalf("failed to disable foreign keys: %v", err)
	}

	h.call(t, "student:create", map[string]string{"nom": "Martin", "prenom": "Lea", "classe": "6A"})
	_, err := h.call(t, "frequentation:create", map[string]interface{}{
		"startsAt":  timestamp.Format(time.Now().Add(-time.Hour)),
		"activity":  "work",
		"studentId": 1,
	})
	if err != nil {
		t.Fatalf("frequentation:create failed: %v", err)
	}

	if _, err := h.call(t, "student:delete", map[string][]int64{"ids": {1}}); err != nil {
		t.Fatalf("student:delete failed: %v", err)
	}

	var left int
	if err := h.store.DB.Get(&left, "SELECT COUNT(*) FROM frequentation"); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if left != 0 {
		t.Errorf("Expected attendance to be purged, %d rows left", left)
	}
}

func TestFrequentationChannels(t *testing.T) {
	h := newHarness(t)
	h.call(t, "student:create", map[string]string{"nom": "Martin", "prenom": "Lea", "classe": "6A"})

	startsAt := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	env, err := h.call(t, "frequentation:create", map[string]interface{}{
		"startsAt":  timestamp.Format(startsAt),
		"activity":  "Lecture",
		"studentId": 1,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	created := data(t, env)
	if created["activity"] != "reading" {
		t.Errorf("Expected normalized activity, got %v", created["activity"])
	}
	studentRef := created["student"].(map[string]interface{})
	if studentRef["nom"] != "Martin" || studentRef["prenom"] != "Lea" || studentRef["classe"] != "6A" {
		t.Errorf("Unexpected student block: %v", studentRef)
	}

	env, err = h.call(t, "frequentation:create", map[string]interface{}{
		"startsAt":  timestamp.Format(time.Now().Add(time.Hour)),
		"activity":  "work",
		"studentId": 1,
	})
	if !apperr.IsValidation(err) {
		t.Errorf("Expected future date rejection, got %v %v", env, err)
	}

	env, err = h.call(t, "frequentation:create", map[string]interface{}{
		"startsAt":  timestamp.Format(startsAt),
		"activity":  "work",
		"studentId": 9999,
	})
	if !apperr.IsNotFound(err) {
		t.Errorf("Expected not found for unknown student, got %v %v", env, err)
	}

	day := startsAt.Format(timestamp.DateLayout)
	env, _ = h.call(t, "frequentation:getByDate", map[string]string{"date": day})
	if data(t, env)["total"].(float64) != 1 {
		t.Errorf("Unexpected getByDate: %v", env)
	}

	env, _ = h.call(t, "frequentation:getByDateRange", map[string]string{"startDate": day, "endDate": day})
	if data(t, env)["total"].(float64) != 1 {
		t.Errorf("Unexpected getByDateRange: %v", env)
	}

	env, err = h.call(t, "frequentation:getByDateRange", map[string]string{"startDate": day})
	if !apperr.IsValidation(err) {
		t.Errorf("Expected validation error for missing end date, got %v", env)
	}

	env, err = h.call(t, "frequentation:update", map[string]interface{}{"id": 1, "data": map[string]string{"activity": "Ordinateur"}})
	if err != nil || data(t, env)["activity"] != "computer" {
		t.Errorf("update failed: %v %v", env, err)
	}

	env, err = h.call(t, "frequentation:recordPresence", map[string]interface{}{
		"studentIds": []int64{1},
		"startsAt":   timestamp.Format(startsAt.Add(-time.Hour)),
		"activity":   "Détente",
	})
	if err != nil || data(t, env)["created"].(float64) != 1 {
		t.Errorf("recordPresence failed: %v %v", env, err)
	}

	env, _ = h.call(t, "frequentation:getByStudentId", map[string]int{"studentId": 1})
	if data(t, env)["total"].(float64) != 2 {
		t.Errorf("Unexpected getByStudentId: %v", env)
	}

	env, _ = h.call(t, "frequentation:getStats", nil)
	stats := data(t, env)
	if stats["total"].(float64) != 2 {
		t.Errorf("Unexpected stats: %v", stats)
	}

	env, _ = h.call(t, "frequentation:validate", map[string]interface{}{"activity": "work"})
	if data(t, env)["isValid"] != false {
		t.Errorf("Expected invalid payload, got %v", env)
	}

	env, err = h.call(t, "frequentation:delete", map[string]int{"id": 1})
	if err != nil || data(t, env)["count"].(float64) != 1 {
		t.Errorf("delete failed: %v %v", env, err)
	}

	env, err = h.call(t, "frequentation:deleteByStudentId", map[string]int{"studentId": 1})
	if err != nil || data(t, env)["deleted"].(float64) != 1 {
		t.Errorf("deleteByStudentId failed: %v %v", env, err)
	}

	env, _ = h.call(t, "frequentation:getAll", nil)
	if data(t, env)["total"].(float64) != 0 {
		t.Errorf("Expected empty list, got %v", env)
	}
}

func TestFrequentationActivitiesChannel(t *testing.T) {
	h := newHarness(t)

	env, err := h.call(t, "frequentation:getActivities", nil)
	if err != nil {
		t.Fatalf("getActivities failed: %v", err)
	}
	list := data(t, env)
	items := list["items"].([]interface{})
	if list["total"].(float64) != 5 || len(items) != 5 {
		t.Fatalf("Expected 5 activities, got %v", list)
	}
	first := items[0].(map[string]interface{})
	if first["key"] != "work" || first["label"] != "Travail" {
		t.Errorf("Unexpected first activity: %v", first)
	}
	last := items[4].(map[string]interface{})
	if last["key"] != "other" || last["label"] != "Autre" {
		t.Errorf("Unexpected last activity: %v", last)
	}
}

func TestFrequentationCreateBatchChannel(t *testing.T) {
	h := newHarness(t)
	h.call(t, "student:create", map[string]string{"nom": "Martin", "prenom": "Lea", "classe": "6A"})

	past := timestamp.Format(time.Now().Add(-2 * time.Hour))
	items := []map[string]interface{}{
		{"startsAt": past, "activity": "work", "studentId": 1},
		{"startsAt": past, "activity": "work", "studentId": 7},
		{"startsAt": "hier", "activity": "work", "studentId": 1},
	}
	env, err := h.call(t, "frequentation:createBatch", items)
	if err != nil {
		t.Fatalf("createBatch failed: %v", err)
	}
	batch := data(t, env)
	if batch["created"].(float64) != 1 {
		t.Errorf("Expected 1 created, got %v", batch)
	}
	errs := batch["errors"].([]interface{})
	if len(errs) != 2 {
		t.Fatalf("Expected 2 errors, got %v", errs)
	}
	if want := fmt.Sprintf("Fréquentation work (%s): Étudiant non trouvé", past); errs[0] != want {
		t.Errorf("Expected %q, got %q", want, errs[0])
	}

	env, err = h.call(t, "frequentation:createBatch", items[1:])
	if err == nil || env["success"] != false {
		t.Errorf("Expected failure when nothing was created, got %v", env)
	}
}
