package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cdi-tracker/internal/domain/frequentation"
	"cdi-tracker/internal/domain/student"
	"cdi-tracker/internal/infrastructure/database"
	interfaces "cdi-tracker/internal/interfaces/infrastructure"
	"cdi-tracker/pkg/timestamp"

	"github.com/jmoiron/sqlx"
)

func setupDB(t *testing.T) *sqlx.DB {
	t.Helper()
	store, err := database.NewConnection(database.Config{Path: filepath.Join(t.TempDir(), "cdi.db")})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store.DB
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStudentRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentRepository(setupDB(t))

	created, err := repo.Create(ctx, "Martin", "Alice", "3A")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == 0 || created.Nom != "Martin" || created.Prenom != "Alice" || created.Classe != "3A" {
		t.Fatalf("unexpected entity: %+v", created)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	if _, err := repo.Create(ctx, "Durand", "Bob", "2B"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(ctx, "Bernard", "Chloé", "3A"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	want := []string{"Durand", "Bernard", "Martin"}
	if len(all) != len(want) {
		t.Fatalf("expected %d students, got %d", len(want), len(all))
	}
	for i, nom := range want {
		if all[i].Nom != nom {
			t.Errorf("position %d: expected %s, got %s", i, nom, all[i].Nom)
		}
	}

	byClass, err := repo.FindByClass(ctx, "3A")
	if err != nil {
		t.Fatalf("FindByClass failed: %v", err)
	}
	if len(byClass) != 2 || byClass[0].Nom != "Bernard" {
		t.Errorf("unexpected class listing: %+v", byClass)
	}

	classe := "4C"
	updated, err := repo.Update(ctx, created.ID, &student.UpdateStudentRequest{Classe: &classe})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Classe != "4C" || updated.Nom != "Martin" {
		t.Errorf("partial update touched the wrong fields: %+v", updated)
	}

	unchanged, err := repo.Update(ctx, created.ID, &student.UpdateStudentRequest{})
	if err != nil {
		t.Fatalf("empty Update failed: %v", err)
	}
	if unchanged == nil || unchanged.Classe != "4C" {
		t.Errorf("empty patch should return the current row, got %+v", unchanged)
	}

	missing, err := repo.Update(ctx, 999, &student.UpdateStudentRequest{Classe: &classe})
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for a missing row, got (%v, %v)", missing, err)
	}

	counts, err := repo.CountByClass(ctx)
	if err != nil {
		t.Fatalf("CountByClass failed: %v", err)
	}
	if counts["3A"] != 1 || counts["2B"] != 1 || counts["4C"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	deleted, err := repo.Delete(ctx, created.ID)
	if err != nil || !deleted {
		t.Fatalf("Delete failed: %v %v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, created.ID)
	if err != nil || deleted {
		t.Errorf("second Delete should report false, got %v %v", deleted, err)
	}
	if found, _ := repo.FindByID(ctx, created.ID); found != nil {
		t.Error("deleted student still found")
	}
	if n, _ := repo.Count(ctx); n != 2 {
		t.Errorf("expected 2 students, got %d", n)
	}
}

func TestFrequentationRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	students := NewStudentRepository(db)
	repo := NewFrequentationRepository(db)

	alice, _ := students.Create(ctx, "Martin", "Alice", "3A")
	bob, _ := students.Create(ctx, "Durand", "Bob", "2B")

	first, err := repo.Create(ctx, frequentation.NewRow{
		StartsAt:  timestamp.Format(at("2024-03-01T09:00:00Z")),
		Activity:  "reading",
		StudentID: alice.ID,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !first.StartsAt.Equal(at("2024-03-01T09:00:00Z")) {
		t.Errorf("starts_at round trip: got %v", first.StartsAt)
	}
	if _, err := repo.Create(ctx, frequentation.NewRow{
		StartsAt:  timestamp.Format(at("2024-03-02T14:30:00Z")),
		Activity:  "work",
		StudentID: bob.ID,
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	joined, err := repo.FindByIDWithStudent(ctx, first.ID)
	if err != nil {
		t.Fatalf("FindByIDWithStudent failed: %v", err)
	}
	if joined.Nom.String != "Martin" || joined.Prenom.String != "Alice" || joined.Classe.String != "3A" {
		t.Errorf("unexpected join: %+v", joined)
	}

	rows, err := repo.FindByDateRange(ctx, at("2024-03-01T09:00:00Z"), at("2024-03-02T14:30:00Z"))
	if err != nil {
		t.Fatalf("FindByDateRange failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("inclusive range should return 2 rows, got %d", len(rows))
	}
	if rows[0].StudentID != bob.ID {
		t.Error("expected newest first")
	}

	without, err := students.FindWithoutFrequentationBetween(ctx, at("2024-03-01T00:00:00Z"), at("2024-03-01T23:59:59Z"))
	if err != nil {
		t.Fatalf("FindWithoutFrequentationBetween failed: %v", err)
	}
	if len(without) != 1 || without[0].ID != bob.ID {
		t.Errorf("expected only Bob without attendance, got %+v", without)
	}

	activity := "computer"
	updated, err := repo.Update(ctx, first.ID, &frequentation.Patch{Activity: &activity})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Activity != "computer" || updated.StudentID != alice.ID {
		t.Errorf("unexpected update: %+v", updated)
	}

	byActivity, err := repo.CountByActivity(ctx, at("2024-01-01T00:00:00Z"), at("2024-12-31T00:00:00Z"))
	if err != nil {
		t.Fatalf("CountByActivity failed: %v", err)
	}
	if byActivity["computer"] != 1 || byActivity["work"] != 1 {
		t.Errorf("unexpected activity counts: %v", byActivity)
	}

	earliest, latest, err := repo.Bounds(ctx, at("2024-01-01T00:00:00Z"), at("2024-12-31T00:00:00Z"))
	if err != nil {
		t.Fatalf("Bounds failed: %v", err)
	}
	if earliest == nil || !earliest.Equal(at("2024-03-01T09:00:00Z")) || latest == nil || !latest.Equal(at("2024-03-02T14:30:00Z")) {
		t.Errorf("unexpected bounds: %v %v", earliest, latest)
	}
	earliest, latest, err = repo.Bounds(ctx, at("2020-01-01T00:00:00Z"), at("2020-12-31T00:00:00Z"))
	if err != nil || earliest != nil || latest != nil {
		t.Errorf("empty range should give nil bounds, got %v %v %v", earliest, latest, err)
	}
}

func TestFrequentationCreateManyAndDeletes(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	students := NewStudentRepository(db)
	repo := NewFrequentationRepository(db)

	alice, _ := students.Create(ctx, "Martin", "Alice", "3A")
	base := at("2024-05-01T08:00:00Z")

	rows := make([]frequentation.NewRow, 450)
	for i := range rows {
		rows[i] = frequentation.NewRow{
			StartsAt:  timestamp.Format(base.Add(time.Duration(i) * time.Minute)),
			Activity:  "reading",
			StudentID: alice.ID,
		}
	}
	n, err := repo.CreateMany(ctx, rows)
	if err != nil {
		t.Fatalf("CreateMany failed: %v", err)
	}
	if n != 450 {
		t.Fatalf("expected 450 rows, got %d", n)
	}

	bad := []frequentation.NewRow{
		{StartsAt: timestamp.Format(base), Activity: "work", StudentID: alice.ID},
		{StartsAt: timestamp.Format(base), Activity: "work", StudentID: 424242},
	}
	if _, err := repo.CreateMany(ctx, bad); err == nil {
		t.Fatal("expected a foreign key failure")
	}
	if count, _ := repo.Count(ctx); count != 450 {
		t.Errorf("failed CreateMany must not leave rows behind, count=%d", count)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	ids := []int64{all[0].ID, all[1].ID, 999999}
	deleted, err := repo.DeleteMany(ctx, ids)
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deletions, got %d", deleted)
	}

	old, err := repo.DeleteOlderThan(ctx, base.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if old != 10 {
		t.Errorf("expected 10 old rows removed, got %d", old)
	}

	// Cascade through the foreign key.
	if _, err := students.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("Delete student failed: %v", err)
	}
	if count, _ := repo.Count(ctx); count != 0 {
		t.Errorf("expected cascade to remove all rows, %d left", count)
	}
}

func TestDeleteByStudentID(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	students := NewStudentRepository(db)
	repo := NewFrequentationRepository(db)

	alice, _ := students.Create(ctx, "Martin", "Alice", "3A")
	bob, _ := students.Create(ctx, "Durand", "Bob", "2B")
	for _, id := range []int64{alice.ID, alice.ID, bob.ID} {
		if _, err := repo.Create(ctx, frequentation.NewRow{
			StartsAt:  timestamp.Format(at("2024-03-01T09:00:00Z")),
			Activity:  "other",
			StudentID: id,
		}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	n, err := repo.DeleteByStudentID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("DeleteByStudentID failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	left, _ := repo.FindByStudentID(ctx, bob.ID)
	if len(left) != 1 {
		t.Errorf("Bob's row should remain, got %d", len(left))
	}
}

func TestStudentRepositoryRejectsDuplicateNames(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentRepository(setupDB(t))

	if _, err := repo.Create(ctx, "Martin", "Alice", "3A"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Create(ctx, "MARTIN", "alice", "4B"); !errors.Is(err, interfaces.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on create, got %v", err)
	}

	bob, err := repo.Create(ctx, "Durand", "Bob", "2B")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	nom, prenom := "martin", "ALICE"
	_, err = repo.Update(ctx, bob.ID, &student.UpdateStudentRequest{Nom: &nom, Prenom: &prenom})
	if !errors.Is(err, interfaces.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on update, got %v", err)
	}
}

func TestEmptyPatchReturnsCurrentRow(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	students := NewStudentRepository(db)
	repo := NewFrequentationRepository(db)

	alice, err := students.Create(ctx, "Martin", "Alice", "3A")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	same, err := students.Update(ctx, alice.ID, &student.UpdateStudentRequest{})
	if err != nil || same == nil || same.Nom != "Martin" {
		t.Fatalf("empty student patch: %+v, %v", same, err)
	}
	if missing, err := students.Update(ctx, 999, &student.UpdateStudentRequest{}); err != nil || missing != nil {
		t.Errorf("expected nil for missing student, got %+v, %v", missing, err)
	}

	row, err := repo.Create(ctx, frequentation.NewRow{StartsAt: "2024-01-10T09:00:00.000Z", Activity: "reading", StudentID: alice.ID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, err := repo.Update(ctx, row.ID, &frequentation.Patch{})
	if err != nil || got == nil || got.Activity != "reading" {
		t.Fatalf("empty frequentation patch: %+v, %v", got, err)
	}
}
