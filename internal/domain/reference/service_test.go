package reference

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sevacare/refdata/internal/platform/upload"
)

// -- Mock Repository --

type mockRepo struct {
	records map[string]*Record
	nextID  int64
	failAll bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[string]*Record)}
}

func (m *mockRepo) seed(keys ...Key) {
	for _, k := range keys {
		m.nextID++
		m.records[k.hash()] = &Record{ID: m.nextID, Key: k, Active: true, CreatedAt: Now(), UpdatedAt: Now()}
	}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockRepo) ExistingKeys(_ context.Context, _ Entity, keys []Key) (map[string]bool, error) {
	if m.failAll {
		return nil, fmt.Errorf("storage down")
	}
	existing := make(map[string]bool)
	for _, k := range keys {
		if _, ok := m.records[k.hash()]; ok {
			existing[k.hash()] = true
		}
	}
	return existing, nil
}

func (m *mockRepo) InsertBatch(_ context.Context, _ Entity, recs []*Record) error {
	for _, rec := range recs {
		m.nextID++
		rec.ID = m.nextID
		m.records[rec.Key.hash()] = rec
	}
	return nil
}

func (m *mockRepo) Rename(_ context.Context, _ Entity, changes []Rename) (int, error) {
	updated := 0
	for _, ch := range changes {
		rec, ok := m.records[ch.From.hash()]
		if !ok {
			continue
		}
		delete(m.records, ch.From.hash())
		rec.Key = ch.To
		rec.UpdatedAt = Now()
		m.records[ch.To.hash()] = rec
		updated++
	}
	return updated, nil
}

func (m *mockRepo) SetActive(_ context.Context, _ Entity, changes []StatusChange) error {
	for _, ch := range changes {
		rec, ok := m.records[ch.Key.hash()]
		if !ok {
			continue
		}
		rec.Active = ch.Active
		if ch.Remarks != nil {
			rec.Remarks = ch.Remarks
		}
		rec.UpdatedAt = Now()
	}
	return nil
}

func (m *mockRepo) List(_ context.Context, _ Entity, limit, offset int) ([]*Record, int, error) {
	var all []*Record
	for _, rec := range m.records {
		all = append(all, rec)
	}
	total := len(all)
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// -- Helpers --

func entityByName(t *testing.T, name string) Entity {
	t.Helper()
	for _, e := range Entities() {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("unknown entity %q", name)
	return Entity{}
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func nameRow(col, val string) upload.Row {
	return upload.Row{col: val}
}

// -- Bulk Create --

func TestBulkCreate_DedupesAndSkipsExisting(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Globex"})

	rows := []upload.Row{
		nameRow("manufacturer_name", "Acme"),
		nameRow("manufacturer_name", "Acme"),
		nameRow("manufacturer_name", "Globex"),
	}
	result, err := svc.BulkCreate(context.Background(), e, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", result.Inserted)
	}
	if len(result.AlreadyPresent) != 1 || result.AlreadyPresent[0] != "Globex" {
		t.Errorf("expected already present [Globex], got %v", result.AlreadyPresent)
	}

	rec, ok := repo.records[Key{"Acme"}.hash()]
	if !ok {
		t.Fatal("Acme was not inserted")
	}
	if !rec.Active {
		t.Error("new record should be active")
	}
	if rec.ID == 0 {
		t.Error("new record should have a counter-assigned id")
	}
}

func TestBulkCreate_AllNew(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "category")

	rows := []upload.Row{
		nameRow("category_name", "Cardiology"),
		nameRow("category_name", "Neurology"),
	}
	result, err := svc.BulkCreate(context.Background(), e, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", result.Inserted)
	}
	if result.AlreadyPresent != nil {
		t.Errorf("expected nil already-present list, got %v", result.AlreadyPresent)
	}
	if len(repo.records) != 2 {
		t.Errorf("expected 2 stored records, got %d", len(repo.records))
	}
}

func TestBulkCreate_DoesNotTouchExistingRows(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Globex"})
	before := *repo.records[Key{"Globex"}.hash()]

	rows := []upload.Row{nameRow("manufacturer_name", "Globex")}
	result, err := svc.BulkCreate(context.Background(), e, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inserted != 0 {
		t.Errorf("expected 0 inserted, got %d", result.Inserted)
	}

	after := repo.records[Key{"Globex"}.hash()]
	if after.ID != before.ID || !after.CreatedAt.Equal(before.CreatedAt) {
		t.Error("existing row's id or created_at changed")
	}
}

func TestBulkCreate_BlankRowsDropped(t *testing.T) {
	svc, _ := newTestService()
	e := entityByName(t, "manufacturer")

	rows := []upload.Row{nameRow("manufacturer_name", ""), {}}
	if _, err := svc.BulkCreate(context.Background(), e, rows); err != ErrNoValidRows {
		t.Errorf("expected ErrNoValidRows, got %v", err)
	}
}

func TestBulkCreate_CompositeKey(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "test")

	row := upload.Row{
		"test_name":  "CBC",
		"department": "Hematology",
		"sample":     "Blood",
		"method":     "Automated",
		"units":      "cells/mcL",
	}
	result, err := svc.BulkCreate(context.Background(), e, []upload.Row{row, row})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", result.Inserted)
	}

	key := Key{"CBC", "Hematology", "Blood", "Automated", "cells/mcL"}
	if _, ok := repo.records[key.hash()]; !ok {
		t.Error("composite-key record was not inserted")
	}
}

func TestBulkCreate_StorageFailure(t *testing.T) {
	svc, repo := newTestService()
	repo.failAll = true
	e := entityByName(t, "manufacturer")

	rows := []upload.Row{nameRow("manufacturer_name", "Acme")}
	if _, err := svc.BulkCreate(context.Background(), e, rows); err == nil {
		t.Error("expected storage error")
	}
}

// -- Bulk Rename --

func renameRow(from, to string) upload.Row {
	return upload.Row{"manufacturer_name": from, "new_manufacturer_name": to}
}

func TestBulkRename_AppliesValidSkipsNoop(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Acme"})

	rows := []upload.Row{
		renameRow("Acme", "Acme2"),
		renameRow("Acme", "Acme"), // no-op, must be skipped
	}
	result, err := svc.BulkRename(context.Background(), e, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("expected 1 updated, got %d", result.Updated)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected 1 skipped, got %d", len(result.Skipped))
	}
	if _, ok := repo.records[Key{"Acme2"}.hash()]; !ok {
		t.Error("rename was not applied")
	}
}

func TestBulkRename_SecondApplicationSkips(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Acme"})

	rows := []upload.Row{renameRow("Acme", "Acme2")}
	if _, err := svc.BulkRename(context.Background(), e, rows); err != nil {
		t.Fatalf("first rename: %v", err)
	}

	// The current name no longer exists, so the same upload is a no-op skip.
	result, err := svc.BulkRename(context.Background(), e, rows)
	if err != nil {
		t.Fatalf("second rename: %v", err)
	}
	if result.Updated != 0 {
		t.Errorf("expected 0 updated on reapply, got %d", result.Updated)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected 1 skipped on reapply, got %d", len(result.Skipped))
	}
}

func TestBulkRename_TargetAlreadyExists(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Acme"}, Key{"Globex"})

	result, err := svc.BulkRename(context.Background(), e, []upload.Row{renameRow("Acme", "Globex")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Updated != 0 {
		t.Errorf("expected 0 updated, got %d", result.Updated)
	}
	if len(result.Skipped) != 1 {
		t.Errorf("expected 1 skipped, got %d", len(result.Skipped))
	}
	// Both originals must be untouched.
	if _, ok := repo.records[Key{"Acme"}.hash()]; !ok {
		t.Error("Acme should still exist")
	}
}

func TestBulkRename_RowsMissingEitherValueDropped(t *testing.T) {
	svc, _ := newTestService()
	e := entityByName(t, "manufacturer")

	rows := []upload.Row{
		{"manufacturer_name": "Acme"},          // no new name
		{"new_manufacturer_name": "SomeName"},  // no current name
	}
	if _, err := svc.BulkRename(context.Background(), e, rows); err != ErrNoValidRows {
		t.Errorf("expected ErrNoValidRows, got %v", err)
	}
}

// -- Bulk Suspend --

func suspendRow(name, flag string) upload.Row {
	return upload.Row{"manufacturer_name": name, "active_flag": flag}
}

func TestBulkSuspend_UpdatesKnownReportsUnknown(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Acme"})

	rows := []upload.Row{
		suspendRow("Acme", "0"),
		suspendRow("Unknown Co", "0"),
	}
	result, err := svc.BulkSuspend(context.Background(), e, rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Updated) != 1 || result.Updated[0] != "Acme" {
		t.Errorf("expected updated [Acme], got %v", result.Updated)
	}
	if len(result.NotFound) != 1 || result.NotFound[0] != "Unknown Co" {
		t.Errorf("expected not found [Unknown Co], got %v", result.NotFound)
	}
	if repo.records[Key{"Acme"}.hash()].Active {
		t.Error("Acme should be suspended")
	}
}

func TestBulkSuspend_Idempotent(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Acme"})

	rows := []upload.Row{suspendRow("Acme", "0")}
	for i := 0; i < 2; i++ {
		result, err := svc.BulkSuspend(context.Background(), e, rows)
		if err != nil {
			t.Fatalf("pass %d: %v", i+1, err)
		}
		// Re-suspending an already-suspended row is still an update.
		if len(result.Updated) != 1 {
			t.Errorf("pass %d: expected 1 updated, got %d", i+1, len(result.Updated))
		}
	}
	if repo.records[Key{"Acme"}.hash()].Active {
		t.Error("Acme should stay suspended")
	}
}

func TestBulkSuspend_Reactivate(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Acme"})
	repo.records[Key{"Acme"}.hash()].Active = false

	result, err := svc.BulkSuspend(context.Background(), e, []upload.Row{suspendRow("Acme", "1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Updated) != 1 {
		t.Errorf("expected 1 updated, got %d", len(result.Updated))
	}
	if !repo.records[Key{"Acme"}.hash()].Active {
		t.Error("Acme should be active again")
	}
}

func TestBulkSuspend_RemarksApplied(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "manufacturer")
	repo.seed(Key{"Acme"})

	row := upload.Row{"manufacturer_name": "Acme", "active_flag": "0", "remarks": "discontinued"}
	if _, err := svc.BulkSuspend(context.Background(), e, []upload.Row{row}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := repo.records[Key{"Acme"}.hash()]
	if rec.Remarks == nil || *rec.Remarks != "discontinued" {
		t.Errorf("expected remarks to be set, got %v", rec.Remarks)
	}
}

func TestBulkSuspend_RemarksIgnoredWhenUnsupported(t *testing.T) {
	svc, repo := newTestService()
	e := entityByName(t, "vitals")
	repo.seed(Key{"Heart Rate"})

	row := upload.Row{"vital_name": "Heart Rate", "active_flag": "0", "remarks": "ignored"}
	if _, err := svc.BulkSuspend(context.Background(), e, []upload.Row{row}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := repo.records[Key{"Heart Rate"}.hash()]
	if rec.Remarks != nil {
		t.Errorf("vitals suspend must not carry remarks, got %q", *rec.Remarks)
	}
	if rec.Active {
		t.Error("Heart Rate should be suspended")
	}
}

func TestBulkSuspend_BadFlagDropsRow(t *testing.T) {
	svc, _ := newTestService()
	e := entityByName(t, "manufacturer")

	rows := []upload.Row{suspendRow("Acme", "yes")}
	if _, err := svc.BulkSuspend(context.Background(), e, rows); err != ErrNoValidRows {
		t.Errorf("expected ErrNoValidRows, got %v", err)
	}
}
