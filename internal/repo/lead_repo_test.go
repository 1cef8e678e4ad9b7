package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

func newLeadRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("lead_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func mkLead(name string) *domain.Lead {
	return &domain.Lead{
		TenantID: "demo",
		Name:     name,
		Phone:    "0300-1234567",
		Source:   domain.SourceWhatsApp,
		Value:    2500000,
	}
}

func TestCreateLead_Error_NoTable(t *testing.T) {
	db := newLeadRepoDB(t /* no migrations */)
	l, err := CreateLead(context.Background(), db, mkLead("Ayesha Khan"))
	if err == nil || l != nil {
		t.Fatalf("expected error creating without table, got lead=%v err=%v", l, err)
	}
}

func TestCreateLead_Success_SetsDefaults(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})

	start := time.Now().UTC().Add(-time.Minute)
	l, err := CreateLead(context.Background(), db, mkLead("Ayesha Khan"))
	if err != nil {
		t.Fatalf("CreateLead: %v", err)
	}
	if l.ID == "" {
		t.Fatalf("expected generated ID, got empty")
	}
	if l.Stage != domain.StageNew {
		t.Fatalf("expected default stage NEW, got %q", l.Stage)
	}
	if l.CreatedAt.Before(start) {
		t.Fatalf("CreatedAt not set: %v", l.CreatedAt)
	}

	var got domain.Lead
	if err := db.First(&got, "id = ?", l.ID).Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Name != "Ayesha Khan" || got.Value != 2500000 {
		t.Fatalf("unexpected persisted lead: %+v", got)
	}
}

func TestUpsertLead_NewID_Inserts(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})

	in := mkLead("Bilal Sheikh")
	in.ID = "lead-1"
	l, err := UpsertLead(context.Background(), db, in)
	if err != nil {
		t.Fatalf("UpsertLead: %v", err)
	}
	if l.ID != "lead-1" {
		t.Fatalf("expected caller-supplied ID, got %q", l.ID)
	}
}

func TestUpsertLead_Existing_PreservesCreatedAtAndPosition(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})
	ctx := context.Background()

	first, err := CreateLead(ctx, db, mkLead("First"))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := CreateLead(ctx, db, mkLead("Second")); err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Re-save the first lead with a new stage; it must not move to the end.
	upd := mkLead("First Renamed")
	upd.ID = first.ID
	upd.Stage = domain.StageContacted
	got, err := UpsertLead(ctx, db, upd)
	if err != nil {
		t.Fatalf("UpsertLead: %v", err)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("CreatedAt changed on upsert: %v != %v", got.CreatedAt, first.CreatedAt)
	}

	list, err := ListLeads(ctx, db, "demo")
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(list))
	}
	if list[0].ID != first.ID || list[0].Name != "First Renamed" || list[0].Stage != domain.StageContacted {
		t.Fatalf("upserted lead lost its position or fields: %+v", list[0])
	}
}

func TestUpsertLead_Idempotent_SameRecordTwice(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})
	ctx := context.Background()

	l, err := CreateLead(ctx, db, mkLead("Stable"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := UpsertLead(ctx, db, l); err != nil {
			t.Fatalf("upsert #%d: %v", i+1, err)
		}
	}
	total, err := CountLeads(ctx, db, "demo")
	if err != nil {
		t.Fatalf("CountLeads: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 lead after repeated upserts, got %d", total)
	}
}

func TestListLeads_EmptyAndOrder(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})
	ctx := context.Background()

	list, err := ListLeads(ctx, db, "demo")
	if err != nil {
		t.Fatalf("ListLeads empty: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty slice, got %d", len(list))
	}

	names := []string{"A", "B", "C"}
	for _, n := range names {
		if _, err := CreateLead(ctx, db, mkLead(n)); err != nil {
			t.Fatalf("create %s: %v", n, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	list, err = ListLeads(ctx, db, "demo")
	if err != nil {
		t.Fatalf("ListLeads: %v", err)
	}
	for i, n := range names {
		if list[i].Name != n {
			t.Fatalf("expected %q at index %d, got %q", n, i, list[i].Name)
		}
	}
}

func TestListLeadsPage_OffsetLimit(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := CreateLead(ctx, db, mkLead(fmt.Sprintf("L%d", i))); err != nil {
			t.Fatalf("create: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	page, err := ListLeadsPage(ctx, db, "demo", 2, 2)
	if err != nil {
		t.Fatalf("ListLeadsPage: %v", err)
	}
	if len(page) != 2 || page[0].Name != "L2" || page[1].Name != "L3" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestGetLead_NotFoundAndWrongTenant(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})
	ctx := context.Background()

	if _, err := GetLead(ctx, db, "missing", "demo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	l, err := CreateLead(ctx, db, mkLead("Scoped"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := GetLead(ctx, db, l.ID, "other-tenant"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong tenant, got %v", err)
	}
	got, err := GetLead(ctx, db, l.ID, "demo")
	if err != nil || got.ID != l.ID {
		t.Fatalf("GetLead: got=%v err=%v", got, err)
	}
}

func TestUpdateLeadStage(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})
	ctx := context.Background()

	if err := UpdateLeadStage(ctx, db, "missing", "demo", domain.StageWon); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	l, err := CreateLead(ctx, db, mkLead("Mover"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := UpdateLeadStage(ctx, db, l.ID, "demo", domain.StageProposal); err != nil {
		t.Fatalf("UpdateLeadStage: %v", err)
	}
	got, err := GetLead(ctx, db, l.ID, "demo")
	if err != nil {
		t.Fatalf("GetLead: %v", err)
	}
	if got.Stage != domain.StageProposal {
		t.Fatalf("expected PROPOSAL, got %q", got.Stage)
	}
}

func TestUpdateLeadAnalysis_SyncsScoreColumn(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{})
	ctx := context.Background()

	l, err := CreateLead(ctx, db, mkLead("Scored"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a := domain.AiAnalysis{
		Score:     82,
		Sentiment: domain.SentimentPositive,
		Summary:   "Hot lead, ready to view DHA plots",
		KeyPoints: []string{"budget confirmed", "wants corner plot"},
	}
	if err := UpdateLeadAnalysis(ctx, db, l.ID, "demo", a); err != nil {
		t.Fatalf("UpdateLeadAnalysis: %v", err)
	}

	got, err := GetLead(ctx, db, l.ID, "demo")
	if err != nil {
		t.Fatalf("GetLead: %v", err)
	}
	if got.AIScore == nil || *got.AIScore != 82 {
		t.Fatalf("ai_score column not synced: %v", got.AIScore)
	}
	if got.Analysis == nil || got.Analysis.Score != 82 || got.Analysis.Sentiment != domain.SentimentPositive {
		t.Fatalf("analysis not round-tripped: %+v", got.Analysis)
	}
	if len(got.Analysis.KeyPoints) != 2 {
		t.Fatalf("key points lost: %+v", got.Analysis.KeyPoints)
	}

	if err := UpdateLeadAnalysis(ctx, db, "missing", "demo", a); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteLead_CascadesMessages(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{}, &domain.Message{})
	ctx := context.Background()

	l, err := CreateLead(ctx, db, mkLead("Doomed"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := AppendMessage(ctx, db, l.ID, "demo", fmt.Sprintf("msg %d", i), domain.DirectionInbound, domain.ChannelWhatsApp); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	keep, err := CreateLead(ctx, db, mkLead("Survivor"))
	if err != nil {
		t.Fatalf("create survivor: %v", err)
	}
	if _, err := AppendMessage(ctx, db, keep.ID, "demo", "keep me", domain.DirectionOutbound, domain.ChannelSMS); err != nil {
		t.Fatalf("append survivor msg: %v", err)
	}

	if err := DeleteLead(ctx, db, l.ID, "demo"); err != nil {
		t.Fatalf("DeleteLead: %v", err)
	}

	if _, err := GetLead(ctx, db, l.ID, "demo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted lead to be gone, got %v", err)
	}
	n, err := CountMessages(ctx, db, l.ID)
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected cascade delete of messages, %d left", n)
	}
	if n, _ := CountMessages(ctx, db, keep.ID); n != 1 {
		t.Fatalf("survivor's messages touched: %d", n)
	}
}

func TestDeleteLead_NotFound(t *testing.T) {
	db := newLeadRepoDB(t, &domain.Lead{}, &domain.Message{})
	if err := DeleteLead(context.Background(), db, "missing", "demo"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
