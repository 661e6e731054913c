package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/repos"
	"github.com/deckforge/deckforge-backend/internal/types"
)

func newSQLiteService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "test.db"))
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	svc, err := New(log)
	if err != nil {
		t.Fatalf("db.New on sqlite: %v", err)
	}
	return svc
}

// The no-Postgres fallback must be able to migrate every model; column
// defaults that only Postgres understands would break it.
func TestSQLiteFallbackMigratesAndWrites(t *testing.T) {
	svc := newSQLiteService(t)
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("AutoMigrateAll on sqlite: %v", err)
	}

	log, _ := logger.New("dev")
	ctx := context.Background()

	runRepo := repos.NewGenerationRunRepo(svc.DB(), log)
	run, err := runRepo.Create(ctx, nil, &types.GenerationRun{
		Status:     types.RunStatusRunning,
		Phase:      "framework_selection",
		SlideCount: 5,
		Request:    datatypes.JSON([]byte(`{"prompt":"q3 review"}`)),
	})
	if err != nil {
		t.Fatalf("Create run: %v", err)
	}
	if run.CreatedAt.IsZero() || run.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not populated: %+v", run)
	}

	got, err := runRepo.GetByID(ctx, nil, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Status != types.RunStatusRunning {
		t.Fatalf("round trip lost the run: %+v", got)
	}

	callRepo := repos.NewLLMCallLogRepo(svc.DB(), log)
	rows, err := callRepo.Create(ctx, nil, []*types.LLMCallLog{{
		RunID:    &run.ID,
		Model:    "claude-test",
		Prompt:   "sys\n\nusr",
		Response: "ok",
		Success:  true,
	}})
	if err != nil {
		t.Fatalf("Create call log: %v", err)
	}
	if len(rows) != 1 || rows[0].ID == uuid.Nil {
		t.Fatalf("call log row not persisted: %+v", rows)
	}

	calls, err := callRepo.ListByRunID(ctx, nil, run.ID, 0)
	if err != nil {
		t.Fatalf("ListByRunID: %v", err)
	}
	if len(calls) != 1 || calls[0].Model != "claude-test" {
		t.Fatalf("call log round trip: %+v", calls)
	}
}
