package tracker_test

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/unichart/unichart/internal/tracker"
)

func TestPostgresStateStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := t.Context()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("unichart"),
		tcpostgres.WithUsername("unichart"),
		tcpostgres.WithPassword("unichart"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	defer pool.Close()

	store, err := tracker.NewPostgresStateStore(ctx, pool, "student-1")
	if err != nil {
		t.Fatalf("NewPostgresStateStore() error = %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Fatal("Load() should report absence before first save")
	}

	if err := store.Save(ctx, sampleState()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Upsert: saving again must replace, not duplicate.
	updated := sampleState()
	updated.Progress.PassedCourses = updated.Progress.PassedCourses[:1]
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil {
		t.Fatal("Load() = nil after save")
	}
	if len(got.Progress.PassedCourses) != 1 {
		t.Errorf("PassedCourses count = %d, want 1 after overwrite", len(got.Progress.PassedCourses))
	}
	if len(got.CustomTemplates) != 1 {
		t.Errorf("CustomTemplates count = %d, want 1", len(got.CustomTemplates))
	}

	// Namespaces are isolated.
	other, err := tracker.NewPostgresStateStore(ctx, pool, "student-2")
	if err != nil {
		t.Fatalf("NewPostgresStateStore() error = %v", err)
	}
	if state, err := other.Load(ctx); err != nil || state != nil {
		t.Errorf("Load() for other namespace = (%+v, %v), want (nil, nil)", state, err)
	}
}
