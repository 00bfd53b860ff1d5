package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"duckpond/internal/frame"
)

func customersFrame(t *testing.T, n int) *frame.Frame {
	t.Helper()
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{string(rune('a' + i%26)), "x"}
	}
	f, err := frame.FromStrings([]string{"id", "name"}, rows)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return f
}

func TestLoadFrame_CreatesAndCopies(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	f := customersFrame(t, 7)

	n, err := LoadFrame(context.Background(), repo, "test_env.customers", f, LoadOptions{BatchSize: 3})
	if err != nil {
		t.Fatalf("LoadFrame: %v", err)
	}
	if n != 7 {
		t.Fatalf("loaded %d rows, want 7", n)
	}
	if repo.copies != 3 {
		t.Fatalf("copy calls = %d, want 3", repo.copies)
	}
	if len(repo.execs) != 1 || !strings.HasPrefix(repo.execs[0], `CREATE TABLE "test_env"."customers"`) {
		t.Fatalf("unexpected DDL: %v", repo.execs)
	}
	if got := len(repo.tables["test_env.customers"]); got != 7 {
		t.Fatalf("table holds %d rows, want 7", got)
	}
}

func TestLoadFrame_ExistingTable(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.tables["t"] = [][]any{{"old", "row"}}
	f := customersFrame(t, 2)

	_, err := LoadFrame(context.Background(), repo, "t", f, LoadOptions{})
	if !errors.Is(err, ErrTableExists) {
		t.Fatalf("want ErrTableExists, got %v", err)
	}
	if len(repo.execs) != 0 {
		t.Fatalf("no DDL expected, got %v", repo.execs)
	}

	if _, err := LoadFrame(context.Background(), repo, "t", f, LoadOptions{Replace: true}); err != nil {
		t.Fatalf("LoadFrame replace: %v", err)
	}
	if len(repo.execs) != 2 || !strings.HasPrefix(repo.execs[0], "DROP TABLE IF EXISTS") {
		t.Fatalf("expected drop then create, got %v", repo.execs)
	}
}

func TestLoadFrame_CopyError(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.copyErr = errors.New("disk full")

	_, err := LoadFrame(context.Background(), repo, "t", customersFrame(t, 4), LoadOptions{BatchSize: 2})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("want copy error, got %v", err)
	}
}

func TestLoadFrame_NilRepo(t *testing.T) {
	t.Parallel()
	if _, err := LoadFrame(context.Background(), nil, "t", customersFrame(t, 1), LoadOptions{}); err == nil {
		t.Fatal("expected error for nil repository")
	}
}
