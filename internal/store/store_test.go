package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "azdrill.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestRecordAndListResults(t *testing.T) {
	st := openTestStore(t)
	base := time.Unix(1_700_000_000, 0)
	ctx := context.Background()
	for i, label := range []string{"Fruit", "Cafes", "Fruit"} {
		at := base.Add(time.Duration(i) * time.Hour)
		st.now = func() time.Time { return at }
		if err := st.Record(ctx, label, "Completed"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := st.Results(ctx)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 results, got %d", len(all))
	}
	if !all[0].RecordedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected newest first, got %v", all[0].RecordedAt)
	}
	if all[0].ID == "" || all[0].ID == all[1].ID {
		t.Fatalf("expected unique ids: %+v", all)
	}

	fruit, err := st.ListResults(ctx, Filter{Label: "Fruit"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(fruit) != 2 {
		t.Fatalf("expected 2 Fruit results, got %d", len(fruit))
	}

	since := base.Add(30 * time.Minute)
	last, err := st.ListResults(ctx, Filter{Since: &since, Last: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(last) != 1 || last[0].Label != "Fruit" {
		t.Fatalf("unexpected filtered results: %+v", last)
	}
}
