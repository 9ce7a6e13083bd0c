package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recera/lowcode/pkg/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePage(text string) *model.Page {
	n := model.NewNode("span")
	n.Key, n.ID = "k1", "k1"
	n.CSS.Opacity = "50"
	txt := model.String(text)
	n.Directives.Text = &txt
	p := &model.Page{Name: "home", Tree: []*model.Node{n}}
	p.Globals.Variable.Set("count", model.Number(1))
	return p
}

func TestSaveVersions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first, created, err := s.Save(ctx, samplePage("a"), "initial")
	if err != nil || !created {
		t.Fatalf("Expected first save to create, got %v %v", created, err)
	}
	if first.Version != 1 {
		t.Errorf("Expected version 1, got %d", first.Version)
	}

	same, created, err := s.Save(ctx, samplePage("a"), "again")
	if err != nil {
		t.Fatal(err)
	}
	if created || same.Version != 1 || same.Message != "initial" {
		t.Errorf("Expected unchanged page to reuse version 1, got %+v %v", same, created)
	}

	second, created, err := s.Save(ctx, samplePage("b"), "edit")
	if err != nil || !created || second.Version != 2 {
		t.Fatalf("Expected version 2, got %+v %v %v", second, created, err)
	}

	list, err := s.List(ctx, "home")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Version != 2 || list[1].Version != 1 {
		t.Errorf("Expected newest first, got %+v", list)
	}
	if list[0].Data != nil {
		t.Error("Expected List to omit data")
	}
}

func TestSaveRequiresName(t *testing.T) {
	s := openStore(t)
	if _, _, err := s.Save(context.Background(), &model.Page{}, ""); err == nil {
		t.Error("Expected error for unnamed page")
	}
}

func TestSnapshotsAreCompact(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	snap, _, err := s.Save(ctx, samplePage("a"), "")
	if err != nil {
		t.Fatal(err)
	}
	data := string(snap.Data)
	if !strings.Contains(data, `"opacity":"50"`) {
		t.Errorf("Expected changed style key in %s", data)
	}
	if strings.Contains(data, "constX") {
		t.Errorf("Expected default style keys dropped in %s", data)
	}

	p, err := s.Restore(ctx, "home", 0)
	if err != nil {
		t.Fatal(err)
	}
	n := p.Find("k1")
	if n == nil {
		t.Fatal("Expected node k1 after restore")
	}
	if n.CSS.Opacity != "50" || n.CSS.ConstX != "left" {
		t.Errorf("Expected restored full style, got opacity=%q constX=%q", n.CSS.Opacity, n.CSS.ConstX)
	}
	if v, ok := p.Globals.Variable.Get("count"); !ok || !model.Equal(v, model.Number(1)) {
		t.Errorf("Expected globals restored, got %+v", v)
	}
}

func TestGetAndPrune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c", "d"} {
		if _, _, err := s.Save(ctx, samplePage(text), text); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := s.Get(ctx, "home", 2)
	if err != nil || snap.Message != "b" {
		t.Errorf("Expected version 2 message b, got %+v %v", snap, err)
	}
	if _, err := s.Get(ctx, "missing", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	n, err := s.Prune(ctx, "home", 2)
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 pruned, got %d %v", n, err)
	}
	if _, err := s.Get(ctx, "home", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected version 1 pruned, got %v", err)
	}

	// Versions keep counting after a prune.
	next, _, err := s.Save(ctx, samplePage("e"), "")
	if err != nil || next.Version != 5 {
		t.Errorf("Expected version 5, got %+v %v", next, err)
	}
}

func TestReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "snapshots.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Save(context.Background(), samplePage("a"), ""); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Expected migrations to be idempotent: %v", err)
	}
	defer reopened.Close()
	list, err := reopened.List(context.Background(), "")
	if err != nil || len(list) != 1 {
		t.Errorf("Expected 1 persisted snapshot, got %d %v", len(list), err)
	}
}
