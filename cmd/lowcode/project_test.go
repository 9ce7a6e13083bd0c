package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recera/lowcode/pkg/script"
)

const homePage = `name: home
tree:
  - name: span
    key: k1
    directives:
      text:
        type: variable
        value: [count]
globals:
  variable:
    count:
      type: number
      value: 1
`

// newTestProject lays out pages/home.yaml and a lowcode.yaml with a cache
// inside a temp dir.
func newTestProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "pages"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "pages", "home.yaml"), []byte(homePage), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := "cache:\n  enabled: true\n  dir: .cache\n"
	if err := os.WriteFile(filepath.Join(root, "lowcode.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := loadProject(&globalFlags{cwd: root})
	if err != nil {
		t.Fatalf("Failed to load project: %v", err)
	}
	return p
}

func TestBuildUsesCache(t *testing.T) {
	p := newTestProject(t)
	files, err := p.pageFiles()
	if err != nil || len(files) != 1 {
		t.Fatalf("Expected 1 page file, got %v %v", files, err)
	}

	b := newBuilder(p, false)
	defer b.close()
	if b.cache == nil {
		t.Fatal("Expected cache to be enabled")
	}

	first, err := b.build(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || first.Name != "home" {
		t.Errorf("Unexpected first build %+v", first)
	}
	if !strings.Contains(first.Document, `<span v-text="count"></span>`) {
		t.Errorf("Expected bound text, got\n%s", first.Document)
	}

	second, err := b.build(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.Document != first.Document {
		t.Error("Expected second build served from cache")
	}

	p.cfg.Generate.Style = string(script.Options)
	third, err := b.build(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if third.Cached || third.Key == first.Key {
		t.Error("Expected style change to miss the cache")
	}

	if n := b.invalidate(files[0]); n != 2 {
		t.Errorf("Expected 2 entries invalidated, got %d", n)
	}

	dst, err := b.write(first)
	if err != nil {
		t.Fatal(err)
	}
	if dst != filepath.Join(p.root, "dist", "home.vue") {
		t.Errorf("Unexpected output path %s", dst)
	}
	if got, _ := os.ReadFile(dst); string(got) != first.Document {
		t.Error("Expected written document to match")
	}
}

func TestLoadProjectRegistry(t *testing.T) {
	p := newTestProject(t)
	if p.regHash != "builtin" {
		t.Errorf("Expected builtin registry, got %s", p.regHash)
	}

	reg := filepath.Join(p.root, "registry.yaml")
	os.WriteFile(reg, []byte("components:\n  - name: MyCard\n    emits: [open]\n"), 0644)
	custom, err := loadProject(&globalFlags{cwd: p.root, registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := custom.reg.Lookup("MyCard"); !ok {
		t.Error("Expected MyCard in custom registry")
	}
	if custom.regPath != reg || custom.regHash == "builtin" {
		t.Errorf("Unexpected registry state %s %s", custom.regPath, custom.regHash)
	}

	os.WriteFile(reg, []byte("components:\n  - emits: [open]\n"), 0644)
	if _, err := loadProject(&globalFlags{cwd: p.root, registry: reg}); err == nil {
		t.Error("Expected error for component without name")
	}
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func post(t *testing.T, srv *httptest.Server, path, body string) int {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestDevServer(t *testing.T) {
	p := newTestProject(t)
	s := newDevServer(p, true)
	defer s.live.Close()
	if err := s.rebuildAll(); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s.routes())
	defer srv.Close()

	code, doc := get(t, srv, "/pages/home.vue")
	if code != http.StatusOK || !strings.Contains(doc, "<template>") {
		t.Errorf("Expected document, got %d %q", code, doc)
	}
	code, preview := get(t, srv, "/pages/home.json")
	if code != http.StatusOK || !strings.Contains(preview, `"text":1`) {
		t.Errorf("Expected resolved preview, got %d %s", code, preview)
	}
	if code, _ := get(t, srv, "/pages/missing.vue"); code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
	if _, index := get(t, srv, "/"); !strings.HasPrefix(index, "home\t") {
		t.Errorf("Expected index entry, got %q", index)
	}

	before, _ := s.live.Latest("home")
	if code := post(t, srv, "/state/home", `{"count": 5}`); code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", code)
	}
	after, _ := s.live.Latest("home")
	if after.Version <= before.Version {
		t.Errorf("Expected a new version after a state change, got %d then %d", before.Version, after.Version)
	}
	if !strings.Contains(after.Preview, `"text":5`) {
		t.Errorf("Expected preview to follow state, got %s", after.Preview)
	}

	if code := post(t, srv, "/state/home", `{"nope": 1}`); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown variable, got %d", code)
	}
	if code := post(t, srv, "/state/home", `not json`); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad body, got %d", code)
	}
}

func TestDevServerKeepsLastGoodDocument(t *testing.T) {
	p := newTestProject(t)
	s := newDevServer(p, true)
	defer s.live.Close()
	path := filepath.Join(p.pagesDir(), "home.yaml")
	s.rebuild(path)
	good, _ := s.live.Latest("home")

	os.WriteFile(path, []byte("tree: [\n"), 0644)
	s.rebuild(path)
	bad, _ := s.live.Latest("home")
	if bad.Error == "" {
		t.Error("Expected error to be published")
	}
	if bad.Document != good.Document || bad.Version != good.Version+1 {
		t.Errorf("Expected last good document at the next version, got v%d", bad.Version)
	}

	os.Remove(path)
	s.remove(path)
	if _, ok := s.page("home"); ok {
		t.Error("Expected page state dropped")
	}
	if _, err := os.Stat(filepath.Join(p.outDir(), "home.vue")); !os.IsNotExist(err) {
		t.Error("Expected generated document removed")
	}
}
