package cache

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func open(t *testing.T, cfg Config) *Cache {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_GetPut(t *testing.T) {
	c := open(t, Config{MaxSize: 1 << 20, MaxAge: time.Hour})

	key := Key("<page>", "composition")
	data := []byte("<template>\n</template>\n")
	if err := c.Put(key, "home", data); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Document not found in cache")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Expected %q, got %q", data, got)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Found missing key")
	}

	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.EntryCount != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestCache_Delete(t *testing.T) {
	c := open(t, Config{})
	if err := c.Put("k", "home", []byte("doc")); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected entry to be deleted")
	}
	if c.GetStats().TotalSize != 0 {
		t.Errorf("Expected size 0, got %d", c.GetStats().TotalSize)
	}
}

func TestCache_Eviction(t *testing.T) {
	tests := []struct {
		name     string
		strategy EvictionStrategy
		touch    []string
		evicted  string
	}{
		{"lru", LRU, []string{"a", "b"}, "c"},
		{"lfu", LFU, []string{"a", "a", "c"}, "b"},
		{"fifo", FIFO, []string{"a", "b"}, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := open(t, Config{MaxSize: 30, Strategy: tt.strategy})
			for _, k := range []string{"a", "b", "c"} {
				if err := c.Put(k, k, bytes.Repeat([]byte(k), 10)); err != nil {
					t.Fatal(err)
				}
				time.Sleep(2 * time.Millisecond)
			}
			for _, k := range tt.touch {
				c.Get(k)
				time.Sleep(2 * time.Millisecond)
			}

			if err := c.Put("d", "d", bytes.Repeat([]byte("d"), 10)); err != nil {
				t.Fatal(err)
			}
			for _, e := range c.Entries() {
				if e.Key == tt.evicted {
					t.Errorf("Expected %s to be evicted", tt.evicted)
				}
			}
			if c.GetStats().Evictions != 1 {
				t.Errorf("Expected 1 eviction, got %d", c.GetStats().Evictions)
			}
		})
	}
}

func TestCache_Expiration(t *testing.T) {
	c := open(t, Config{MaxAge: 10 * time.Millisecond})
	if err := c.Put("k", "home", []byte("doc")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestCache_Dependencies(t *testing.T) {
	c := open(t, Config{})
	pages := filepath.Join("site", "pages")
	c.Put("home", "home", []byte("1"), filepath.Join(pages, "home.yaml"), "registry.yaml")
	c.Put("about", "about", []byte("2"), filepath.Join(pages, "about.yaml"), "registry.yaml")
	c.Put("other", "other", []byte("3"), filepath.Join("site", "pagesx", "other.yaml"))

	if n := c.InvalidateByDependency(filepath.Join(pages, "home.yaml")); n != 1 {
		t.Errorf("Expected 1 invalidated, got %d", n)
	}
	if n := c.InvalidateByDependency(pages); n != 1 {
		t.Errorf("Expected directory prefix to invalidate 1, got %d", n)
	}
	if _, ok := c.Get("other"); !ok {
		t.Error("Expected sibling directory to survive")
	}
}

func TestCache_Persistence(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("k", "home", []byte("doc")); err != nil {
		t.Fatal(err)
	}
	c.Close()

	reopened := open(t, Config{Dir: dir})
	got, ok := reopened.Get("k")
	if !ok || string(got) != "doc" {
		t.Errorf("Expected persisted entry, got %q %v", got, ok)
	}
	if reopened.GetStats().TotalSize != 3 {
		t.Errorf("Expected size restored, got %d", reopened.GetStats().TotalSize)
	}
}

func TestCache_Clear(t *testing.T) {
	c := open(t, Config{})
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprint(i), "p", []byte(fmt.Sprint("doc", i)))
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if len(c.Entries()) != 0 || c.GetStats().EntryCount != 0 {
		t.Error("Expected empty cache")
	}
	if err := c.Put("again", "p", []byte("x")); err != nil {
		t.Errorf("Expected cache usable after clear: %v", err)
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := open(t, Config{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprint("k", i%4)
			for j := 0; j < 20; j++ {
				c.Put(key, key, []byte(fmt.Sprint(i, j)))
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if n := len(c.Entries()); n != 4 {
		t.Errorf("Expected 4 entries, got %d", n)
	}
}

func TestKeyAndStrategy(t *testing.T) {
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("Expected input boundaries to affect the key")
	}
	if Key("a") != Key("a") {
		t.Error("Expected stable keys")
	}
	if s, err := ParseStrategy("LFU"); err != nil || s != LFU {
		t.Errorf("Expected LFU, got %v %v", s, err)
	}
	if _, err := ParseStrategy("random"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}
