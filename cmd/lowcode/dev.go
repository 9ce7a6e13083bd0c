package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/recera/lowcode/pkg/live"
	"github.com/recera/lowcode/pkg/reactive"
	"github.com/recera/lowcode/pkg/resolve"
)

type devServer struct {
	*builder
	live     *live.Server
	watcher  *fsnotify.Watcher
	resolver *resolve.Resolver
	debounce time.Duration

	mu     sync.Mutex
	pages  map[string]*pageState
	byPath map[string]string
}

// pageState is the last good build of a page together with the variable
// scope its preview is resolved against.
type pageState struct {
	name     string
	res      *buildResult
	resolver *resolve.Resolver
	scope    *resolve.Scope
	watch    *reactive.Watcher
}

func newDevCommand(flags *globalFlags) *cobra.Command {
	var port int
	var host string
	var noCache bool
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Watches the pages directory, regenerates documents on change and pushes
them to connected previews over WebSocket.

  GET  /                   page index
  GET  /pages/<name>.vue   latest document
  GET  /pages/<name>.json  resolved preview of the node tree
  POST /state/<name>       set page variables (JSON object)
  WS   /live/<name>        live updates`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(flags)
			if err != nil {
				return err
			}

			// CLI takes precedence over lowcode.yaml
			if port != 0 {
				p.cfg.Dev.Port = port
			}
			if host != "" {
				p.cfg.Dev.Host = host
			}
			if debounce != 0 {
				p.cfg.Dev.Debounce = debounce
			}
			if err := p.cfg.Validate(); err != nil {
				return err
			}
			return runDev(p, noCache)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run the dev server on")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind the dev server to")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the output cache")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Quiet period before rebuilding after a change")

	return cmd
}

func newDevServer(p *project, noCache bool) *devServer {
	s := &devServer{
		builder:  newBuilder(p, noCache),
		live:     live.NewServer("/live/"),
		debounce: p.cfg.Dev.Debounce,
		pages:    make(map[string]*pageState),
		byPath:   make(map[string]string),
	}
	s.resetResolver()
	return s
}

func (s *devServer) resetResolver() {
	s.resolver = resolve.New(s.reg)
	s.resolver.SetLogger(slog.Default())
}

func runDev(p *project, noCache bool) error {
	s := newDevServer(p, noCache)
	defer s.builder.close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	s.watcher = watcher
	defer watcher.Close()

	if err := s.setupWatcher(); err != nil {
		return fmt.Errorf("failed to watch pages: %w", err)
	}

	log.Println("🔨 Building pages...")
	if err := s.rebuildAll(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.watchFiles(ctx)
	go s.logSelections(ctx)

	addr := p.cfg.Addr()
	srv := &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	log.Printf("✨ Dev server running at http://%s\n", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\n🛑 Shutting down dev server...")
		cancel()
		s.live.Close()

		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *devServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/live/", s.live)
	mux.HandleFunc("/pages/", s.servePage)
	mux.HandleFunc("/state/", s.handleState)
	mux.HandleFunc("/", s.serveIndex)
	return mux
}

func (s *devServer) setupWatcher() error {
	err := filepath.WalkDir(s.pagesDir(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.pagesDir() && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return s.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.regPath != "" {
		// Editors replace files on save, so watch the directory.
		return s.watcher.Add(filepath.Dir(s.regPath))
	}
	return nil
}

func (s *devServer) watchFiles(ctx context.Context) {
	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	var pendingEvents []fsnotify.Event

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					s.watcher.Add(event.Name)
					continue
				}
			}
			if !s.isRelevantFile(event.Name) {
				continue
			}
			pendingEvents = append(pendingEvents, event)
			debounce.Reset(s.debounce)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Println("Watcher error:", err)

		case <-debounce.C:
			events := pendingEvents
			pendingEvents = nil
			if len(events) > 0 {
				s.handleFileChanges(events)
			}
		}
	}
}

func (s *devServer) isRelevantFile(path string) bool {
	if s.regPath != "" && filepath.Clean(path) == s.regPath {
		return true
	}
	return isPageFile(path) && strings.HasPrefix(path, s.pagesDir()+string(filepath.Separator))
}

func (s *devServer) handleFileChanges(events []fsnotify.Event) {
	changed := map[string]fsnotify.Op{}
	for _, event := range events {
		changed[filepath.Clean(event.Name)] |= event.Op
	}

	if _, ok := changed[s.regPath]; ok && s.regPath != "" {
		delete(changed, s.regPath)
		if _, err := os.Stat(s.regPath); err != nil {
			log.Printf("⚠️  Registry %s removed, keeping the loaded catalog", s.rel(s.regPath))
		} else {
			if err := s.reloadRegistry(); err != nil {
				log.Printf("❌ %v", err)
			}
			return
		}
	}

	paths := make([]string, 0, len(changed))
	for path := range changed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		s.invalidate(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			s.remove(path)
			continue
		}
		s.rebuild(path)
	}
}

func (s *devServer) reloadRegistry() error {
	if err := s.loadRegistry(); err != nil {
		return err
	}
	s.invalidate(s.regPath)
	s.mu.Lock()
	s.resetResolver()
	s.mu.Unlock()
	log.Printf("📚 Registry reloaded (%d components)", len(s.reg.Names()))
	return s.rebuildAll()
}

func (s *devServer) rebuildAll() error {
	files, err := s.pageFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		s.rebuild(f)
	}
	return nil
}

func (s *devServer) rebuild(path string) {
	startTime := time.Now()
	res, err := s.build(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		name := s.byPath[path]
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		log.Printf("❌ %v", err)
		u := live.Update{Page: name, Error: err.Error()}
		if prev, ok := s.live.Latest(name); ok {
			u.Hash, u.Document, u.Preview = prev.Hash, prev.Document, prev.Preview
		}
		s.live.Publish(u)
		return
	}

	if _, err := s.write(res); err != nil {
		log.Printf("⚠️  Failed to write %s: %v", res.Name, err)
	}

	if old := s.pages[res.Name]; old != nil {
		old.watch.Stop()
	}
	st := &pageState{
		name:     res.Name,
		res:      res,
		resolver: s.resolver,
		scope:    s.resolver.NewPageScope(res.Page.Globals),
	}
	s.pages[res.Name] = st
	s.byPath[path] = res.Name
	st.watch = reactive.Watch(func() { s.publish(st) })

	note := ""
	if res.Cached {
		note = " (cached)"
	}
	log.Printf("✅ %s rebuilt in %v%s", res.Name, time.Since(startTime).Round(time.Microsecond), note)
}

// publish pushes the page document with a freshly resolved preview. It runs
// inside the page watcher, so it re-runs whenever a variable it read changes.
func (s *devServer) publish(st *pageState) {
	preview := st.resolver.Preview(st.res.Page.Tree, st.scope)
	data, err := json.Marshal(preview)
	if err != nil {
		log.Printf("⚠️  Failed to encode preview of %s: %v", st.name, err)
	}
	u := s.live.Publish(live.Update{
		Page:     st.name,
		Hash:     st.res.Key[:12],
		Document: st.res.Document,
		Preview:  string(data),
	})
	slog.Debug("published", "page", st.name, "version", u.Version, "sessions", s.live.Sessions(st.name))
}

func (s *devServer) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.byPath[path]
	if !ok {
		return
	}
	delete(s.byPath, path)
	if st := s.pages[name]; st != nil {
		st.watch.Stop()
		delete(s.pages, name)
	}
	os.Remove(filepath.Join(s.outDir(), name+".vue"))
	s.live.Publish(live.Update{Page: name, Error: "page removed"})
	log.Printf("🗑️  %s removed", name)
}

func (s *devServer) page(name string) (*pageState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.pages[name]
	return st, ok
}

func (s *devServer) servePage(w http.ResponseWriter, r *http.Request) {
	file := strings.TrimPrefix(r.URL.Path, "/pages/")
	ext := filepath.Ext(file)
	name := strings.TrimSuffix(file, ext)

	u, ok := s.live.Latest(name)
	if !ok || (u.Document == "" && u.Error != "") {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	if u.Error != "" {
		w.Header().Set("X-Lowcode-Error", u.Error)
	}

	switch ext {
	case ".vue":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, u.Document)
	case ".json":
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, u.Preview)
	default:
		http.NotFound(w, r)
	}
}

func (s *devServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, ok := s.page(strings.TrimPrefix(r.URL.Path, "/state/"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	var vars map[string]any
	if err := json.NewDecoder(r.Body).Decode(&vars); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	var rejected []string
	for name, v := range vars {
		if !st.scope.Set(name, v) {
			rejected = append(rejected, name)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		http.Error(w, "not writable: "+strings.Join(rejected, ", "), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *devServer) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	names := make([]string, 0, len(s.pages))
	for name := range s.pages {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t/pages/%s.vue\t/pages/%s.json\t/live/%s\t%d watching\n",
			name, name, name, name, s.live.Sessions(name))
	}
}

func (s *devServer) logSelections(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sel := <-s.live.Selections():
			st, ok := s.page(sel.Page)
			if !ok {
				continue
			}
			if n := st.res.Page.Find(sel.Key); n != nil {
				log.Printf("👆 %s: selected %s (%s)", sel.Page, n.Key, n.Name)
			} else {
				log.Printf("👆 %s: selected unknown node %s", sel.Page, sel.Key)
			}
		}
	}
}
