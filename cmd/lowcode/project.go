package main

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/recera/lowcode/cmd/lowcode/internal/config"
	"github.com/recera/lowcode/internal/cache"
	"github.com/recera/lowcode/pkg/compiler"
	"github.com/recera/lowcode/pkg/model"
	"github.com/recera/lowcode/pkg/registry"
)

// project is a loaded lowcode.yaml plus the registry it names.
type project struct {
	root    string
	cfg     *config.Config
	reg     *registry.Registry
	regPath string
	regHash string
}

func loadProject(flags *globalFlags) (*project, error) {
	root, err := filepath.Abs(flags.cwd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", config.FileName, err)
	}
	if flags.registry != "" {
		if cfg.Registry, err = filepath.Abs(flags.registry); err != nil {
			return nil, err
		}
	}

	p := &project{root: root, cfg: cfg}
	if err := p.loadRegistry(); err != nil {
		return nil, err
	}
	return p, nil
}

// loadRegistry (re)reads the configured registry; none configured means the
// built-in catalog.
func (p *project) loadRegistry() error {
	if p.cfg.Registry == "" {
		p.reg = registry.Builtin()
		p.regPath = ""
		p.regHash = "builtin"
		return nil
	}
	path := p.resolve(p.cfg.Registry)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read registry: %w", err)
	}
	reg, err := registry.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	p.reg, p.regPath, p.regHash = reg, path, cache.Key(string(data))
	return nil
}

// resolve makes a configured path absolute against the project root.
func (p *project) resolve(path string) string { return config.Resolve(p.root, path) }

func (p *project) pagesDir() string { return p.resolve(p.cfg.PagesDir) }
func (p *project) outDir() string   { return p.resolve(p.cfg.OutDir) }

func (p *project) options() compiler.Options {
	return compiler.Options{
		Style:    p.cfg.ScriptStyle(),
		Class:    p.cfg.ClassMode(),
		Minify:   p.cfg.Generate.Minify,
		Registry: p.reg,
	}
}

// pageFiles lists every page file under the pages directory.
func (p *project) pageFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(p.pagesDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != p.pagesDir() && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && isPageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pages: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func isPageFile(path string) bool {
	_, err := model.FormatFor(path)
	return err == nil
}

// rel shortens path for status lines.
func (p *project) rel(path string) string {
	if r, err := filepath.Rel(p.root, path); err == nil && !strings.HasPrefix(r, "..") {
		return r
	}
	return path
}

// builder turns page files into documents, going through the output cache
// when one is configured.
type builder struct {
	*project
	cache *cache.Cache
}

// buildResult is one generated page.
type buildResult struct {
	Name     string
	Path     string
	Page     *model.Page
	Document string
	Key      string
	Cached   bool
}

func newBuilder(p *project, noCache bool) *builder {
	b := &builder{project: p}
	if p.cfg.Cache.Enabled && !noCache {
		c, err := cache.New(p.cfg.CacheConfig(p.root))
		if err != nil {
			log.Printf("⚠️  Failed to initialize output cache: %v", err)
		} else {
			b.cache = c
		}
	}
	return b
}

func (b *builder) close() {
	if b.cache != nil {
		b.cache.Close()
	}
}

// cacheKey covers everything that changes the generated document.
func (b *builder) cacheKey(data []byte, opts compiler.Options) string {
	return cache.Key(string(data), string(opts.Style), strconv.Itoa(int(opts.Class)), strconv.FormatBool(opts.Minify), b.regHash)
}

func (b *builder) build(path string) (*buildResult, error) {
	format, err := model.FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	page, err := model.Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if page.Name == "" {
		page.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	opts := b.options()
	res := &buildResult{Name: page.Name, Path: path, Page: page, Key: b.cacheKey(data, opts)}
	if b.cache != nil {
		if doc, ok := b.cache.Get(res.Key); ok {
			res.Document, res.Cached = string(doc), true
			return res, nil
		}
	}

	out, err := compiler.Generate(page, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Document = out.Document()

	if b.cache != nil {
		deps := []string{path}
		if b.regPath != "" {
			deps = append(deps, b.regPath)
		}
		if err := b.cache.Put(res.Key, page.Name, []byte(res.Document), deps...); err != nil {
			log.Printf("⚠️  Failed to cache %s: %v", page.Name, err)
		}
	}
	return res, nil
}

// write stores a result as <outDir>/<name>.vue and returns that path.
func (b *builder) write(res *buildResult) (string, error) {
	dst := filepath.Join(b.outDir(), res.Name+".vue")
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	return dst, os.WriteFile(dst, []byte(res.Document), 0644)
}

// invalidate drops cached documents depending on path.
func (b *builder) invalidate(path string) int {
	if b.cache == nil {
		return 0
	}
	return b.cache.InvalidateByDependency(path)
}
