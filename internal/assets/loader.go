package assets

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yegors/skylanes/pkg/logger"
)

// ErrUnknownModel is returned for a model name that is not configured
var ErrUnknownModel = errors.New("unknown model")

// Config lists the flight models and where to find them
type Config struct {
	Dir       string
	Models    []string // File names under Dir; a flight gets one by id
	CacheSize int      // Models kept in memory
}

// Asset is a loaded model file
type Asset struct {
	Name     string
	Path     string
	Data     []byte
	LoadedAt time.Time
}

// Handle is a model that may still be loading
type Handle struct {
	name  string
	done  chan struct{}
	asset *Asset
	err   error
}

// Ready reports whether loading has finished. It never blocks.
func (h *Handle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns the load error, if any, once Ready is true
func (h *Handle) Err() error {
	if !h.Ready() {
		return nil
	}
	return h.err
}

// Asset returns the loaded model, or nil if loading is unfinished or failed
func (h *Handle) Asset() *Asset {
	if !h.Ready() {
		return nil
	}
	return h.asset
}

// Name is the model file chosen for the flight
func (h *Handle) Name() string {
	return h.name
}

// Wait blocks until loading finishes
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Loader reads model files in the background and caches them by path
type Loader struct {
	cfg    Config
	cache  *lru.Cache[string, *Asset]
	logger *logger.Logger
	wg     sync.WaitGroup
}

// NewLoader creates a loader
func NewLoader(cfg Config, log *logger.Logger) (*Loader, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 16
	}
	cache, err := lru.New[string, *Asset](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset cache: %w", err)
	}
	return &Loader{
		cfg:    cfg,
		cache:  cache,
		logger: log.Named("assets"),
	}, nil
}

// ModelFor picks the model a flight uses. The same id always gets the same
// model.
func (l *Loader) ModelFor(id string) string {
	if len(l.cfg.Models) == 0 {
		return ""
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return l.cfg.Models[h.Sum32()%uint32(len(l.cfg.Models))]
}

// Load starts loading the model for a flight and returns immediately
func (l *Loader) Load(id string) *Handle {
	name := l.ModelFor(id)
	h := &Handle{name: name, done: make(chan struct{})}

	if name == "" {
		h.err = fmt.Errorf("no models configured")
		close(h.done)
		return h
	}

	path := filepath.Join(l.cfg.Dir, name)
	if asset, ok := l.cache.Get(path); ok {
		h.asset = asset
		close(h.done)
		return h
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(h.done)
		h.asset, h.err = l.read(name, path)
	}()
	return h
}

// Model returns a configured model by file name, reading it if it is not
// cached. Names outside the configured list are rejected.
func (l *Loader) Model(name string) (*Asset, error) {
	if !slices.Contains(l.cfg.Models, name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	path := filepath.Join(l.cfg.Dir, name)
	if asset, ok := l.cache.Get(path); ok {
		return asset, nil
	}
	return l.read(name, path)
}

func (l *Loader) read(name, path string) (*Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", name, err)
	}
	asset := &Asset{Name: name, Path: path, Data: data, LoadedAt: time.Now().UTC()}
	l.cache.Add(path, asset)

	l.logger.Debug("Loaded model",
		logger.String("name", name),
		logger.Int("bytes", len(data)))
	return asset, nil
}

// Cached returns the number of models held in memory
func (l *Loader) Cached() int {
	return l.cache.Len()
}

// Close waits for in-flight loads to finish
func (l *Loader) Close() {
	l.wg.Wait()
}
