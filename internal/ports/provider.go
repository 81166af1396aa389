package ports

import (
	"fmt"
	"sync"

	"github.com/brunoga/deep"

	"github.com/yegors/skylanes/internal/route"
	"github.com/yegors/skylanes/pkg/logger"
)

// Store persists the catalogue between runs
type Store interface {
	ReplaceAll(ports []route.Port) error
	GetAll() ([]route.Port, error)
}

// Config selects where ports come from
type Config struct {
	CSVPath string   // OurAirports CSV; empty uses the built-in catalogue
	Types   []string // Airport types to keep, e.g. large_airport
}

// Provider serves the current port catalogue. The catalogue can be
// reloaded at any time; readers always get their own copy.
type Provider struct {
	cfg    Config
	store  Store
	ports  []route.Port
	mutex  sync.RWMutex
	logger *logger.Logger
}

// NewProvider creates a provider. store may be nil.
func NewProvider(cfg Config, store Store, log *logger.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		store:  store,
		logger: log.Named("ports"),
	}
}

// Reload re-reads the CSV and replaces the catalogue. If the CSV cannot be
// read the last stored catalogue is used instead.
func (p *Provider) Reload() error {
	result, err := LoadCSVFile(p.cfg.CSVPath, p.cfg.Types)
	if err != nil {
		if p.store == nil {
			return err
		}
		p.logger.Error("Failed to load ports, falling back to stored catalogue",
			logger.String("path", p.cfg.CSVPath),
			logger.Error(err))

		stored, storeErr := p.store.GetAll()
		if storeErr != nil {
			return fmt.Errorf("%w (stored catalogue unavailable: %v)", err, storeErr)
		}
		if len(stored) == 0 {
			return err
		}
		p.set(stored)
		return nil
	}

	if result.Skipped > 0 {
		p.logger.Warn("Skipped ports with invalid rows",
			logger.Int("skipped", result.Skipped))
	}

	if p.store != nil {
		if err := p.store.ReplaceAll(result.Ports); err != nil {
			p.logger.Error("Failed to store ports", logger.Error(err))
		}
	}

	p.set(result.Ports)
	return nil
}

func (p *Provider) set(ports []route.Port) {
	p.mutex.Lock()
	p.ports = deep.MustCopy(ports)
	p.mutex.Unlock()

	p.logger.Info("Loaded ports", logger.Int("count", len(ports)))
}

// Ports returns a copy of the catalogue
func (p *Provider) Ports() []route.Port {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return deep.MustCopy(p.ports)
}

// Lookup finds a port by ident
func (p *Provider) Lookup(ident string) (route.Port, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	for _, port := range p.ports {
		if port.Ident == ident {
			return port, true
		}
	}
	return route.Port{}, false
}

// Count returns the catalogue size
func (p *Provider) Count() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return len(p.ports)
}
