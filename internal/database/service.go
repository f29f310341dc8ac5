// Package database is the single entry point to persistence. It owns the
// active adapter, guards initialization against concurrent callers and
// degrades to a disconnected state instead of failing the process.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/constants"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/migration"
	"github.com/loykin/catalogdb/internal/schema"
	"github.com/loykin/catalogdb/internal/store"
	"github.com/loykin/catalogdb/internal/store/connector"
	"golang.org/x/sync/singleflight"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateDegraded      State = "degraded"
)

var (
	ErrNotInitialized = errors.New("database is not initialized")
	// ErrClosed is returned by an initialization attempt that finished after Close.
	ErrClosed = errors.New("database closed during initialization")
)

const initKey = "initialize"

// Service is safe for concurrent use.
type Service struct {
	env            dbconfig.Env
	cwd            string
	factory        store.Func
	migrations     schema.Source
	migrationTable string
	logger         *common.Logger

	group singleflight.Group

	mu         sync.RWMutex
	state      State
	adapter    connector.Adapter
	cfg        dbconfig.Config
	lastErr    string
	generation uint64
}

func New(opts ...Option) *Service {
	cwd, _ := os.Getwd()
	s := &Service{
		env:            dbconfig.OSEnv,
		cwd:            cwd,
		factory:        store.New,
		migrations:     schema.For,
		migrationTable: constants.DefaultSchemaMigrationsTable,
		logger:         common.GetLogger(),
		state:          StateUninitialized,
		cfg:            dbconfig.Disabled(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("database")
	return s
}

// Initialize connects and migrates using the environment. Failures leave the
// service degraded and are logged, not returned; only an unsupported backend
// kind is returned since no environment change can fix it.
func (s *Service) Initialize(ctx context.Context) error {
	if s.State() == StateReady {
		return nil
	}
	err := s.run(ctx, nil)
	if err == nil || errors.Is(err, ErrClosed) {
		return nil
	}
	if errors.Is(err, dbconfig.ErrUnsupportedKind) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}

// InitializeStrict is Initialize for setup flows: it uses cfg when non-nil
// instead of the environment and returns every failure. A ready service is
// left alone when cfg is nil or matches the active configuration.
func (s *Service) InitializeStrict(ctx context.Context, cfg *dbconfig.Config) error {
	if s.State() == StateReady && (cfg == nil || s.Config() == normalize(*cfg)) {
		return nil
	}
	if err := s.run(ctx, cfg); err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	return nil
}

func normalize(cfg dbconfig.Config) dbconfig.Config {
	cfg.ApplyDefaults()
	return cfg
}

// run joins the in-flight attempt of the current generation or starts one.
// Attempts left over from before a Close are never joined. A caller with an
// explicit configuration waits out an attempt it did not start and then runs
// its own.
func (s *Service) run(ctx context.Context, override *dbconfig.Config) error {
	for {
		gen := s.currentGeneration()
		var ran atomic.Bool
		ch := s.group.DoChan(initKey+"/"+strconv.FormatUint(gen, 10), func() (any, error) {
			ran.Store(true)
			return nil, s.attempt(context.WithoutCancel(ctx), override, gen)
		})
		select {
		case res := <-ch:
			if override == nil || ran.Load() {
				return res.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// attempt runs one initialization from resolution to migrations.
func (s *Service) attempt(ctx context.Context, override *dbconfig.Config, gen uint64) error {
	ready, err := s.begin(gen, override == nil)
	if err != nil || ready {
		return err
	}

	var cfg dbconfig.Config
	if override != nil {
		cfg = normalize(*override)
	} else {
		cfg, err = dbconfig.Resolve(s.env, s.cwd)
		if err != nil {
			return s.fail(gen, cfg, err)
		}
	}
	if err := cfg.Check(); err != nil {
		return s.fail(gen, cfg, err)
	}
	if cfg.Kind == dbconfig.KindDisabled {
		s.logger.Info("database disabled, using in-memory fallback")
		return s.commit(gen, cfg, nil)
	}

	adapter, err := s.factory(cfg)
	if err != nil {
		return s.fail(gen, cfg, err)
	}
	if adapter == nil {
		s.logger.Info("no adapter for configuration, using in-memory fallback", "config", cfg)
		return s.commit(gen, cfg, nil)
	}

	started := time.Now()
	s.logger.Debug("connecting", "config", cfg)
	if err := adapter.Initialize(ctx); err != nil {
		_ = adapter.Close()
		return s.fail(gen, cfg, err)
	}

	list, err := s.migrations(cfg.Kind)
	if err != nil {
		_ = adapter.Close()
		return s.fail(gen, cfg, err)
	}
	runner := migration.NewRunner(adapter, migration.WithTable(s.migrationTable))
	applied, err := runner.Run(ctx, list)
	if err != nil {
		_ = adapter.Close()
		return s.fail(gen, cfg, err)
	}

	if err := s.commit(gen, cfg, adapter); err != nil {
		_ = adapter.Close()
		return err
	}
	s.logger.Info("database ready", "config", cfg, "migrations_applied", len(applied), "duration", time.Since(started))
	return nil
}

func (s *Service) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// begin marks the attempt of generation gen started. A lenient attempt that
// finds the service already ready has nothing to do.
func (s *Service) begin(gen uint64, lenient bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false, ErrClosed
	}
	if lenient && s.state == StateReady {
		return true, nil
	}
	s.state = StateInitializing
	return false, nil
}

// commit installs adapter, or records the disabled state when it is nil.
func (s *Service) commit(gen uint64, cfg dbconfig.Config, adapter connector.Adapter) error {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return ErrClosed
	}
	old := s.adapter
	s.adapter = adapter
	s.cfg = cfg
	s.lastErr = ""
	if adapter != nil {
		s.state = StateReady
	} else {
		s.state = StateDegraded
	}
	s.mu.Unlock()

	if old != nil && old != adapter {
		if err := old.Close(); err != nil {
			s.logger.Warn("failed to close previous adapter", "error", err)
		}
	}
	return nil
}

// fail records err and returns it. A service that still holds a working
// adapter from an earlier attempt stays ready.
func (s *Service) fail(gen uint64, cfg dbconfig.Config, err error) error {
	masked := common.MaskError(err, cfg.Password)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return ErrClosed
	}
	s.lastErr = masked
	if s.adapter != nil {
		s.state = StateReady
		s.logger.Warn("database reconfiguration failed, keeping active connection", "config", cfg, "error", masked)
		return err
	}
	// a resolution failure leaves cfg zero so no backend is reported
	s.cfg = cfg
	s.state = StateDegraded
	s.logger.Warn("database unavailable, continuing without persistence", "config", cfg, "error", masked)
	return err
}

func (s *Service) active() connector.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adapter
}

// Query runs one statement on the active adapter.
func (s *Service) Query(ctx context.Context, query string, args ...any) (*connector.Result, error) {
	a := s.active()
	if a == nil {
		return nil, ErrNotInitialized
	}
	return a.Query(ctx, query, args...)
}

// Transaction runs fn in a transaction on the active adapter.
func (s *Service) Transaction(ctx context.Context, fn connector.TxFunc) error {
	a := s.active()
	if a == nil {
		return ErrNotInitialized
	}
	return a.Transaction(ctx, fn)
}

// HealthCheck asks the active adapter. Without one it reports
// disconnected with the backend kind and the last initialization error.
func (s *Service) HealthCheck(ctx context.Context) connector.Health {
	s.mu.RLock()
	a, cfg, lastErr, state := s.adapter, s.cfg, s.lastErr, s.state
	s.mu.RUnlock()

	if a != nil {
		return a.HealthCheck(ctx)
	}
	d := connector.DetailsFor(cfg)
	switch {
	case lastErr != "":
		d.Error = lastErr
	case cfg.Kind == dbconfig.KindDisabled && state == StateDegraded:
		d.Error = "database disabled"
	default:
		d.Error = ErrNotInitialized.Error()
	}
	return connector.Health{Status: connector.StatusDisconnected, Details: d}
}

// IsConnected reports whether an adapter is held.
func (s *Service) IsConnected() bool {
	a := s.active()
	return a != nil && a.IsConnected()
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Config returns the configuration of the last attempt.
func (s *Service) Config() dbconfig.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Adapter returns the active adapter or nil.
func (s *Service) Adapter() connector.Adapter {
	return s.active()
}

// Migrations returns the runner and migration list for the active backend.
func (s *Service) Migrations() (*migration.Runner, []migration.Migration, error) {
	a := s.active()
	if a == nil {
		return nil, nil, ErrNotInitialized
	}
	list, err := s.migrations(a.Kind())
	if err != nil {
		return nil, nil, err
	}
	return migration.NewRunner(a, migration.WithTable(s.migrationTable)), list, nil
}

// Close releases the adapter and returns the service to uninitialized. An
// attempt still in flight discards its adapter when it finishes.
func (s *Service) Close() error {
	s.mu.Lock()
	a := s.adapter
	s.adapter = nil
	s.generation++
	s.state = StateUninitialized
	s.lastErr = ""
	s.mu.Unlock()

	if a == nil {
		return nil
	}
	if err := a.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.logger.Debug("database closed")
	return nil
}
