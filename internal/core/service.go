package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLoadNotFound is returned for unknown or expired load ids.
var ErrLoadNotFound = errors.New("load not found")

// DefaultLoadTimeout is the maximum duration of a feed load.
const DefaultLoadTimeout = 2 * time.Hour

// DefaultRetention is how long a finished load stays queryable.
const DefaultRetention = time.Hour

// OpenFeed is a Feed holding resources until closed.
type OpenFeed interface {
	Feed
	Close() error
}

// FeedOpener opens the feed stored at path.
type FeedOpener func(path string) (OpenFeed, error)

// LoadState is the lifecycle state of an asynchronous load.
type LoadState string

const (
	LoadRunning   LoadState = "running"
	LoadComplete  LoadState = "complete"
	LoadFailed    LoadState = "failed"
	LoadCancelled LoadState = "cancelled"
)

// LoadStatus is a snapshot of an asynchronous load.
type LoadStatus struct {
	ID           string          `json:"id"`
	Path         string          `json:"path"`
	Schema       string          `json:"schema"`
	State        LoadState       `json:"state"`
	CurrentTable string          `json:"current_table,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	Result       *FeedLoadResult `json:"result,omitempty"`
	ExtendedData bool            `json:"has_extended_data"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Loader        LoaderConfig
	Timeout       time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
	Retention     time.Duration
}

// Service runs feed loads in the background, each into its own schema over
// its own connection.
type Service struct {
	connector Connector
	open      FeedOpener
	tables    []*Table
	cfg       ServiceConfig
	limiter   *LoadLimiter
	logger    *slog.Logger

	mu    sync.RWMutex
	loads map[string]*activeLoad
}

type activeLoad struct {
	mu     sync.Mutex
	status LoadStatus
	cancel context.CancelFunc
	done   chan struct{}
}

func (a *activeLoad) snapshot() LoadStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *activeLoad) update(fn func(*LoadStatus)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.status)
}

// NewService creates a Service loading tables, in order, from feeds opened by open.
func NewService(connector Connector, open FeedOpener, tables []*Table, cfg ServiceConfig) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLoadTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	logger := cfg.Loader.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		connector: connector,
		open:      open,
		tables:    tables,
		cfg:       cfg,
		limiter:   NewLoadLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		logger:    logger,
		loads:     make(map[string]*activeLoad),
	}
}

// Tables returns the tables loaded by the service, in load order.
func (s *Service) Tables() []*Table {
	return s.tables
}

// Limiter returns the service's concurrency limiter.
func (s *Service) Limiter() *LoadLimiter {
	return s.limiter
}

// SchemaNameFor returns the schema a load with the given id writes to.
func SchemaNameFor(id string) string {
	return "feed_" + strings.ReplaceAll(id, "-", "_")
}

// StartLoad opens the feed at path and loads it in the background. It returns
// the load id, or ErrTooManyLoads if no slot frees up in time.
func (s *Service) StartLoad(ctx context.Context, path string) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	feed, err := s.open(path)
	if err != nil {
		s.limiter.Release()
		return "", fmt.Errorf("open feed: %w", err)
	}

	id := uuid.New().String()
	loadCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	load := &activeLoad{
		status: LoadStatus{
			ID:        id,
			Path:      path,
			Schema:    SchemaNameFor(id),
			State:     LoadRunning,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.loads[id] = load
	s.mu.Unlock()

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer feed.Close()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in load", "load_id", id, "panic", r)
				s.finish(load, nil, fmt.Errorf("internal error: %v", r))
			}
		}()
		s.run(loadCtx, load, feed)
	}()

	return id, nil
}

func (s *Service) run(ctx context.Context, load *activeLoad, feed Feed) {
	status := load.snapshot()
	log := s.logger.With("load_id", status.ID, "schema", status.Schema)

	store, err := s.connector.Connect(ctx, status.Schema)
	if err != nil {
		log.Error("connect failed", "error", err)
		s.finish(load, nil, err)
		return
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("close store", "error", err)
		}
	}()

	cfg := s.cfg.Loader
	cfg.Logger = log
	cfg.OnTable = func(name string) {
		load.update(func(st *LoadStatus) { st.CurrentTable = name })
	}

	log.Info("feed load started", "path", status.Path)
	result, err := NewLoader(store, cfg).LoadFeed(ctx, status.ID, feed, s.tables)
	s.finish(load, result, err)
}

func (s *Service) finish(load *activeLoad, result *FeedLoadResult, err error) {
	now := time.Now()
	first := false
	load.update(func(st *LoadStatus) {
		if st.FinishedAt != nil {
			return
		}
		first = true
		st.FinishedAt = &now
		st.CurrentTable = ""
		st.Result = result
		if result != nil {
			st.ExtendedData = result.HasExtendedData()
		}
		switch {
		case err == nil:
			st.State = LoadComplete
		case errors.Is(err, context.Canceled):
			st.State = LoadCancelled
		default:
			st.State = LoadFailed
		}
		if err != nil {
			st.Error = err.Error()
			st.ErrorCode = MapError(err).Code
		}
	})
	if !first {
		return
	}

	st := load.snapshot()
	s.logger.Info("feed load finished",
		"load_id", st.ID,
		"state", st.State,
		"duration", now.Sub(st.StartedAt).String(),
	)
	close(load.done)
	s.cleanup(st.ID, s.cfg.Retention)
}

// cleanup forgets a finished load after delay.
func (s *Service) cleanup(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.loads, id)
		s.mu.Unlock()
	})
}

func (s *Service) get(id string) (*activeLoad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	load, ok := s.loads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLoadNotFound, id)
	}
	return load, nil
}

// GetLoad returns the status of a load.
func (s *Service) GetLoad(id string) (LoadStatus, error) {
	load, err := s.get(id)
	if err != nil {
		return LoadStatus{}, err
	}
	return load.snapshot(), nil
}

// ListLoads returns every known load, newest first.
func (s *Service) ListLoads() []LoadStatus {
	s.mu.RLock()
	out := make([]LoadStatus, 0, len(s.loads))
	for _, load := range s.loads {
		out = append(out, load.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// CancelLoad stops a running load. The table in progress is rolled back;
// tables already committed stay in the schema.
func (s *Service) CancelLoad(id string) error {
	load, err := s.get(id)
	if err != nil {
		return err
	}
	load.cancel()
	return nil
}

// WaitLoad blocks until the load finishes or ctx ends.
func (s *Service) WaitLoad(ctx context.Context, id string) (LoadStatus, error) {
	load, err := s.get(id)
	if err != nil {
		return LoadStatus{}, err
	}
	select {
	case <-load.done:
		return load.snapshot(), nil
	case <-ctx.Done():
		return load.snapshot(), ctx.Err()
	}
}

// Shutdown waits for running loads to finish or ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
