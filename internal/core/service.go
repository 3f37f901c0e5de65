package core

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/JonMunkholm/csvappend/internal/config"
	"github.com/JonMunkholm/csvappend/internal/logging"
)

// Options are the service limits, normally taken from config.Config.
type Options struct {
	MaxFileSize       int64
	PreviewRows       int
	SampleRows        int
	MaxConcurrentRuns int
	MaxRunWait        time.Duration
	RunTimeout        time.Duration
	SessionTTL        time.Duration
}

// OptionsFromConfig extracts service options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxFileSize:       cfg.Upload.MaxFileSize,
		PreviewRows:       cfg.Preview.RowLimit,
		SampleRows:        cfg.Preview.SampleRows,
		MaxConcurrentRuns: cfg.Run.MaxConcurrent,
		MaxRunWait:        cfg.Run.MaxWaitTime,
		RunTimeout:        cfg.Run.Timeout,
		SessionTTL:        cfg.Session.TTL,
	}
}

// DefaultOptions returns the limits used for any field left zero or negative.
func DefaultOptions() Options {
	return Options{
		MaxFileSize:       100 << 20,
		PreviewRows:       10,
		SampleRows:        5,
		MaxConcurrentRuns: DefaultMaxConcurrentRuns,
		MaxRunWait:        DefaultMaxWaitTime,
		RunTimeout:        10 * time.Minute,
		SessionTTL:        2 * time.Hour,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = d.MaxFileSize
	}
	if o.PreviewRows <= 0 {
		o.PreviewRows = d.PreviewRows
	}
	if o.SampleRows <= 0 {
		o.SampleRows = d.SampleRows
	}
	if o.MaxConcurrentRuns <= 0 {
		o.MaxConcurrentRuns = d.MaxConcurrentRuns
	}
	if o.MaxRunWait <= 0 {
		o.MaxRunWait = d.MaxRunWait
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = d.RunTimeout
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = d.SessionTTL
	}
	return o
}

// Service implements upload, preview, validation and append against a
// TableStore. It holds no per-user state; see Session for that.
type Service struct {
	store    TableStore
	opts     Options
	limiter  *RunLimiter
	sessions *SessionStore
}

// NewService creates a Service using limits from cfg.
func NewService(store TableStore, cfg *config.Config) (*Service, error) {
	return NewServiceWithOptions(store, OptionsFromConfig(cfg))
}

// NewServiceWithOptions creates a Service with explicit limits.
func NewServiceWithOptions(store TableStore, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("table store is required")
	}
	opts = opts.withDefaults()
	return &Service{
		store:    store,
		opts:     opts,
		limiter:  NewRunLimiter(opts.MaxConcurrentRuns, opts.MaxRunWait),
		sessions: NewSessionStore(opts.SessionTTL),
	}, nil
}

// Options returns the effective limits.
func (s *Service) Options() Options {
	return s.opts
}

// Sessions returns the session store.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// Ping checks the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// RunLimiterStatus returns the current run slot usage.
func (s *Service) RunLimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight validation and append runs finish.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ListCatalogs returns the catalogs visible to the store, sorted.
func (s *Service) ListCatalogs(ctx context.Context) ([]string, error) {
	return sorted(s.store.ListCatalogs(ctx))
}

// ListSchemas returns the schemas of catalog, sorted.
func (s *Service) ListSchemas(ctx context.Context, catalog string) ([]string, error) {
	return sorted(s.store.ListSchemas(ctx, catalog))
}

// ListTables returns the tables of catalog.schema, sorted.
func (s *Service) ListTables(ctx context.Context, catalog, schema string) ([]string, error) {
	return sorted(s.store.ListTables(ctx, catalog, schema))
}

func sorted(names []string, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	out := append([]string{}, names...)
	sort.Strings(out)
	return out, nil
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
