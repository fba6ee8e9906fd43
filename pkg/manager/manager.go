// Package manager orchestrates catalog and workspace operations.
//
// Every mutating operation loads the catalog snapshot and the workspace
// state, resolves a plan, applies it and records the workspace in the
// global registry. Operations on the same workspace root are serialized;
// operations on different roots run independently.
package manager

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/api/v1beta1/configs"
	"github.com/macropower/rulebook/api/v1beta1/workspaces"
	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/catalogsync"
	"github.com/macropower/rulebook/pkg/config"
	"github.com/macropower/rulebook/pkg/install"
	"github.com/macropower/rulebook/pkg/workspace"
)

var (
	// ErrNoCatalog is returned when the local catalog file does not exist.
	ErrNoCatalog = errors.New("local catalog not found")
	// ErrNoRemote is returned by [Manager.Sync] when no remote is configured.
	ErrNoRemote = errors.New("no remote catalog configured")
	// ErrNoRulesDir is returned when an operation needs the source rules
	// directory and none is configured.
	ErrNoRulesDir = errors.New("no rules directory configured")
)

// Manager runs rulebook operations.
type Manager struct {
	tracer       trace.Tracer
	store        *workspace.Store
	installer    *install.Installer
	fetcher      *catalogsync.Fetcher
	source       install.PayloadSource
	httpClient   *http.Client
	now          func() time.Time
	locks        map[string]*sync.Mutex
	catalogPath  string
	rulesDir     string
	remoteURL    string
	payloadURL   string
	registryPath string
	fetchTimeout time.Duration
	locksMu      sync.Mutex
	registryMu   sync.Mutex
}

// Opt configures a [Manager].
type Opt func(*Manager)

// WithCatalogPath overrides the local catalog file.
func WithCatalogPath(path string) Opt {
	return func(m *Manager) {
		m.catalogPath = path
	}
}

// WithRulesDir overrides the source rules directory.
func WithRulesDir(dir string) Opt {
	return func(m *Manager) {
		m.rulesDir = dir
	}
}

// WithRemoteURL overrides the remote catalog URL.
func WithRemoteURL(u string) Opt {
	return func(m *Manager) {
		m.remoteURL = u
	}
}

// WithRegistryPath overrides the workspace registry file.
func WithRegistryPath(path string) Opt {
	return func(m *Manager) {
		m.registryPath = path
	}
}

// WithPayloadSource replaces the default payload source chain.
func WithPayloadSource(src install.PayloadSource) Opt {
	return func(m *Manager) {
		m.source = src
	}
}

// WithHTTPClient sets the client used for remote catalogs and payloads.
func WithHTTPClient(c *http.Client) Opt {
	return func(m *Manager) {
		m.httpClient = c
	}
}

// WithClock sets the clock used for install and registration timestamps.
func WithClock(now func() time.Time) Opt {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a [Manager] from cfg. Relative catalog paths in cfg are
// resolved against the directory of configPath.
func New(cfg *configs.Config, configPath string, opts ...Opt) *Manager {
	cfg.EnsureDefaults()

	m := &Manager{
		tracer:       otel.Tracer("manager"),
		store:        workspace.NewStoreFromConfig(cfg.Workspace),
		httpClient:   http.DefaultClient,
		now:          time.Now,
		locks:        map[string]*sync.Mutex{},
		catalogPath:  cfg.Catalog.ResolveLocalPath(configPath),
		rulesDir:     cfg.Catalog.ResolveRulesDir(configPath),
		remoteURL:    cfg.Catalog.RemoteURL,
		payloadURL:   cfg.Catalog.PayloadURL,
		registryPath: workspaces.GetRegistryPath(),
		fetchTimeout: cfg.Catalog.GetFetchTimeout(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.source == nil {
		m.source = install.Chain{
			install.InlineSource{},
			install.DirSource{Dir: m.rulesDir},
			install.URLSource{Client: m.httpClient, BaseURL: m.payloadURL, Timeout: m.fetchTimeout},
		}
	}

	m.installer = install.New(m.store, m.source, install.WithClock(m.now))
	m.fetcher = catalogsync.NewFetcher(
		catalogsync.WithHTTPClient(m.httpClient),
		catalogsync.WithTimeout(m.fetchTimeout),
	)

	return m
}

// CatalogPath returns the local catalog file path.
func (m *Manager) CatalogPath() string {
	return m.catalogPath
}

// RulesDir returns the source rules directory.
func (m *Manager) RulesDir() string {
	return m.rulesDir
}

// RemoteURL returns the remote catalog URL, if any.
func (m *Manager) RemoteURL() string {
	return m.remoteURL
}

// Store returns the workspace store.
func (m *Manager) Store() *workspace.Store {
	return m.store
}

// Catalog loads the local catalog snapshot.
func (m *Manager) Catalog() (*catalog.Snapshot, error) {
	snap, err := catalog.Load(m.catalogPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoCatalog, m.catalogPath)
	}

	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	return snap, nil
}

// lock serializes operations on root and returns the unlock function.
func (m *Manager) lock(root string) func() {
	m.locksMu.Lock()

	mu, ok := m.locks[root]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[root] = mu
	}

	m.locksMu.Unlock()

	mu.Lock()

	return mu.Unlock
}

// Workspaces returns the registered workspaces.
func (m *Manager) Workspaces() ([]*workspaces.Entry, error) {
	m.registryMu.Lock()
	defer m.registryMu.Unlock()

	reg, err := m.loadRegistry()
	if err != nil {
		return nil, err
	}

	return reg.Workspaces, nil
}

// RegisterWorkspace adds root to the registry under name. An empty name
// defaults to the directory name.
func (m *Manager) RegisterWorkspace(root, name string) (*workspaces.Entry, error) {
	root, err := api.CleanPath(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	m.registryMu.Lock()
	defer m.registryMu.Unlock()

	reg, err := m.loadRegistry()
	if err != nil {
		return nil, err
	}

	changed := reg.Register(workspaces.Entry{
		Path:         root,
		Name:         name,
		RegisteredAt: m.now().UTC().Format(time.RFC3339),
	})

	entry, _ := reg.Get(root)
	if !changed {
		return entry, nil
	}

	err = reg.Write(m.registryPath)
	if err != nil {
		return nil, fmt.Errorf("write workspace registry: %w", err)
	}

	return entry, nil
}

// UnregisterWorkspace removes root from the registry. Installed files are
// left untouched.
func (m *Manager) UnregisterWorkspace(root string) (bool, error) {
	root, err := api.CleanPath(root)
	if err != nil {
		return false, err //nolint:wrapcheck // Already wrapped.
	}

	m.registryMu.Lock()
	defer m.registryMu.Unlock()

	reg, err := m.loadRegistry()
	if err != nil {
		return false, err
	}

	if !reg.Unregister(root) {
		return false, nil
	}

	err = reg.Write(m.registryPath)
	if err != nil {
		return false, fmt.Errorf("write workspace registry: %w", err)
	}

	return true, nil
}

func (m *Manager) loadRegistry() (*workspaces.Registry, error) {
	l, err := config.NewLoaderFromFile(m.registryPath, workspaces.NewRegistry, workspaces.RegistryValidator)
	if errors.Is(err, fs.ErrNotExist) {
		return workspaces.NewRegistry(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read workspace registry: %w", err)
	}

	err = l.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.registryPath, err)
	}

	reg, err := l.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.registryPath, err)
	}

	return reg, nil
}
