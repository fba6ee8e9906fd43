package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/api/v1beta1/configs"
	"github.com/macropower/rulebook/api/v1beta1/workspaces"
	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/config"
)

// Store reads and writes workspace state files. Paths in a Store are
// relative to each workspace root.
type Store struct {
	rulesDir  string
	stateFile string
}

// StoreOpt configures a [Store].
type StoreOpt func(*Store)

// WithRulesDir sets the directory payloads are written to.
func WithRulesDir(dir string) StoreOpt {
	return func(s *Store) {
		s.rulesDir = dir
	}
}

// WithStateFile sets the path of the state file.
func WithStateFile(path string) StoreOpt {
	return func(s *Store) {
		s.stateFile = path
	}
}

// NewStore creates a [Store] using the default workspace layout.
func NewStore(opts ...StoreOpt) *Store {
	s := &Store{
		rulesDir:  configs.DefaultRulesDir,
		stateFile: configs.DefaultStateFile,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// NewStoreFromConfig creates a [Store] with the layout from cfg.
func NewStoreFromConfig(cfg *configs.WorkspaceConfig) *Store {
	return NewStore(WithRulesDir(cfg.RulesDir), WithStateFile(cfg.StateFile))
}

// RulesDir returns the absolute payload directory of the workspace at root.
func (s *Store) RulesDir(root string) string {
	return filepath.Join(root, filepath.FromSlash(s.rulesDir))
}

// StatePath returns the absolute state file path of the workspace at root.
func (s *Store) StatePath(root string) string {
	return filepath.Join(root, filepath.FromSlash(s.stateFile))
}

// RelPayloadPath returns the payload path for fileName relative to the
// workspace root, using forward slashes.
func (s *Store) RelPayloadPath(fileName string) string {
	return filepath.ToSlash(filepath.Join(filepath.FromSlash(s.rulesDir), fileName))
}

// PayloadPath returns the absolute payload path for fileName.
func (s *Store) PayloadPath(root, fileName string) string {
	return filepath.Join(s.RulesDir(root), fileName)
}

// FindRoot returns the nearest directory at or above start that holds a
// state file, so commands run from a subdirectory act on the enclosing
// workspace. When there is none, the cleaned start is returned.
func (s *Store) FindRoot(start string) (string, error) {
	start, err := api.CleanPath(start)
	if err != nil {
		return "", err //nolint:wrapcheck // Already wrapped.
	}

	dir, err := api.FindUp(start, filepath.FromSlash(s.stateFile))
	if err != nil {
		return "", fmt.Errorf("find workspace root: %w", err)
	}

	if dir == "" {
		return start, nil
	}

	return dir, nil
}

// Tracked reports whether the workspace at root has a state file.
func (s *Store) Tracked(root string) bool {
	_, err := os.Stat(s.StatePath(root))

	return err == nil
}

// Load reads the state of the workspace at root. A workspace without a
// state file has an empty state.
func (s *Store) Load(root string) (*State, error) {
	root, err := api.CleanPath(root)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	st := NewState(root)
	path := s.StatePath(root)

	l, err := config.NewLoaderFromFile(path, workspaces.NewState, workspaces.StateValidator)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("workspace is not tracked yet", slog.String("root", root))

		return st, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read workspace state: %w", err)
	}

	err = l.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	doc, err := l.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for name, r := range doc.Rules {
		st.Put(Record{
			Name:        name,
			Version:     r.Version,
			InstalledAt: catalog.ParseTimestamp(r.InstalledAt).Time,
			Path:        r.Path,
			Checksum:    r.Checksum,
		})
	}

	return st, nil
}

// Save writes st to its workspace atomically.
func (s *Store) Save(st *State) error {
	doc := workspaces.NewState()

	for _, r := range st.Records() {
		doc.Rules[r.Name] = &workspaces.InstalledRule{
			Version:     r.Version,
			InstalledAt: r.InstalledAt.UTC().Format(time.RFC3339),
			Path:        r.Path,
			Checksum:    r.Checksum,
		}
	}

	b, err := doc.MarshalYAML()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	err = api.WriteFileAtomic(s.StatePath(st.Root()), b, 0o644)
	if err != nil {
		return fmt.Errorf("save workspace state: %w", err)
	}

	return nil
}

// Scan lists the rule names of payload files present in the workspace's
// rules directory, whether or not they are recorded in the state.
func (s *Store) Scan(root string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.RulesDir(root), "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan rules: %w", err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".md"))
	}

	return names, nil
}
