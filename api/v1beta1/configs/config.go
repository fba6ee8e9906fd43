// Package configs provides the global Config configuration type for rulebook.
package configs

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/rulebook/api"
	"github.com/macropower/rulebook/api/v1beta1"
	"github.com/macropower/rulebook/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen -kind config -o configs.v1beta1.json

const (
	// DefaultFetchTimeout bounds the single remote catalog fetch per invocation.
	DefaultFetchTimeout = 10 * time.Second

	DefaultCatalogFile   = "rules_catalog.json"
	DefaultRulesDir      = ".amazonq/rules"
	DefaultStateFile     = ".amazonq/rulebook.yaml"
	DefaultPayloadSuffix = ".md"
)

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	//go:embed configs.v1beta1.json
	schemaJSON []byte

	// ValidKinds contains the valid kind values for global configurations.
	ValidKinds = []string{"Configuration"}

	// DefaultValidator validates global configuration against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/configs.v1beta1.json", schemaJSON)

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config represents the global rulebook configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	Catalog          *CatalogConfig   `json:"catalog,omitempty" jsonschema:"title=Catalog"`
	Workspace        *WorkspaceConfig `json:"workspace,omitempty" jsonschema:"title=Workspace"`
	v1beta1.TypeMeta `json:",inline"`
}

// CatalogConfig controls where the local catalog lives and where it is
// synchronized from.
type CatalogConfig struct {
	// FetchTimeout bounds the remote catalog fetch.
	FetchTimeout *Duration `json:"fetchTimeout,omitempty" jsonschema:"title=Fetch Timeout"`
	// LocalPath is the path to the local catalog file. Relative paths are
	// resolved against the config directory.
	LocalPath string `json:"localPath,omitempty" jsonschema:"title=Local Path"`
	// RemoteURL is the http(s) or file URL of the remote catalog.
	RemoteURL string `json:"remoteURL,omitempty" jsonschema:"title=Remote URL"`
	// RulesDir is the directory containing rule payloads referenced by the
	// catalog's content paths.
	RulesDir string `json:"rulesDir,omitempty" jsonschema:"title=Rules Directory"`
	// PayloadURL is a base URL payloads are fetched from when they are not
	// available locally. The rule's content path is appended.
	PayloadURL string `json:"payloadURL,omitempty" jsonschema:"title=Payload URL"`
}

// WorkspaceConfig controls the layout of files rulebook writes into a workspace.
type WorkspaceConfig struct {
	// RulesDir is relative to the workspace root.
	RulesDir string `json:"rulesDir,omitempty" jsonschema:"title=Rules Directory"`
	// StateFile is relative to the workspace root.
	StateFile string `json:"stateFile,omitempty" jsonschema:"title=State File"`
}

// New creates a new global [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       "Configuration",
		},
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Catalog == nil {
		c.Catalog = &CatalogConfig{}
	}

	c.Catalog.EnsureDefaults()

	if c.Workspace == nil {
		c.Workspace = &WorkspaceConfig{}
	}

	c.Workspace.EnsureDefaults()
}

// EnsureDefaults fills in empty fields.
func (c *CatalogConfig) EnsureDefaults() {
	if c.LocalPath == "" {
		c.LocalPath = DefaultCatalogFile
	}

	if c.FetchTimeout == nil {
		c.FetchTimeout = &Duration{Duration: DefaultFetchTimeout}
	}
}

// GetFetchTimeout returns the configured fetch timeout, or the default.
func (c *CatalogConfig) GetFetchTimeout() time.Duration {
	if c.FetchTimeout == nil || c.FetchTimeout.Duration <= 0 {
		return DefaultFetchTimeout
	}

	return c.FetchTimeout.Duration
}

// ResolveLocalPath returns LocalPath, resolving relative paths against
// the directory containing the global config file.
func (c *CatalogConfig) ResolveLocalPath(configPath string) string {
	return resolveRelative(c.LocalPath, configPath)
}

// ResolveRulesDir returns RulesDir, resolving relative paths against
// the directory containing the global config file. When RulesDir is empty,
// a "rules" directory next to the local catalog is used.
func (c *CatalogConfig) ResolveRulesDir(configPath string) string {
	if c.RulesDir == "" {
		return resolveRelative("rules", configPath)
	}

	return resolveRelative(c.RulesDir, configPath)
}

// EnsureDefaults fills in empty fields.
func (c *WorkspaceConfig) EnsureDefaults() {
	if c.RulesDir == "" {
		c.RulesDir = DefaultRulesDir
	}

	if c.StateFile == "" {
		c.StateFile = DefaultStateFile
	}
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// Validate performs checks that cannot be expressed in the JSON schema.
func (c *Config) Validate() error {
	if c.Workspace != nil && c.Workspace.RulesDir != "" && isAbs(c.Workspace.RulesDir) {
		return fmt.Errorf("workspace.rulesDir %q: %w", c.Workspace.RulesDir, ErrMustBeRelative)
	}

	if c.Workspace != nil && c.Workspace.StateFile != "" && isAbs(c.Workspace.StateFile) {
		return fmt.Errorf("workspace.stateFile %q: %w", c.Workspace.StateFile, ErrMustBeRelative)
	}

	return nil
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// DefaultYAML returns the embedded default configuration document.
func DefaultYAML() []byte {
	return defaultConfigYAML
}

// GetPath returns the path to the global configuration file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}
