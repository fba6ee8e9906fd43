package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulebook/internal/cli"
)

func TestBindEnvVars(t *testing.T) {
	tcs := map[string]struct {
		envVars        map[string]string
		wantLogLevel   string
		wantCatalogURL string
		args           []string
	}{
		"environment variables are bound when no args provided": {
			envVars: map[string]string{
				"RULEBOOK_LOG_LEVEL":   "debug",
				"RULEBOOK_CATALOG_URL": "https://example.com/rules_catalog.json",
			},
			args:           []string{},
			wantLogLevel:   "debug",
			wantCatalogURL: "https://example.com/rules_catalog.json",
		},
		"command line args take precedence over environment variables": {
			envVars: map[string]string{
				"RULEBOOK_LOG_LEVEL":   "debug",
				"RULEBOOK_CATALOG_URL": "https://example.com/rules_catalog.json",
			},
			args:           []string{"--log-level", "error", "--catalog-url", "file:///srv/catalog.json"},
			wantLogLevel:   "error",
			wantCatalogURL: "file:///srv/catalog.json",
		},
		"no environment variables uses defaults": {
			envVars:        map[string]string{},
			args:           []string{},
			wantLogLevel:   "info",
			wantCatalogURL: "",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			for key, val := range tc.envVars {
				t.Setenv(key, val)
			}

			cmd := cli.NewRootCmd()

			err := cmd.ParseFlags(tc.args)
			require.NoError(t, err)

			logLevel, err := cmd.Flags().GetString("log-level")
			require.NoError(t, err)
			assert.Equal(t, tc.wantLogLevel, logLevel)

			catalogURL, err := cmd.Flags().GetString("catalog-url")
			require.NoError(t, err)
			assert.Equal(t, tc.wantCatalogURL, catalogURL)
		})
	}
}

func TestBindEnvVars_Subcommands(t *testing.T) {
	t.Setenv("RULEBOOK_WORKSPACE", "/srv/app")

	cmd := cli.NewRootCmd()

	sub, _, err := cmd.Find([]string{"update"})
	require.NoError(t, err)

	ws, err := sub.Flags().GetString("workspace")
	require.NoError(t, err)
	assert.Equal(t, "/srv/app", ws)
}

func TestEnvironmentVariableUsageUpdate(t *testing.T) {
	t.Parallel()

	cmd := cli.NewRootCmd()

	logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, logLevelFlag)
	assert.Contains(t, logLevelFlag.Usage, "$RULEBOOK_LOG_LEVEL")

	rulesFlag := cmd.PersistentFlags().Lookup("rules-source")
	require.NotNil(t, rulesFlag)
	assert.Contains(t, rulesFlag.Usage, "$RULEBOOK_RULES_SOURCE")
}
