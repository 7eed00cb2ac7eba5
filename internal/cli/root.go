// Package cli implements catalogctl, a command-line client that runs the
// catalog engine in-process against the configured upstreams.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rfxstream/catalogservice/internal/app"
	"rfxstream/catalogservice/internal/catalog"
)

// Viper keys. They match the server's environment variable names.
const (
	keySansekaiURL = "sansekai_base_url"
	keySapimuURL   = "sapimu_base_url"
	keySapimuToken = "sapimu_api_token"
	keyCatalogFile = "catalog_file"
	keyTimeout     = "upstream_timeout_seconds"
	keyRetries     = "upstream_retry_attempts"
	keyConcurrency = "max_concurrent_fetches"
	keyUserAgent   = "upstream_user_agent"
	keyLogLevel    = "log_level"
	keyLibraryPath = "library_path"
	keyOutputJSON  = "json"
)

// NewRootCommand builds the command tree over v. Defaults come from the same
// environment the server reads.
func NewRootCommand(v *viper.Viper) *cobra.Command {
	defaults := app.LoadConfig()
	v.SetDefault(keySansekaiURL, defaults.SansekaiBaseURL)
	v.SetDefault(keySapimuURL, defaults.SapimuBaseURL)
	v.SetDefault(keySapimuToken, defaults.SapimuToken)
	v.SetDefault(keyCatalogFile, defaults.CatalogFile)
	v.SetDefault(keyTimeout, int(defaults.UpstreamTimeout/time.Second))
	v.SetDefault(keyRetries, defaults.RetryAttempts)
	v.SetDefault(keyConcurrency, defaults.MaxConcurrent)
	v.SetDefault(keyUserAgent, defaults.UserAgent)
	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyLibraryPath, defaults.LibraryPath)
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Query the drama, anime, komik and shorts catalog from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(app.NewLogger(cmd.ErrOrStderr(), v.GetString(keyLogLevel), "text"))
		},
	}

	flags := root.PersistentFlags()
	flags.String("sansekai-url", "", "Base URL of the sansekai API")
	flags.String("sapimu-url", "", "Base URL of the sapimu API")
	flags.String("token", "", "Bearer token for the sapimu API")
	flags.String("catalog", "", "Endpoint catalog YAML replacing the embedded one")
	flags.Int("timeout", 0, "Per-endpoint timeout in seconds")
	flags.String("log-level", "", "Log level written to stderr (debug, info, warn, error)")
	flags.String("library", "", "Path of the library JSON document")
	flags.Bool("json", false, "Print JSON instead of text")
	for key, flag := range map[string]string{
		keySansekaiURL: "sansekai-url",
		keySapimuURL:   "sapimu-url",
		keySapimuToken: "token",
		keyCatalogFile: "catalog",
		keyTimeout:     "timeout",
		keyLogLevel:    "log-level",
		keyLibraryPath: "library",
		keyOutputJSON:  "json",
	} {
		lo.Must0(v.BindPFlag(key, flags.Lookup(flag)))
	}

	root.AddCommand(
		newListCommand(v),
		newRandomCommand(v),
		newSuggestCommand(v),
		newSearchCommand(v),
		newDetailCommand(v),
		newTabsCommand(v),
		newProvidersCommand(v),
		newLibraryCommand(v),
	)
	return root
}

func configFrom(v *viper.Viper) app.Config {
	cfg := app.LoadConfig()
	cfg.SansekaiBaseURL = v.GetString(keySansekaiURL)
	cfg.SapimuBaseURL = v.GetString(keySapimuURL)
	cfg.SapimuToken = strings.TrimSpace(v.GetString(keySapimuToken))
	cfg.CatalogFile = v.GetString(keyCatalogFile)
	cfg.UpstreamTimeout = time.Duration(max(v.GetInt(keyTimeout), 1)) * time.Second
	cfg.RetryAttempts = v.GetInt(keyRetries)
	cfg.MaxConcurrent = v.GetInt(keyConcurrency)
	cfg.UserAgent = v.GetString(keyUserAgent)
	cfg.LibraryPath = v.GetString(keyLibraryPath)
	// every invocation is a one-shot process
	cfg.CacheDisabled = true
	return cfg
}

func newService(v *viper.Viper) (*catalog.Service, error) {
	cfg := configFrom(v)
	providers, err := app.BuildProviders(cfg)
	if err != nil {
		return nil, err
	}
	endpoints, err := catalog.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	return catalog.NewService(providers, cfg.UpstreamTimeout, app.ServiceOptions(cfg, endpoints)...)
}

// render writes payload as indented JSON when --json is set, else calls text.
func render(v *viper.Viper, w io.Writer, payload any, text func(io.Writer)) error {
	if v.GetBool(keyOutputJSON) {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	}
	text(w)
	return nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
