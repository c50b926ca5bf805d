package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittopad/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the DittoPad configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  dittopad config validate

  # Validate specific config file
  dittopad config validate --config /etc/dittopad/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	np := cfg.Adapters.Notepad
	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Notepad:         %t (%s:%d)\n", np.Enabled, np.BindAddress, np.Port)
	_, _ = fmt.Fprintf(out, "  Storage:         %s\n", cfg.Storage.Type)
	_, _ = fmt.Fprintf(out, "  API:             %t (port %d)\n", cfg.API.Enabled, cfg.API.Port)
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}

// configWarnings lists legal settings that are probably mistakes.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	np := cfg.Adapters.Notepad
	if !np.Enabled {
		warnings = append(warnings, "notepad adapter disabled - only the API will run")
	}
	if np.Enabled && !np.ReleaseOnDisconnect && np.IdleTimeout == 0 {
		warnings = append(warnings, "usernames of dropped clients stay taken until restart (release_on_disconnect is off)")
	}
	if cfg.Storage.Type == config.StorageMemory {
		warnings = append(warnings, "memory storage loses every file on restart")
	}
	if cfg.Metrics.Enabled && !cfg.API.Enabled {
		warnings = append(warnings, "metrics enabled but the API is disabled - /metrics will not be served")
	}
	if cfg.Storage.S3.SecretAccessKey != "" {
		warnings = append(warnings, "S3 secret key stored in the config file - prefer AWS_SECRET_ACCESS_KEY")
	}
	return warnings
}
