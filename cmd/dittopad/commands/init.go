package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittopad/internal/cli/prompt"
	"github.com/marmos91/dittopad/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample DittoPad configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/dittopad/config.yaml.
Use --config to specify a custom path, and --interactive to answer a few
questions instead of writing the defaults.

Examples:
  # Initialize with default location
  dittopad init

  # Initialize with custom path
  dittopad init --config /etc/dittopad/config.yaml

  # Pick port and storage interactively, overwriting an existing file
  dittopad init --interactive --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Ask for the main settings")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.GetDefaultConfig()
	if initInteractive {
		if err := askConfig(terminalAsker{}, cfg); err != nil {
			if prompt.IsAborted(err) {
				return fmt.Errorf("init aborted")
			}
			return err
		}
	}

	if err := config.WriteSampleConfig(configPath, cfg, initForce); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	_, _ = fmt.Fprintf(out, "  2. Start the server with: dittopad start --config %s\n", configPath)
	_, _ = fmt.Fprintf(out, "  3. Connect with: nc localhost %d\n", cfg.Adapters.Notepad.Port)
	return nil
}

// asker is the set of questions askConfig needs answered.
type asker interface {
	Input(label, defaultValue string, validate func(string) error) (string, error)
	Select(label string, options []prompt.SelectOption) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}

type terminalAsker struct{}

func (terminalAsker) Input(label, defaultValue string, validate func(string) error) (string, error) {
	return prompt.InputWithValidation(label, defaultValue, validate)
}

func (terminalAsker) Select(label string, options []prompt.SelectOption) (string, error) {
	return prompt.Select(label, options)
}

func (terminalAsker) Confirm(label string, defaultYes bool) (bool, error) {
	return prompt.Confirm(label, defaultYes)
}

var storageOptions = []prompt.SelectOption{
	{Label: "filesystem", Value: config.StorageFilesystem, Description: "One directory per user on local disk"},
	{Label: "memory", Value: config.StorageMemory, Description: "Kept in process memory, lost on restart"},
	{Label: "s3", Value: config.StorageS3, Description: "S3-compatible bucket, one prefix per user"},
	{Label: "badger", Value: config.StorageBadger, Description: "Embedded BadgerDB key-value store"},
}

var logLevelOptions = []prompt.SelectOption{
	{Label: "INFO", Value: "INFO"},
	{Label: "DEBUG", Value: "DEBUG"},
	{Label: "WARN", Value: "WARN"},
	{Label: "ERROR", Value: "ERROR"},
}

// askConfig fills the main settings of cfg from a.
func askConfig(a asker, cfg *config.Config) error {
	port, err := askPort(a, "Notepad port", cfg.Adapters.Notepad.Port)
	if err != nil {
		return err
	}
	cfg.Adapters.Notepad.Port = port

	release, err := a.Confirm("Release usernames when a client disconnects without EXIT", cfg.Adapters.Notepad.ReleaseOnDisconnect)
	if err != nil {
		return err
	}
	cfg.Adapters.Notepad.ReleaseOnDisconnect = release

	storageType, err := a.Select("Storage backend", storageOptions)
	if err != nil {
		return err
	}
	cfg.Storage.Type = storageType

	switch storageType {
	case config.StorageFilesystem:
		root, err := a.Input("Directory holding user files", cfg.Storage.Filesystem.Root, prompt.ValidateNonEmpty)
		if err != nil {
			return err
		}
		cfg.Storage.Filesystem.Root = root
	case config.StorageS3:
		bucket, err := a.Input("S3 bucket", cfg.Storage.S3.Bucket, prompt.ValidateNonEmpty)
		if err != nil {
			return err
		}
		cfg.Storage.S3.Bucket = bucket
		region, err := a.Input("S3 region", cfg.Storage.S3.Region, nil)
		if err != nil {
			return err
		}
		cfg.Storage.S3.Region = region
		endpoint, err := a.Input("S3 endpoint (empty for AWS)", cfg.Storage.S3.Endpoint, nil)
		if err != nil {
			return err
		}
		cfg.Storage.S3.Endpoint = endpoint
		cfg.Storage.S3.ForcePathStyle = endpoint != ""
	case config.StorageBadger:
		path, err := a.Input("BadgerDB directory", config.DefaultBadgerPath, prompt.ValidateNonEmpty)
		if err != nil {
			return err
		}
		cfg.Storage.Badger = map[string]any{"path": path}
	}

	apiEnabled, err := a.Confirm("Enable the monitoring API", cfg.API.Enabled)
	if err != nil {
		return err
	}
	cfg.API.Enabled = apiEnabled
	if apiEnabled {
		apiPort, err := askPort(a, "API port", cfg.API.Port)
		if err != nil {
			return err
		}
		cfg.API.Port = apiPort
	}

	level, err := a.Select("Log level", logLevelOptions)
	if err != nil {
		return err
	}
	cfg.Logging.Level = level

	return config.Validate(cfg)
}

func askPort(a asker, label string, defaultValue int) (int, error) {
	answer, err := a.Input(label, strconv.Itoa(defaultValue), prompt.ValidatePort)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(answer)
}
