package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittopad/internal/cli/output"
	"github.com/marmos91/dittopad/pkg/api/handlers"
	"github.com/marmos91/dittopad/pkg/config"
	"github.com/marmos91/dittopad/pkg/store"
)

var filesOutput string

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Inspect saved notepad files",
	Long: `Read the notepad files saved by users straight from the configured store.

Embedded stores (badger) hold an exclusive lock, so stop the server or use
the monitoring API (GET /api/v1/users/{username}/files) while it runs.`,
}

var filesListCmd = &cobra.Command{
	Use:   "list <username>",
	Short: "List a user's files",
	Example: `  dittopad files list alice
  dittopad files list alice --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runFilesList,
}

var filesCatCmd = &cobra.Command{
	Use:     "cat <username> <filename>",
	Short:   "Print one file",
	Example: `  dittopad files cat alice notes.txt`,
	Args:    cobra.ExactArgs(2),
	RunE:    runFilesCat,
}

func init() {
	filesListCmd.Flags().StringVarP(&filesOutput, "output", "o", "table", "Output format (table|json|yaml)")
	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesCatCmd)
}

// openStore opens the store described by the configuration. A missing
// config file means the default ./users directory.
func openStore(ctx context.Context) (store.Store, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	st, err := config.CreateStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

func runFilesList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(filesOutput)
	if err != nil {
		return err
	}

	username := args[0]
	if err := store.ValidateUsername(username); err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	names, err := st.ListDir(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("user %q has no files", username)
		}
		return fmt.Errorf("failed to list files: %w", err)
	}
	sort.Strings(names)

	result := filesResult{FilesResponse: handlers.FilesResponse{
		Username: username,
		Count:    len(names),
		Files:    append([]string{}, names...),
	}}
	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(result)
}

// filesResult prints as a one-column table.
type filesResult struct {
	handlers.FilesResponse `yaml:",inline"`
}

func (r filesResult) Headers() []string { return []string{"File"} }

func (r filesResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Files))
	for _, name := range r.Files {
		rows = append(rows, []string{name})
	}
	return rows
}

func runFilesCat(cmd *cobra.Command, args []string) error {
	username, filename := args[0], args[1]

	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	data, err := st.ReadFile(ctx, username, filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("file %q not found for user %q", filename, username)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
