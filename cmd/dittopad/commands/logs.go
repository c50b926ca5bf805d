package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/dittopad/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
	logsFile   string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Tail server logs",
	Long: `Display and optionally follow the DittoPad server logs.

The log file is taken from 'logging.output' in the configuration, or from
--file. Servers logging to stdout or stderr have no file to read.

Examples:
  # Show last 100 lines (default)
  dittopad logs

  # Follow logs in real-time
  dittopad logs -f -n 20

  # Show logs since a specific time
  dittopad logs --since "2026-01-15T10:00:00Z"`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since timestamp (RFC3339 format)")
	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file to read instead of logging.output")
}

func runLogs(cmd *cobra.Command, args []string) error {
	logPath, err := resolveLogFile(logsFile, GetConfigFile())
	if err != nil {
		return err
	}

	var since time.Time
	if logsSince != "" {
		since, err = time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since format (use RFC3339): %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if !logsFollow {
		return showLogs(out, logPath, logsLines, since)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)...\n", logPath)
	return followLogs(ctx, out, logPath, logsLines, since)
}

// resolveLogFile picks the file to read: an explicit path wins, otherwise
// logging.output of the configuration.
func resolveLogFile(explicit, configFile string) (string, error) {
	path := explicit
	if path == "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return "", fmt.Errorf("failed to load config: %w", err)
		}
		path = cfg.Logging.Output
	}

	switch strings.ToLower(path) {
	case "stdout", "stderr", "":
		return "", fmt.Errorf("server is configured to log to %s, not a file\n"+
			"Set 'logging.output' to a file path (or DITTOPAD_LOGGING_OUTPUT) to use this command", path)
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("log file not found: %s\nThe server may not have started yet or is logging elsewhere", path)
	}
	return path, nil
}

// showLogs prints the last n lines of logFile written at or after since.
func showLogs(w io.Writer, logFile string, n int, since time.Time) error {
	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	lines, err := tailLines(file, n, since)
	if err != nil {
		return err
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// tailLines keeps a ring of the last n matching lines.
func tailLines(r io.Reader, n int, since time.Time) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ring := make([]string, 0, n)
	next := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !since.IsZero() {
			if t := extractTimestamp(line); !t.IsZero() && t.Before(since) {
				continue
			}
		}
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		ring[next] = line
		next = (next + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return append(ring[next:], ring[:next]...), nil
}

// followLogs prints the tail of logFile, then every line appended to it
// until ctx is done.
func followLogs(ctx context.Context, w io.Writer, logFile string, n int, since time.Time) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(logFile); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	file, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	lines, err := tailLines(file, n, since)
	if err != nil {
		return err
	}
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}

	// The scan above stopped at the end of the file, so reading on from
	// the same handle only yields new content.
	reader := bufio.NewReader(file)
	var partial string
	drain := func() {
		for {
			chunk, err := reader.ReadString('\n')
			partial += chunk
			if err != nil {
				return
			}
			_, _ = io.WriteString(w, partial)
			partial = ""
		}
	}
	drain()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) {
				drain()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// textLogLayout is the bracketed timestamp of the text log format.
const textLogLayout = "[2006-01-02 15:04:05]"

// extractTimestamp finds the time of a log line: the text format's
// bracketed local time, RFC 3339 at the start of the line, or a JSON
// "time" field.
func extractTimestamp(line string) time.Time {
	if len(line) >= len(textLogLayout) && line[0] == '[' {
		if t, err := time.ParseInLocation(textLogLayout, line[:len(textLogLayout)], time.Local); err == nil {
			return t
		}
	}

	field, _, _ := strings.Cut(line, " ")
	if t, err := time.Parse(time.RFC3339Nano, field); err == nil {
		return t
	}

	const timeKey = `"time":"`
	if idx := strings.Index(line, timeKey); idx >= 0 {
		rest := line[idx+len(timeKey):]
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			if t, err := time.Parse(time.RFC3339Nano, rest[:end]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
