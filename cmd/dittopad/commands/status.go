package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittopad/internal/cli/output"
	"github.com/marmos91/dittopad/internal/cli/timeutil"
	"github.com/marmos91/dittopad/pkg/api"
	"github.com/marmos91/dittopad/pkg/apiclient"
	"github.com/marmos91/dittopad/pkg/config"
	"github.com/marmos91/dittopad/pkg/registry"
)

var (
	statusAPIURL  string
	statusOutput  string
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the status of a running DittoPad server.

The command queries the monitoring API for liveness, readiness (notepad
listener and store) and the usernames currently held.

Examples:
  # Check the server described by the default config
  dittopad status

  # Check a remote server
  dittopad status --api-url http://notes.example.com:8081

  # Output as JSON
  dittopad status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAPIURL, "api-url", "", "Monitoring API URL (default: from config, http://localhost:8081)")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "Request timeout")
}

// ServerStatus is what status prints.
type ServerStatus struct {
	APIURL    string                   `json:"api_url" yaml:"api_url"`
	Running   bool                     `json:"running" yaml:"running"`
	Ready     bool                     `json:"ready" yaml:"ready"`
	Message   string                   `json:"message" yaml:"message"`
	StartedAt string                   `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string                   `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Adapter   *apiclient.AdapterHealth `json:"adapter,omitempty" yaml:"adapter,omitempty"`
	Store     *apiclient.StoreHealth   `json:"store,omitempty" yaml:"store,omitempty"`
	Sessions  []registry.SessionInfo   `json:"sessions" yaml:"sessions"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	baseURL := statusAPIURL
	if baseURL == "" {
		baseURL = defaultAPIURL(GetConfigFile())
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	status := collectStatus(ctx, apiclient.New(baseURL))

	out := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(out, status)
	case output.FormatYAML:
		return output.PrintYAML(out, status)
	default:
		return printStatusTable(out, status, time.Now())
	}
}

// defaultAPIURL points at the API of the locally configured server.
func defaultAPIURL(configFile string) string {
	port := api.DefaultPort
	if cfg, err := config.Load(configFile); err == nil && cfg.API.Port != 0 {
		port = cfg.API.Port
	}
	return "http://" + net.JoinHostPort("localhost", strconv.Itoa(port))
}

// collectStatus never fails: an unreachable API is reported as stopped.
func collectStatus(ctx context.Context, c *apiclient.Client) ServerStatus {
	status := ServerStatus{
		APIURL:   c.BaseURL(),
		Message:  "Server is not running or the API is disabled",
		Sessions: []registry.SessionInfo{},
	}

	live, err := c.Health(ctx)
	if err != nil {
		return status
	}
	status.Running = true
	status.StartedAt = live.Data.StartedAt
	status.Uptime = live.Data.Uptime

	ready, err := c.Ready(ctx)
	if err != nil {
		status.Message = fmt.Sprintf("Server is running but readiness failed: %v", err)
		return status
	}
	status.Ready = ready.Healthy()
	status.Adapter = ready.Data.Adapter
	status.Store = ready.Data.Store
	if status.Ready {
		status.Message = "Server is running and ready"
	} else {
		status.Message = "Server is running but not ready: " + ready.Error
	}

	sessions, err := c.Sessions(ctx)
	if err != nil {
		status.Message += fmt.Sprintf(" (sessions unavailable: %v)", err)
		return status
	}
	status.Sessions = sessions.Sessions
	return status
}

func printStatusTable(w io.Writer, status ServerStatus, now time.Time) error {
	state := "Stopped"
	switch {
	case status.Ready:
		state = "Running"
	case status.Running:
		state = "Running (not ready)"
	}

	pairs := [][2]string{
		{"Status", state},
		{"API", status.APIURL},
	}
	if status.StartedAt != "" {
		pairs = append(pairs, [2]string{"Started", timeutil.FormatTime(status.StartedAt)})
	}
	if status.Uptime != "" {
		pairs = append(pairs, [2]string{"Uptime", timeutil.FormatUptime(status.Uptime)})
	}
	if a := status.Adapter; a != nil {
		listening := "not listening"
		if a.Listening {
			listening = "listening"
		}
		pairs = append(pairs, [2]string{"Notepad", fmt.Sprintf("port %d, %s", a.Port, listening)})
	}
	if s := status.Store; s != nil {
		pairs = append(pairs, [2]string{"Store", fmt.Sprintf("%s, %s (%s)", s.Type, s.Status, s.Latency)})
	}
	if status.Running {
		pairs = append(pairs, [2]string{"Sessions", strconv.Itoa(len(status.Sessions))})
	}

	_, _ = fmt.Fprintln(w)
	if err := output.PrintKeyValues(w, pairs); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", status.Message)

	if len(status.Sessions) == 0 {
		return nil
	}
	table := output.NewTable("Username", "Client", "Since")
	for _, s := range status.Sessions {
		table.AddRow(displayUsername(s.Username), s.ClientAddr, timeutil.FormatAge(s.Since, now))
	}
	_, _ = fmt.Fprintln(w)
	return output.PrintTable(w, table)
}

// displayUsername makes the empty username visible in tables.
func displayUsername(name string) string {
	if name == "" {
		return "(empty)"
	}
	return name
}
