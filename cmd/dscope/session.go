package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fyrsmithlabs/domainscope/internal/monitor"
	"github.com/fyrsmithlabs/domainscope/internal/session"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage telemetry sessions",
}

var (
	startReq      session.StartRequest
	startSignals  []string
	exportAlerts  bool
	exportSummary bool
)

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open a session",
	Long: `Open a telemetry session and print its id.

Whether telemetry is enabled depends on the daemon's real-user decision: a
non-bot user agent, a plausible viewport and at least one interaction signal.

Examples:
  dscope session start --viewport 1280x800 --signal click
  dscope session start --user-id u-17 --authenticated --segment premium`,
	Args: cobra.NoArgs,
	RunE: runSessionStart,
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Print the current snapshot of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionExport,
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End a session and print its final snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionEnd,
}

func init() {
	f := sessionStartCmd.Flags()
	f.StringVar(&startReq.UserAgent, "user-agent", "", "user agent reported by the client")
	f.IntVar(&startReq.ViewportWidth, "width", 1280, "viewport width in pixels")
	f.IntVar(&startReq.ViewportHeight, "height", 800, "viewport height in pixels")
	f.StringVar(&startReq.Origin, "origin", "", "first-party host of the application")
	f.StringVar(&startReq.UserID, "user-id", "", "authenticated user id")
	f.BoolVar(&startReq.IsAuthenticated, "authenticated", false, "mark the user as authenticated")
	f.StringVar(&startReq.UserSegment, "segment", "", "user segment (default derived from authentication)")
	f.StringVar(&startReq.Location, "location", "", "coarse user location")
	f.StringSliceVar(&startSignals, "signal", nil, "interaction signal already observed (click, mouse_move, scroll, keystroke)")

	sessionExportCmd.Flags().BoolVar(&exportAlerts, "alerts", false, "print firing alerts instead of the snapshot")
	sessionExportCmd.Flags().BoolVar(&exportSummary, "summary", false, "print a readable summary instead of JSON")

	sessionCmd.AddCommand(sessionStartCmd, sessionExportCmd, sessionEndCmd)
}

func runSessionStart(cmd *cobra.Command, _ []string) error {
	req := startReq
	req.Signals = nil
	for _, s := range startSignals {
		sig := session.Signal(s)
		if !sig.Valid() {
			return fmt.Errorf("unknown signal %q", s)
		}
		req.Signals = append(req.Signals, sig)
	}

	var info session.Info
	if err := call(cmd.Context(), http.MethodPost, "/api/v1/sessions", req, &info); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session:   %s\n", info.ID)
	fmt.Fprintf(out, "Real user: %t\n", info.RealUser)
	fmt.Fprintf(out, "Device:    %s\n", info.User.DeviceType)
	fmt.Fprintf(out, "Segment:   %s\n", info.User.UserSegment)
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	base := "/api/v1/sessions/" + url.PathEscape(args[0])
	if exportAlerts {
		var alerts []monitor.Alert
		if err := call(cmd.Context(), http.MethodGet, base+"/alerts", nil, &alerts); err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No alerts firing")
			return nil
		}
		for _, a := range alerts {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", a.Kind, a.Message)
		}
		return nil
	}

	var snap monitor.Snapshot
	if err := call(cmd.Context(), http.MethodGet, base+"/snapshot", nil, &snap); err != nil {
		return err
	}
	if exportSummary {
		printSummary(cmd.OutOrStdout(), snap)
		return nil
	}
	return printJSON(cmd.OutOrStdout(), snap)
}

func printSummary(out io.Writer, snap monitor.Snapshot) {
	var perMinute float64
	if snap.Session.DurationSeconds > 0 {
		perMinute = float64(snap.Metrics.TotalTrackedEvents) / (float64(snap.Session.DurationSeconds) / 60)
	}
	fmt.Fprintf(out, "Duration:      %s\n", monitor.FormatDuration(snap.Session.DurationSeconds))
	fmt.Fprintf(out, "Real user:     %t\n", snap.Session.IsRealUser)
	fmt.Fprintf(out, "Page views:    %d\n", snap.Metrics.PageViews)
	fmt.Fprintf(out, "API calls:     %d (%d failed)\n", snap.Metrics.APICalls, snap.Metrics.APIFailures)
	fmt.Fprintf(out, "Avg API time:  %s\n", monitor.FormatLatency(snap.Performance.AvgAPIResponseMS))
	fmt.Fprintf(out, "Event rate:    %s\n", monitor.FormatRate(perMinute))
	fmt.Fprintf(out, "Filtered:      %s\n", monitor.FormatPercentage(float64(snap.Metrics.FilteringEfficiency)))
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	var snap monitor.Snapshot
	if err := call(cmd.Context(), http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(args[0]), nil, &snap); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), snap)
}
