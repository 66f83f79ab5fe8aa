package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	httpserver "github.com/fyrsmithlabs/domainscope/internal/http"
	"github.com/spf13/cobra"
)

var classifyReq httpserver.ClassifyRequest

var classifyCmd = &cobra.Command{
	Use:   "classify [url]",
	Short: "Show how the daemon classifies traffic",
	Long: `Ask the daemon whether a URL, user agent or error message would be
tracked, and which business area a URL belongs to.

Examples:
  dscope classify /api/checkout/confirm
  dscope classify --user-agent "Googlebot/2.1"
  dscope classify --message "ResizeObserver loop limit exceeded"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVar(&classifyReq.Origin, "origin", "", "first-party host the URL is requested from")
	f.StringVar(&classifyReq.UserAgent, "user-agent", "", "user agent to check for bots")
	f.StringVar(&classifyReq.Message, "message", "", "error message to check for noise")
}

func runClassify(cmd *cobra.Command, args []string) error {
	req := classifyReq
	if len(args) == 1 {
		req.URL = args[0]
	}
	if req.URL == "" && req.UserAgent == "" && req.Message == "" {
		return errors.New("nothing to classify: pass a url, --user-agent or --message")
	}

	var resp httpserver.ClassifyResponse
	if err := call(cmd.Context(), http.MethodPost, "/api/v1/classify", req, &resp); err != nil {
		return err
	}
	printClassification(cmd.OutOrStdout(), resp)
	return nil
}

func printClassification(w io.Writer, r httpserver.ClassifyResponse) {
	line := func(label string, v *bool) {
		if v != nil {
			fmt.Fprintf(w, "%-18s %t\n", label+":", *v)
		}
	}
	line("Bot", r.Bot)
	line("Tracked URL", r.TrackURL)
	line("Extension", r.Extension)
	line("Critical journey", r.CriticalJourney)
	if r.Business != nil {
		fmt.Fprintf(w, "%-18s %s (%s)\n", "Business area:", r.Business.Feature, r.Business.Priority)
	}
	line("Relevant error", r.RelevantError)
}
