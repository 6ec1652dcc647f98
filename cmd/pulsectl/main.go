// Package main is pulsectl, the operational CLI for venezuelawatch.
// It wraps a running pulsed daemon's HTTP front door for day-to-day
// operations (triggering a source run, computing a correlation) and
// offers an offline --dry-run path that exercises an adapter's
// fetch/transform pass without touching any external store, so an
// operator can sanity-check credentials and wire formats before
// pointing a run at production.
//
// No third-party CLI framework appears anywhere in the example
// corpus, so subcommand dispatch is hand-rolled over the standard
// library's flag package rather than adopting one (see DESIGN.md).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/stdin/venezuelawatch/internal/adapter"
	"github.com/stdin/venezuelawatch/internal/adapter/sources"
	"github.com/stdin/venezuelawatch/internal/domain"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches to a subcommand and returns the process exit code:
// 0 on success, 1 on any failure.
func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "trigger":
		return runTrigger(args[1:])
	case "correlate":
		return runCorrelate(args[1:])
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "pulsectl: unknown command %q\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  pulsectl trigger <source> [--server http://host:port] [--lookback-minutes N] [--dry-run]
  pulsectl correlate --variables a,b[,c...] --start YYYY-MM-DD --end YYYY-MM-DD [--server http://host:port] [--method pearson|spearman] [--alpha 0.05]`)
}

func runTrigger(args []string) int {
	fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
	server := fs.String("server", "http://localhost:8080", "pulsed HTTP front door base URL")
	lookback := fs.Int("lookback-minutes", 0, "override the adapter's default lookback window")
	dryRun := fs.Bool("dry-run", false, "fetch and transform only; never publish or touch any store")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "pulsectl trigger: expected exactly one <source> argument")
		return 1
	}
	source := fs.Arg(0)

	if *dryRun {
		return triggerDryRun(source, *lookback)
	}
	return triggerLive(*server, source, *lookback)
}

// triggerDryRun runs one source adapter's Fetch+Transform pass locally
// and prints a summary, never constructing a store, bus, or publisher
// -- the "must not touch external stores in dry-run" contract.
func triggerDryRun(sourceName string, lookbackMinutes int) int {
	src, ok := newBareAdapter(domain.Source(sourceName))
	if !ok {
		fmt.Fprintf(os.Stderr, "pulsectl: unknown source %q\n", sourceName)
		return 1
	}

	lookback := lookbackMinutes
	if lookback <= 0 {
		lookback = src.DefaultLookbackMinutes()
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(lookback) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	raw, err := src.Fetch(ctx, start, end, 500)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsectl: fetch failed: %v\n", err)
		return 1
	}
	events, failures := src.Transform(raw)

	fmt.Printf("dry-run %s: fetched %d raw records, transformed %d events, %d transform failures\n",
		sourceName, len(raw), len(events), len(failures))
	for _, f := range failures {
		fmt.Printf("  transform failure: %s\n", f.Reason)
	}
	for _, e := range events {
		fmt.Printf("  event: %-12s %s\n", e.EventType, e.Title)
	}
	return 0
}

// newBareAdapter constructs a source adapter with no duplicate
// checker, for dry-run use only -- live triggers go through the
// daemon's HTTP front door, where the adapter is already wired to a
// real store.
func newBareAdapter(name domain.Source) (adapter.Source, bool) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	switch name {
	case domain.SourceGDELT:
		return sources.NewGDELTAdapter(httpClient, "https://api.gdeltproject.org/api/v2/doc/doc", nil), true
	case domain.SourceReliefWeb:
		return sources.NewReliefWebAdapter(httpClient, "https://api.reliefweb.int/v1/reports", nil), true
	case domain.SourceFRED:
		return sources.NewFREDAdapter(httpClient, "https://api.stlouisfed.org/fred/series/observations", os.Getenv("FRED_API_KEY"), nil), true
	case domain.SourceUNComtrade:
		return sources.NewUNComtradeAdapter(httpClient, "https://comtradeapi.un.org/data/v1/get/C/M/HS", os.Getenv("UN_COMTRADE_SUBSCRIPTION_KEY"), nil), true
	case domain.SourceWorldBank:
		return sources.NewWorldBankAdapter(httpClient, "https://api.worldbank.org/v2", nil), true
	case domain.SourceGoogleTrends:
		return sources.NewGoogleTrendsAdapter(httpClient, "https://trends.google.com/trends/api", nil), true
	case domain.SourceSECEDGAR:
		return sources.NewSECEdgarAdapter(nil), true
	default:
		return nil, false
	}
}

// triggerLive asks a running pulsed daemon to run the source
// synchronously via its HTTP front door, matching what the daemon's
// own POST /trigger/<source> does for the event: publish to the real
// bus, update the real registry health.
func triggerLive(serverURL, source string, lookbackMinutes int) int {
	body, _ := json.Marshal(map[string]int{"lookback_minutes": lookbackMinutes})
	resp, err := http.Post(serverURL+"/trigger/"+source, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsectl: request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, resp.Body); err != nil {
		fmt.Fprintf(os.Stderr, "pulsectl: reading response failed: %v\n", err)
		return 1
	}
	fmt.Println(out.String())
	if resp.StatusCode >= 400 {
		return 1
	}
	return 0
}

func runCorrelate(args []string) int {
	fs := flag.NewFlagSet("correlate", flag.ContinueOnError)
	server := fs.String("server", "http://localhost:8080", "pulsed HTTP front door base URL")
	variables := fs.String("variables", "", "comma-separated \"<kind>:<id>\" variable names, e.g. entity:abc,event_type:protest")
	start := fs.String("start", "", "start date, YYYY-MM-DD")
	end := fs.String("end", "", "end date, YYYY-MM-DD")
	method := fs.String("method", "pearson", "pearson|spearman")
	alpha := fs.Float64("alpha", 0.05, "significance threshold")
	minEffect := fs.Float64("min-effect-size", 0, "minimum |r| to report")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *variables == "" || *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "pulsectl correlate: --variables, --start, and --end are required")
		return 1
	}

	req := map[string]any{
		"variables":       splitCSV(*variables),
		"start_date":      *start,
		"end_date":        *end,
		"method":          *method,
		"alpha":           *alpha,
		"min_effect_size": *minEffect,
	}
	body, _ := json.Marshal(req)

	resp, err := http.Post(*server+"/correlation/compute", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsectl: request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if _, err := io.Copy(&out, resp.Body); err != nil {
		fmt.Fprintf(os.Stderr, "pulsectl: reading response failed: %v\n", err)
		return 1
	}
	fmt.Println(out.String())
	if resp.StatusCode >= 400 {
		return 1
	}
	return 0
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
