// Package cmd implements the snapdash CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/config"
	"github.com/theirongolddev/snapdash/internal/logging"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/pipeline"
	"github.com/theirongolddev/snapdash/internal/store"
)

var (
	flagFiles     []string
	flagMonths    int
	flagDegree    int
	flagNoTrend   bool
	flagNoCache   bool
	flagQuiet     bool
	flagLogLevel  string
	flagLogFormat string
	flagConfig    string
)

// appConfig is loaded once per invocation in PersistentPreRunE.
var appConfig = config.DefaultConfig()

var errNoPayload = errors.New("no payload given: pass --file, a path argument, or set general.payload_path")

var rootCmd = &cobra.Command{
	Use:               "snapdash [payload...]",
	Short:             "Monthly client-count dashboard",
	Long:              "Reduce usage snapshots to one record per month and project trendlines.",
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
	RunE:              runSummary,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringArrayVarP(&flagFiles, "file", "f", nil, "Payload file or directory (repeatable, - for stdin)")
	pf.IntVarP(&flagMonths, "months", "n", 0, "Future months to project")
	pf.IntVarP(&flagDegree, "degree", "g", model.DefaultDegree, "Trendline polynomial degree (1-4)")
	pf.BoolVar(&flagNoTrend, "no-trend", false, "Hide trendlines")
	pf.BoolVar(&flagNoCache, "no-cache", false, "Skip the SQLite reduction cache")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	pf.StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&flagConfig, "config", "", "Config file (default "+config.ConfigPath()+")")
}

func initRuntime(_ *cobra.Command, _ []string) error {
	if err := logging.Setup(flagLogLevel, flagLogFormat, os.Stderr); err != nil {
		return err
	}
	var err error
	if flagConfig != "" {
		appConfig, err = config.LoadFile(flagConfig)
	} else {
		appConfig, err = config.Load()
	}
	return err
}

// trendParams merges config defaults with any flags given explicitly.
func trendParams(cmd *cobra.Command) model.TrendParams {
	p := appConfig.TrendParams()
	flags := cmd.Flags()
	if flags.Changed("months") {
		p.FuturePeriods = flagMonths
	}
	if flags.Changed("degree") {
		p.Degree = flagDegree
	}
	if flagNoTrend {
		p.Enabled = false
	}
	return p.Normalize()
}

// payloadPaths resolves payload locations: --file, then positional args,
// then the configured default.
func payloadPaths(args []string) ([]string, error) {
	paths := append(append([]string{}, flagFiles...), args...)
	if len(paths) == 0 {
		if p := config.GetPayloadPath(appConfig); p != "" {
			paths = []string{p}
		}
	}
	if len(paths) == 0 {
		return nil, errNoPayload
	}
	return paths, nil
}

// loadData is the shared data loading path used by all commands.
// Uses the SQLite cache when available for fast subsequent runs.
func loadData(args []string) (*pipeline.CachedLoadResult, error) {
	paths, err := payloadPaths(args)
	if err != nil {
		return nil, err
	}
	tracked := appConfig.Tracked()

	if !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Reading %s...\n", strings.Join(paths, ", "))
	}

	progressFn := func(current, total int) {
		if flagQuiet || total < 2 {
			return
		}
		fmt.Fprintf(os.Stderr, "\r  Parsing %s", cli.RenderProgressBar(current, total, 20))
	}

	if !flagNoCache {
		cache, err := store.Open(pipeline.CachePath())
		if err != nil {
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "  Cache unavailable, doing full parse\n")
			}
		} else {
			defer func() { _ = cache.Close() }()

			cr, err := pipeline.LoadWithCache(paths, tracked, cache, progressFn)
			if err != nil {
				return nil, err
			}
			if !cr.CacheHit && len(cr.Records) > 0 {
				if err := cr.RecordUpload(cache, strings.Join(paths, ",")); err != nil && !flagQuiet {
					fmt.Fprintf(os.Stderr, "  %v\n", err)
				}
			}
			reportLoad(cr)
			return cr, nil
		}
	}

	loaded, err := pipeline.Load(paths, progressFn)
	if err != nil {
		return nil, err
	}
	cr := pipeline.Reduce(loaded, tracked)
	reportLoad(cr)
	return cr, nil
}

func reportLoad(cr *pipeline.CachedLoadResult) {
	if flagQuiet {
		return
	}
	if cr.TotalFiles > 1 {
		fmt.Fprintln(os.Stderr)
	}
	source := "parsed"
	if cr.CacheHit {
		source = "loaded from cache"
	}
	fmt.Fprintf(os.Stderr, "  %s snapshots %s, %d months\n",
		cli.FormatNumber(int64(cr.Total)), source, len(cr.Records))
}

// loadDashboard loads the payload and builds the dashboard, printing the
// "no data" message when nothing could be read.
func loadDashboard(cmd *cobra.Command, args []string) (model.Dashboard, bool, error) {
	cr, err := loadData(args)
	if err != nil {
		return model.Dashboard{}, false, err
	}
	if cr.NoData() {
		fmt.Println("\n  No data: the payload is not JSON.")
		return model.Dashboard{}, false, nil
	}
	d := cr.Build(appConfig.Tracked(), trendParams(cmd))
	if d.Empty() {
		fmt.Println("\n  Nothing to display: no snapshot had a readable timestamp.")
		return d, false, nil
	}
	printWarnings(cr)
	return d, true, nil
}

func printWarnings(cr *pipeline.CachedLoadResult) {
	if cr.FileErrors > 0 {
		fmt.Fprintln(os.Stderr, cli.RenderWarning(fmt.Sprintf("%d files could not be parsed", cr.FileErrors)))
		for _, err := range cr.Errors {
			fmt.Fprintf(os.Stderr, "    %v\n", err)
		}
	}
	if cr.Dropped > 0 {
		fmt.Fprintln(os.Stderr, cli.RenderWarning(fmt.Sprintf("%d snapshots dropped for unreadable timestamps", cr.Dropped)))
	}
}
