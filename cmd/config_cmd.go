package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/snapdash/internal/config"
	"github.com/theirongolddev/snapdash/internal/pipeline"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	path := config.ConfigPath()
	if flagConfig != "" {
		path = flagConfig
	}

	fmt.Printf("  Config file: %s\n", path)
	if config.Exists() || flagConfig != "" {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Printf("  Cache:       %s\n", pipeline.CachePath())
	fmt.Println()

	p := trendParams(cmd)
	fmt.Println("  [General]")
	fmt.Printf("    Projected months: %d\n", p.FuturePeriods)
	fmt.Printf("    Trend degree:     %d\n", p.Degree)
	fmt.Printf("    Show trendline:   %v\n", p.Enabled)
	if payload := config.GetPayloadPath(cfg); payload != "" {
		fmt.Printf("    Payload:          %s\n", payload)
	}
	fmt.Println()

	fmt.Println("  [Metrics]")
	for _, tm := range cfg.Tracked() {
		fmt.Printf("    %-36s %s\n", tm.Column, tm.Key)
	}
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address:        %s\n", cfg.Server.Addr)
	fmt.Printf("    Sessions:       %s (ttl %s)\n", cfg.Server.SessionBackend, cfg.Server.SessionTTL)
	fmt.Printf("    Max upload:     %d MB\n", cfg.Server.MaxUploadBytes()>>20)
	if cfg.Server.SessionBackend == config.BackendRedis {
		fmt.Printf("    Redis:          %s db %d\n", cfg.Server.RedisAddr, cfg.Server.RedisDB)
		if pw := config.GetRedisPassword(cfg); pw != "" {
			fmt.Printf("    Redis password: %s\n", maskSecret(pw))
		} else {
			fmt.Println("    Redis password: not configured")
		}
	}
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `snapdash setup` to reconfigure.")
	return nil
}

func maskSecret(s string) string {
	if len(s) > 12 {
		return s[:4] + "..." + s[len(s)-4:]
	}
	return "****"
}
