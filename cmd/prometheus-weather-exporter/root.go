package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	verbosity int
	quiet     bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "prometheus-weather-exporter",
	Short: "Export current weather data as Prometheus metrics",
	Long: `Prometheus Weather Exporter queries weather providers for the configured
locations on every scrape and renders the readings as Prometheus text or
OpenMetrics, depending on the Accept header of the scraper.

Supported providers: OpenWeather, Meteoblue, Tomorrow.io, Deutscher
Wetterdienst (via Bright Sky) and Open-Meteo.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v warn, -vv info, -vvv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "disable logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
}
