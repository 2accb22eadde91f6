package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/geocomp/internal/config"
	"github.com/okian/geocomp/pkg/logger"
)

// cli carries state shared by every command after the root pre-run.
type cli struct {
	configFile string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "geocomp",
		Short: "Cloud-masked temporal composites of satellite archives",
		Long: `geocomp builds mean composites of cloud-masked image archives, clipped to
a named region, and exports them as GeoTIFFs through an asynchronous job queue.

Examples:
  geocomp serve
  geocomp export --region muns_city --start 2022-01-01 --end 2023-01-01
  geocomp describe --region muns_city
  geocomp preview --region muns_city --out land8.png
  geocomp change --year1 data/2013 --year2 data/2022 --index ndvi`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.init,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", os.Getenv("GEOCOMP_CONFIG"), "YAML config file (env GEOCOMP_CONFIG)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(c),
		newExportCmd(c),
		newDescribeCmd(c),
		newPreviewCmd(c),
		newChangeCmd(c),
	)
	return root
}

// init loads configuration (defaults -> optional file -> env) and the logger.
func (c *cli) init(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(cmd.Context(), c.configFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	c.cfg = cfg

	// Logs go to stderr so command output on stdout stays machine readable.
	if err := logger.InitWith(logger.Options{Format: cfg.LogFormat, Output: "stderr"}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}
