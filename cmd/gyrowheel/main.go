package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gyrowheel/internal/config"
	"gyrowheel/internal/report"
	"gyrowheel/internal/web"
)

const defaultConfigPath = "/etc/gyrowheel/config.yaml"

var rootCmd = &cobra.Command{
	Use:   "gyrowheel",
	Short: "motion steering wheel controller",
	Long: `gyrowheel turns the roll of an IMU-equipped wheel into a steering axis and
combines it with a key matrix, gear buttons, a joystick and pedals into one
game controller report, pushed to a connected host.

Configuration is read from --config, or ` + defaultConfigPath + ` when present.`,
	SilenceUsage: true,
	RunE:         runE,
}

var descriptorCmd = &cobra.Command{
	Use:   "descriptor",
	Short: "print the report descriptor and field layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "report_id=%d size=%d\n", report.ID, report.Size)
		fmt.Fprintf(out, "descriptor=%s\n", hex.EncodeToString(report.Descriptor))
		for _, f := range report.Layout {
			fmt.Fprintf(out, "  %-12s offset=%-2d size=%d signed=%v\n", f.Name, f.Offset, f.Size, f.Signed)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the effective configuration with defaults applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, _, err := loadConfig(path)
		if err != nil {
			return err
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to YAML config")
	rootCmd.Flags().Bool("debug", false, "toggle debug logging")
	rootCmd.AddCommand(descriptorCmd, configCmd)
}

// loadConfig reads path, or the default location when path is empty. With
// neither present the built-in defaults are used.
func loadConfig(path string) (config.Config, string, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return config.Default(), "", nil
			}
			return config.Config{}, "", err
		}
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, path, nil
}

func setupLogging(c config.LogConfig, debug bool, logs *web.LogBuffer) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if logs != nil {
		log.AddHook(logs)
	}
}

func runE(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, used, err := loadConfig(path)
	if err != nil {
		return err
	}
	logs := web.NewLogBuffer(2000)
	setupLogging(cfg.Log, debug, logs)
	if used == "" {
		log.Info("no config file, using defaults")
	} else {
		log.WithField("path", used).Info("config loaded")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	log.Info("gyrowheel starting")
	err = rt.run(ctx, logs)
	log.Info("gyrowheel stopping")
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
