// Package main is the entry point for toolgate, an HTTP gateway that
// aggregates declarative tool modules under one server and one merged
// OpenAPI document.
package main

import (
	"flag"
	"fmt"
	"os"

	gatehttp "github.com/artpar/toolgate/adapters/http"
	"github.com/artpar/toolgate/bootstrap"
	"github.com/artpar/toolgate/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "toolgate.yaml", "Path to configuration file")
	modulesRoot := flag.String("root", "", "Modules root directory (overrides config)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("toolgate %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		os.Exit(1)
	}
	if *modulesRoot != "" {
		cfg.Modules.Root = *modulesRoot
	}

	if *validate {
		fmt.Printf("Configuration valid\n")
		fmt.Printf("  Address: %s\n", cfg.Addr())
		fmt.Printf("  Modules root: %s\n", cfg.Modules.Root)
		os.Exit(0)
	}

	gatehttp.Version = version

	app, err := bootstrap.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		app.Logger.Error().Err(err).Msg("gateway exited with error")
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist so a bare `toolgate -root ./servers` works.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "toolgate.yaml" {
		return config.Default(), nil
	}
	return config.Load(path)
}
