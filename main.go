package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/ibeckermayer/deepfeed/internal/app"
	"github.com/ibeckermayer/deepfeed/internal/config"
	"github.com/ibeckermayer/deepfeed/internal/logging"
	"github.com/ibeckermayer/deepfeed/internal/tui"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := run(); err != nil {
		if errors.Is(err, config.ErrConfigurationMissing) {
			path, _ := config.ConfigPath()
			fmt.Fprintf(os.Stderr, "deepfeed: %v\n", err)
			fmt.Fprintf(os.Stderr, "Set [generation] api_key in %s, export DEEPFEED_API_KEY, or use provider = \"fixture\".\n", path)
			os.Exit(2)
		}
		log.Fatalf("deepfeed: %v", err)
	}
}

func run() error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}

	// Load or create configuration
	cfg, err := config.LoadFrom(path)
	if err != nil {
		log.Printf("Warning: could not load config: %v (using defaults)", err)
		cfg = config.Default()
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		// First run - create default config
		if err := cfg.SaveTo(path); err != nil {
			log.Printf("Warning: could not save default config: %v", err)
		} else {
			log.Printf("Created default config at: %s", path)
		}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(cfg, app.Deps{}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := a.NewSession()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(tui.New(ctx, session, a, logger), tea.WithAltScreen())

	// the session belongs to the program; the scheduler only asks for a flush
	if err := a.Start(func() { p.Send(tui.FlushMsg{}) }); err != nil {
		return err
	}
	go func() {
		if err := a.WatchConfig(ctx, path, nil); err != nil {
			logger.Warn("config watch stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := a.ServeMetrics(ctx); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("deepfeed starting", zap.String("config", path))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run ui: %w", err)
	}
	return nil
}
