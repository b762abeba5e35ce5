// Command skillforged is the daemon: it loads configuration, opens the
// store, starts the event bus, runs startup recovery, and serves the host
// API, per §4.14.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillforge/pkg/analyzer"
	"skillforge/pkg/config"
	"skillforge/pkg/docker"
	"skillforge/pkg/events"
	"skillforge/pkg/hostapi"
	"skillforge/pkg/llm"
	"skillforge/pkg/logging"
	"skillforge/pkg/models"
	"skillforge/pkg/monitor"
	"skillforge/pkg/pipeline"
	"skillforge/pkg/search"
	"skillforge/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "skillforged:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.WithDefaults(), config.FromFile(os.Getenv("SKILLFORGE_CONFIG")), config.FromEnv())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.Info("starting skillforged", "data_dir", cfg.DataDir, "addr", cfg.Server.Addr)

	if err := docker.CheckInstalled(); err != nil {
		logger.Warn("docker not found on PATH; builds will fail until it is installed", "error", err)
	}

	db, err := store.Open(cfg.DataDir + "/skillforge.db")
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	skills, err := store.NewStore(db, "skills", func(s models.Skill) string { return s.ID })
	if err != nil {
		return err
	}
	specs, err := store.NewStore(db, "sandbox_specs", func(s models.SandboxSpec) string { return s.ID })
	if err != nil {
		return err
	}
	sandboxes, err := store.NewStore(db, "sandboxes", func(s models.Sandbox) string { return s.ID })
	if err != nil {
		return err
	}
	runs, err := store.NewStore(db, "pipeline_runs", func(r models.PipelineRun) string { return r.ID })
	if err != nil {
		return err
	}

	bus := events.New(logger, 10)
	dockerDriver := docker.New(docker.Timeouts{
		Build:   cfg.Docker.BuildTimeout,
		Run:     cfg.Docker.RunTimeout,
		Exec:    cfg.Docker.ExecTimeout,
		Stop:    cfg.Docker.StopTimeout,
		Remove:  cfg.Docker.RemoveTimeout,
		Restart: cfg.Docker.RestartTimeout,
	})

	llmClient := llm.New(cfg.LLM)
	spec := analyzer.New(llmClient)

	monitorSupervisor := monitor.NewSupervisor(monitor.Deps{
		Sandboxes: sandboxes, Bus: bus, Docker: dockerDriver, Logger: logger,
	})

	pipelineSupervisor := pipeline.NewSupervisor(pipeline.Deps{
		Runs: runs, Skills: skills, Specs: specs, Sandboxes: sandboxes,
		Bus: bus, Analyzer: spec, Docker: dockerDriver, Monitors: monitorSupervisor,
		Logger: logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pipelineSupervisor.RecoverOnStartup(ctx); err != nil {
		logger.Error("startup recovery failed", "error", err)
	}
	cancel()

	searchClient := search.New(cfg.Server.SearchBaseURL, cfg.Server.SearchAPIKey)
	router := hostapi.NewRouter(hostapi.Deps{
		Pipelines: pipelineSupervisor, Monitors: monitorSupervisor, Search: searchClient, Logger: logger,
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("host API listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("host API server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
