package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fdtrlab/internal/config"
	"fdtrlab/internal/logger"
	"fdtrlab/internal/repository/sqlite"
	"fdtrlab/internal/service"
	"fdtrlab/internal/watcher"

	"github.com/google/uuid"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	dbPath := flag.String("db", "", "SQLite result database path (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	sweepOnly := flag.Bool("sweep", false, "compute the configured sweep and exit")
	sensPath := flag.String("sensitivity", "", "compute sensitivity for a parameter path and exit")
	watchMode := flag.Bool("watch", false, "re-run whenever the config file changes")
	listResults := flag.Bool("list", false, "list stored fit results and exit")
	showResult := flag.String("show", "", "show one stored fit result by job id and exit")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	slogger := logger.Setup(cfg.LogLevel)
	if path != "" {
		slogger.Info("config loaded", "path", path)
	} else {
		slogger.Info("no config file found, using defaults")
	}

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *listResults {
		if err := printResultList(ctx, repo); err != nil {
			log.Fatalf("Failed to list results: %v", err)
		}
		return
	}
	if *showResult != "" {
		if err := printResult(ctx, repo, *showResult); err != nil {
			log.Fatalf("Failed to show result: %v", err)
		}
		return
	}

	eventBus := service.NewEventBus()

	// Forward events to the structured log
	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for event := range eventChan {
			slogger.Debug("event", "type", string(event.Type), "payload", event.Payload)
		}
	}()

	run := func(cfg *config.Config) error {
		svc, err := service.NewAnalysisService(cfg, repo, eventBus, slogger)
		if err != nil {
			return err
		}
		switch {
		case *sweepOnly:
			return runSweep(svc)
		case *sensPath != "":
			return runSensitivity(svc, *sensPath)
		case cfg.Fit != nil:
			return runFit(ctx, svc)
		default:
			return runSweep(svc)
		}
	}

	if !*watchMode {
		if err := run(cfg); err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		return
	}

	if path == "" {
		log.Fatal("Watch mode requires a config file")
	}

	reload := make(chan struct{}, 1)
	w := watcher.New(path, func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	}, slogger)
	go func() {
		if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
			slogger.Error("watcher stopped", "error", err)
		}
	}()

	for {
		if err := run(cfg); err != nil {
			slogger.Error("run failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-reload:
			next, _, err := config.LoadFromPath(path)
			if err != nil {
				slogger.Error("config reload failed, keeping previous", "error", err)
				continue
			}
			cfg = next
			eventBus.Publish(service.Event{Type: service.EventConfigReloaded, Payload: map[string]string{"path": path}})
			slogger.Info("config reloaded", "path", path)
		}
	}
}

func loadConfig(explicit string) (*config.Config, string, error) {
	if explicit != "" {
		return config.LoadFromPath(explicit)
	}
	return config.Load()
}

func runSweep(svc *service.AnalysisService) error {
	points, err := svc.Sweep()
	if err != nil {
		return err
	}
	fmt.Println("freq_hz amplitude phase_rad")
	for _, p := range points {
		fmt.Printf("%.6e %.6e %.6e\n", p.FrequencyHz, p.Amplitude, p.PhaseRad)
	}
	return nil
}

func runSensitivity(svc *service.AnalysisService, path string) error {
	freqs, sens, err := svc.Sensitivity(path)
	if err != nil {
		return err
	}
	fmt.Printf("freq_hz sensitivity(%s)\n", path)
	for i := range freqs {
		fmt.Printf("%.6e %.6e\n", freqs[i], sens[i])
	}
	return nil
}

func runFit(ctx context.Context, svc *service.AnalysisService) error {
	res, err := svc.RunFit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("job %s: %s (%s), chisq %.6e, %d evaluations\n",
		res.JobID, res.Status, res.Method, res.ChiSq, res.NEval)
	if res.Err != nil {
		fmt.Printf("error: %v\n", res.Err)
	}
	for name, v := range res.Values {
		if s, ok := res.Stderr[name]; ok {
			fmt.Printf("  %s = %.6g +/- %.3g\n", name, v, s)
		} else {
			fmt.Printf("  %s = %.6g\n", name, v)
		}
	}
	return nil
}

func printResultList(ctx context.Context, repo *sqlite.Repository) error {
	results, err := repo.ListResults(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no stored results")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s  %-9s %-8s chisq %.6e  %s\n",
			r.JobID, r.Status, r.Method, r.ChiSq, r.Started.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printResult(ctx context.Context, repo *sqlite.Repository, id string) error {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", id, err)
	}
	r, err := repo.GetResult(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Printf("job %s: %s (%s), chisq %.6e, %d evaluations\n", r.JobID, r.Status, r.Method, r.ChiSq, r.NEval)
	if r.Error != "" {
		fmt.Printf("error: %s\n", r.Error)
	}
	for _, p := range r.Params {
		line := fmt.Sprintf("  %s = %.6g", p.Name, p.Value)
		if p.Stderr.Valid {
			line += fmt.Sprintf(" +/- %.3g", p.Stderr.Float64)
		}
		if !p.Vary {
			line += " (fixed)"
		}
		fmt.Println(line)
	}
	return nil
}
