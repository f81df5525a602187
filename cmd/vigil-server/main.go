package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nawedy/vigil/internal/api"
	"github.com/nawedy/vigil/internal/chaos"
	"github.com/nawedy/vigil/internal/config"
	"github.com/nawedy/vigil/internal/cost"
	"github.com/nawedy/vigil/internal/dashboard"
	"github.com/nawedy/vigil/internal/health"
	"github.com/nawedy/vigil/internal/loadgen"
	"github.com/nawedy/vigil/internal/metrics"
	"github.com/nawedy/vigil/internal/monitor"
	"github.com/nawedy/vigil/internal/reactor"
	"github.com/nawedy/vigil/internal/scheduler"
	"github.com/nawedy/vigil/internal/secrets"
	"github.com/nawedy/vigil/internal/storage/sqlite"
	"github.com/nawedy/vigil/internal/synthetic"
)

func main() {
	cfg := parseFlags()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting Vigil server...")
	log.Printf("Config: port=%d, db=%s, source=%s", cfg.Port, cfg.DBPath, cfg.SourceType)

	// Storage
	store, err := sqlite.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	// The shaper backs the chaos network injector; outbound metric
	// fetches and synthetic probes route through it so injected latency
	// is observable.
	shaper := chaos.NewTransportShaper(nil)

	// Metric sources
	var sources metrics.Sources
	switch cfg.SourceType {
	case "fixture":
		fixture := metrics.NewFixtureSource()
		if err := fixture.LoadDirectory(cfg.FixtureDir); err != nil {
			log.Fatalf("Failed to load fixtures: %v", err)
		}
		sources = fixture.Sources()
		log.Printf("Using fixture sources from: %s", cfg.FixtureDir)

	case "live":
		if cfg.MonitorTarget == "" {
			log.Fatalf("monitor-target required for live source")
		}
		live := metrics.NewHTTPSource(cfg.MonitorTarget, 10*time.Second)
		live.SetTransport(shaper)
		sources = live.Sources()
		log.Printf("Using live snapshot source: %s", cfg.MonitorTarget)

	default:
		log.Fatalf("Unknown source type: %s", cfg.SourceType)
	}

	// Monitoring pipeline
	var notifier reactor.Notifier
	if cfg.AlertWebhookURL != "" {
		notifier = reactor.NewWebhookNotifier(cfg.AlertWebhookURL)
		log.Printf("Alert webhook: %s", cfg.AlertWebhookURL)
	}

	sink := dashboard.NewSink(prometheus.DefaultRegisterer)
	mon := monitor.NewMonitor(
		metrics.NewCollector(sources, nil),
		health.NewClassifier(),
		reactor.NewReactor(store, notifier, nil),
		store,
		sink,
	)

	// Cost tracking
	costSources := []cost.Source{
		cost.NewStorageCostSource(dbFileSizer{path: cfg.DBPath}, 0.10),
	}
	if cfg.BillingURL != "" {
		costSources = append(costSources, cost.NewCloudBillingSource(cost.DefaultBillingConfig(cfg.BillingURL)))
		log.Printf("Billing source: %s", cfg.BillingURL)
	}
	tracker := cost.NewTracker(costSources, store, cfg.CostAlertFactor)

	// Synthetic checks
	registry := synthetic.NewRegistry()
	var runner *synthetic.Runner
	if cfg.CheckDir != "" {
		if err := loadChecks(cfg, registry); err != nil {
			log.Fatalf("Failed to load checks: %v", err)
		}

		var latest synthetic.LatestCache
		if cfg.RedisAddr != "" {
			latest = synthetic.NewRedisCache(cfg.RedisAddr, cfg.LatestCacheTTL)
			log.Printf("Latest-result cache: redis at %s", cfg.RedisAddr)
		} else {
			latest = synthetic.NewMemoryCache(cfg.LatestCacheTTL)
		}

		secretCache := secrets.NewCache(envSecretFetcher, cfg.LatestCacheTTL)
		runner = synthetic.NewRunner(registry, secretCache, latest, store, cfg.CheckConcurrency)
		runner.SetTransport(shaper)
	}

	// Chaos
	orchestrator := chaos.NewOrchestrator(
		[]chaos.Injector{
			chaos.NewCPUInjector(),
			chaos.NewMemoryInjector(),
			chaos.NewNetworkInjector(shaper),
		},
		loadgen.NewGenerator(10*time.Second),
		store,
		func(ctx context.Context) []metrics.ServiceHealth { return mon.Snapshot() },
		cfg.ChaosRecoveryTimeout,
	)

	// Background tasks
	sched := scheduler.NewScheduler()
	mustRegister(sched, scheduler.Task{
		Name:     "monitor",
		Interval: cfg.MonitorInterval,
		Run: func(ctx context.Context) {
			mon.RunCycle(ctx)
		},
	})
	mustRegister(sched, scheduler.Task{
		Name:     "cost",
		Interval: cfg.CostInterval,
		Run: func(ctx context.Context) {
			if _, err := tracker.TrackCosts(ctx, cfg.CostInterval); err != nil {
				log.Printf("Warning: cost tracking cycle failed: %v", err)
			}
		},
	})
	if runner != nil {
		mustRegister(sched, scheduler.Task{
			Name:     "checks",
			Interval: cfg.CheckInterval,
			Run: func(ctx context.Context) {
				runner.RunChecks(ctx)
			},
		})
	}

	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// HTTP API
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(mon, tracker, registry, runner, orchestrator, store, addr)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- apiServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}

		// Active faults must not outlive the process
		if orchestrator.Running() {
			if _, err := orchestrator.StopChaosTest(); err != nil {
				log.Printf("Error stopping chaos test: %v", err)
			}
		}

		sched.Stop()
		log.Println("Shutdown complete")
	}
}

// loadChecks loads and validates check definitions into the registry
func loadChecks(cfg config.Config, registry *synthetic.Registry) error {
	validator, err := synthetic.NewValidator(cfg.CheckSchemaPath)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	if validationErrors := validator.ValidateDirectory(cfg.CheckDir); len(validationErrors) > 0 {
		for _, ve := range validationErrors {
			log.Printf("Check validation error: %s", ve.Error())
		}
		return fmt.Errorf("check validation failed: %d errors", len(validationErrors))
	}

	checks, loadErrors := synthetic.LoadFromDirectory(cfg.CheckDir)
	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load checks: %d errors", len(loadErrors))
	}

	for _, checkWithFile := range checks {
		if err := registry.Add(checkWithFile.Check); err != nil {
			return fmt.Errorf("failed to register check %s: %w", checkWithFile.Check.Name, err)
		}
	}

	log.Printf("Loaded %d checks from %s", registry.Size(), cfg.CheckDir)
	return nil
}

func mustRegister(sched *scheduler.Scheduler, task scheduler.Task) {
	if err := sched.Register(task); err != nil {
		log.Fatalf("Failed to register %s task: %v", task.Name, err)
	}
}

// envSecretFetcher resolves check header secrets from the environment
func envSecretFetcher(ctx context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("secret %s not set", name)
	}
	return value, nil
}

// dbFileSizer reports the sqlite database size for storage cost accounting
type dbFileSizer struct {
	path string
}

func (d dbFileSizer) SizeGB(ctx context.Context) (float64, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat database file: %w", err)
	}
	return float64(info.Size()) / (1 << 30), nil
}

func parseFlags() config.Config {
	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "Path to YAML config file (flags override)")

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	flag.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.SourceType, "source", cfg.SourceType, "Metrics source type (live|fixture)")
	flag.StringVar(&cfg.FixtureDir, "fixture-dir", cfg.FixtureDir, "Directory containing metric fixture files")
	flag.StringVar(&cfg.MonitorTarget, "monitor-target", cfg.MonitorTarget, "Snapshot URL for the live source")
	flag.StringVar(&cfg.CheckDir, "check-dir", cfg.CheckDir, "Directory containing synthetic check YAML files")
	flag.StringVar(&cfg.CheckSchemaPath, "check-schema", cfg.CheckSchemaPath, "JSON Schema for check definitions")
	flag.Int64Var(&cfg.CheckConcurrency, "check-concurrency", cfg.CheckConcurrency, "Concurrent synthetic check limit")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the latest-result cache (empty for in-memory)")
	flag.StringVar(&cfg.AlertWebhookURL, "alert-webhook", cfg.AlertWebhookURL, "Webhook URL for incident alerts")
	flag.StringVar(&cfg.BillingURL, "billing-url", cfg.BillingURL, "Cloud billing API URL")
	flag.Float64Var(&cfg.CostAlertFactor, "cost-alert-factor", cfg.CostAlertFactor, "Cost anomaly multiple of the trailing average")
	flag.DurationVar(&cfg.MonitorInterval, "monitor-interval", cfg.MonitorInterval, "Monitoring cycle interval")
	flag.DurationVar(&cfg.CostInterval, "cost-interval", cfg.CostInterval, "Cost collection interval")
	flag.DurationVar(&cfg.CheckInterval, "check-interval", cfg.CheckInterval, "Synthetic check interval")

	flag.Parse()

	if *configPath == "" {
		return cfg
	}

	// File values sit between defaults and flags: load the file, then
	// re-apply only the flags the operator actually set.
	fromFlags := cfg
	cfg = config.DefaultConfig()
	if err := cfg.LoadFile(*configPath); err != nil {
		log.Fatalf("Failed to load config file: %v", err)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = fromFlags.Port
		case "host":
			cfg.Host = fromFlags.Host
		case "db-path":
			cfg.DBPath = fromFlags.DBPath
		case "source":
			cfg.SourceType = fromFlags.SourceType
		case "fixture-dir":
			cfg.FixtureDir = fromFlags.FixtureDir
		case "monitor-target":
			cfg.MonitorTarget = fromFlags.MonitorTarget
		case "check-dir":
			cfg.CheckDir = fromFlags.CheckDir
		case "check-schema":
			cfg.CheckSchemaPath = fromFlags.CheckSchemaPath
		case "check-concurrency":
			cfg.CheckConcurrency = fromFlags.CheckConcurrency
		case "redis-addr":
			cfg.RedisAddr = fromFlags.RedisAddr
		case "alert-webhook":
			cfg.AlertWebhookURL = fromFlags.AlertWebhookURL
		case "billing-url":
			cfg.BillingURL = fromFlags.BillingURL
		case "cost-alert-factor":
			cfg.CostAlertFactor = fromFlags.CostAlertFactor
		case "monitor-interval":
			cfg.MonitorInterval = fromFlags.MonitorInterval
		case "cost-interval":
			cfg.CostInterval = fromFlags.CostInterval
		case "check-interval":
			cfg.CheckInterval = fromFlags.CheckInterval
		}
	})

	return cfg
}
