package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/conveyor/internal/audit"
	"github.com/slok/conveyor/internal/conventions"
	"github.com/slok/conveyor/internal/conveyor"
	"github.com/slok/conveyor/internal/handlers"
	"github.com/slok/conveyor/internal/hook"
	"github.com/slok/conveyor/internal/log"
	"github.com/slok/conveyor/internal/metrics"
	"github.com/slok/conveyor/internal/model"
	"github.com/slok/conveyor/internal/storage/io"
	"github.com/slok/conveyor/internal/utils/kv"
	"github.com/slok/conveyor/internal/worker"
)

const metricsShutdownTimeout = 5 * time.Second

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	configFile            string
	handlerName           string
	workers               int
	autoResolve           bool
	auditDir              string
	pollInterval          time.Duration
	resolutionErrorPolicy string
	handleSpecs           []string
	metricsListenAddr     string
	once                  bool

	handlerNameSet           bool
	workersSet               bool
	autoResolveSet           bool
	auditDirSet              bool
	pollIntervalSet          bool
	resolutionErrorPolicySet bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the task engine until a termination signal is received.")
	c.Cmd.Flag("config", "Path to a YAML run configuration file, flags override its values.").Short('c').StringVar(&c.configFile)
	c.Cmd.Flag("handler-name", "Identity of the engine, it executes tasks addressed to it or to any handler.").IsSetByUser(&c.handlerNameSet).StringVar(&c.handlerName)
	c.Cmd.Flag("workers", "Concurrent task executions, -1 is unbounded.").Default("-1").IsSetByUser(&c.workersSet).IntVar(&c.workers)
	c.Cmd.Flag("auto-resolve", "Complete the tasks the handler leaves unresolved instead of denying them.").IsSetByUser(&c.autoResolveSet).BoolVar(&c.autoResolve)
	c.Cmd.Flag("audit-dir", fmt.Sprintf("Directory for the audit session files (e.g %s), disabled when empty.", conventions.AuditPath(homedir.HomeDir()))).IsSetByUser(&c.auditDirSet).StringVar(&c.auditDir)
	c.Cmd.Flag("poll-interval", "Delay between poll cycles.").Default("1s").IsSetByUser(&c.pollIntervalSet).DurationVar(&c.pollInterval)
	c.Cmd.Flag("resolution-error-policy", "What to do when a task resolution can't be stored (log, notify).").Default(string(conveyor.ResolutionErrorPolicyLog)).IsSetByUser(&c.resolutionErrorPolicySet).EnumVar(&c.resolutionErrorPolicy, string(conveyor.ResolutionErrorPolicyLog), string(conveyor.ResolutionErrorPolicyNotify))
	c.Cmd.Flag("handle", fmt.Sprintf("Task type handler (TYPE=HANDLER), handlers: %v. Can be repeated.", handlers.Names())).Short('H').StringsVar(&c.handleSpecs)
	c.Cmd.Flag("metrics-listen-address", "Address to serve Prometheus metrics on, disabled when empty.").StringVar(&c.metricsListenAddr)
	c.Cmd.Flag("once", "Run a single poll cycle, wait for its tasks and exit.").BoolVar(&c.once)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Load run config from YAML if provided.
	var fileCfg model.RunConfig
	if c.configFile != "" {
		configPath := c.configFile
		if !filepath.IsAbs(configPath) {
			absPath, err := filepath.Abs(configPath)
			if err != nil {
				return fmt.Errorf("could not resolve run config path: %w", err)
			}
			configPath = absPath
		}

		configRepo := io.NewRunConfigYAMLRepository(os.DirFS("/"))
		var err error
		fileCfg, err = configRepo.GetRunConfig(ctx, configPath[1:])
		if err != nil {
			return fmt.Errorf("could not load run config: %w", err)
		}
	}

	cfg, err := c.runConfig(fileCfg)
	if err != nil {
		return err
	}

	repo, err := c.rootCmd.newRepository(ctx, c.rootCmd.storeConfig(cfg.Store))
	if err != nil {
		return err
	}
	defer repo.Close()

	auditLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
		Dir:    cfg.AuditDir,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create audit logger: %w", err)
	}

	hooks := hook.NewRegistry(logger)
	hooks.Register(hook.NewLogger(logger))

	promReg := prometheus.NewRegistry()
	if c.metricsListenAddr != "" {
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder, err := metrics.NewRecorder(promReg)
		if err != nil {
			return fmt.Errorf("could not create metrics recorder: %w", err)
		}
		hooks.Register(recorder)
	}

	engine, err := conveyor.New(conveyor.Config{
		HandlerName:           cfg.HandlerName,
		Repository:            repo,
		WorkerPoolSize:        *cfg.Workers,
		AutoResolve:           *cfg.AutoResolve,
		PollInterval:          cfg.PollInterval,
		Audit:                 auditLogger,
		Hooks:                 hooks,
		ResolutionErrorPolicy: conveyor.ResolutionErrorPolicy(cfg.ResolutionErrorPolicy),
		Logger:                logger,
	})
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	if err := handlers.Register(engine, cfg.Handlers, logger); err != nil {
		return fmt.Errorf("could not register handlers: %w", err)
	}
	if len(engine.RegisteredTypes()) == 0 {
		logger.Warningf("No task types registered, every claimed task will be denied")
	}

	if c.once {
		return engine.RunOnce(ctx)
	}

	var g run.Group

	// Engine.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return engine.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Metrics.
	if c.metricsListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.NewHandler(promReg))
		server := &http.Server{
			Addr:              c.metricsListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		mLogger := logger.WithValues(log.Kv{"addr": c.metricsListenAddr})

		g.Add(
			func() error {
				mLogger.Infof("Serving metrics")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					mLogger.Errorf("Could not shutdown metrics server: %s", err)
				}
			},
		)
	}

	return g.Run()
}

// runConfig merges the file configuration with the flags, flags set by the user
// win over the file values and the file values win over the flag defaults.
func (c RunCommand) runConfig(fileCfg model.RunConfig) (model.RunConfig, error) {
	cfg := fileCfg

	if c.handlerNameSet || cfg.HandlerName == "" {
		cfg.HandlerName = c.handlerName
	}
	if cfg.HandlerName == "" {
		return model.RunConfig{}, fmt.Errorf("handler name is required: %w", model.ErrNotValid)
	}

	if c.workersSet || cfg.Workers == nil {
		workers := c.workers
		cfg.Workers = &workers
	}
	if *cfg.Workers < worker.Unbounded {
		return model.RunConfig{}, fmt.Errorf("workers must be positive or %d (unbounded): %w", worker.Unbounded, model.ErrNotValid)
	}

	if c.autoResolveSet || cfg.AutoResolve == nil {
		autoResolve := c.autoResolve
		cfg.AutoResolve = &autoResolve
	}

	if c.auditDirSet || cfg.AuditDir == "" {
		cfg.AuditDir = c.auditDir
	}

	if c.pollIntervalSet || cfg.PollInterval == 0 {
		cfg.PollInterval = c.pollInterval
	}
	if cfg.PollInterval <= 0 {
		return model.RunConfig{}, fmt.Errorf("poll interval must be positive: %w", model.ErrNotValid)
	}

	if c.resolutionErrorPolicySet || cfg.ResolutionErrorPolicy == "" {
		cfg.ResolutionErrorPolicy = c.resolutionErrorPolicy
	}

	cliHandlers, err := kv.ParseSpecs(c.handleSpecs)
	if err != nil {
		return model.RunConfig{}, fmt.Errorf("invalid --handle value: %w", err)
	}
	cfg.Handlers = kv.MergeMaps(cfg.Handlers, cliHandlers)

	return cfg, nil
}
