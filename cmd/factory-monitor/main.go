// File: cmd/factory-monitor/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/factory-monitor/internal/alert"
	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/health"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/monitor"
	"github.com/smartdevs17/factory-monitor/internal/notification"
	"github.com/smartdevs17/factory-monitor/internal/server"
	"github.com/smartdevs17/factory-monitor/internal/storage"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application represents the main application
type Application struct {
	config       *config.Config
	logger       *logrus.Entry
	metrics      *metrics.Manager
	storage      storage.Storage
	notification *notification.Manager
	runner       *health.Runner
	engine       *alert.Engine
	monitor      *monitor.Monitor
	server       *server.HTTPServer
	startedAt    time.Time
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config:    cfg,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.ComponentLogger("app")
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Info("Logger initialized")

	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	app.metrics = metrics.NewManager()

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initializeNotification(); err != nil {
		return fmt.Errorf("failed to initialize notification: %w", err)
	}

	app.initializeMonitor()

	if app.config.Server.Enabled {
		app.server = server.NewHTTPServer(&app.config.Server, AppVersion, app.storage, app.monitor, app.notification, app.metrics)
	}

	app.logger.Info("All components initialized successfully")
	return nil
}

// initializeStorage opens the database and applies migrations
func (app *Application) initializeStorage() error {
	app.logger.WithField("type", app.config.Storage.Type).Info("Initializing storage layer")

	var err error
	app.storage, err = storage.NewInstrumentedStorage(&app.config.Storage, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	if err := app.storage.Connect(); err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	if err := app.storage.Migrate(); err != nil {
		return fmt.Errorf("failed to run storage migrations: %w", err)
	}

	app.logger.Info("Storage layer initialized successfully")
	return nil
}

// initializeNotification initializes the notification manager
func (app *Application) initializeNotification() error {
	app.notification = notification.NewManager(&app.config.Notifications, app.storage, app.metrics)

	if err := app.notification.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start notification manager: %w", err)
	}
	return nil
}

// initializeMonitor wires the health runner and alert engine into the scheduler
func (app *Application) initializeMonitor() {
	app.runner = health.NewRunner(app.storage, app.config.HealthChecks, health.WithMetrics(app.metrics))
	app.engine = alert.NewEngine(app.storage, app.notification, app.config.Alerts, alert.WithMetrics(app.metrics))
	app.monitor = monitor.New(app.config.Monitor, monitor.Deps{
		Runner:  app.runner,
		Engine:  app.engine,
		Rules:   app.config.Alerts.Rules,
		Metrics: app.metrics,
	})
}

// Start starts the application
func (app *Application) Start() error {
	app.logger.WithFields(logrus.Fields{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
	}).Info("Starting Factory Monitor")

	if app.server != nil {
		if err := app.server.Start(); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	if err := app.monitor.Initialize(app.ctx); err != nil {
		return fmt.Errorf("failed to start system monitor: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"server_enabled":        app.config.Server.Enabled,
		"health_check_interval": app.config.Monitor.HealthCheckInterval,
		"monitoring_interval":   app.config.Monitor.MonitoringInterval,
	}).Info("Factory Monitor started successfully")

	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.logger.Info("Stopping Factory Monitor")

	app.cancel()

	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.monitor != nil {
		if err := app.monitor.Shutdown(); err != nil {
			app.logger.WithError(err).Error("Failed to stop system monitor")
		}
	}

	if app.notification != nil {
		if err := app.notification.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop notification manager")
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.WithField("uptime", time.Since(app.startedAt)).Info("Factory Monitor stopped successfully")
	return nil
}

// CLI Commands

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "factory-monitor",
	Short:   "Factory health and alert monitor",
	Long:    `Periodically checks the health of the factory management backend, raises alerts on degradation and notifies the responsible roles.`,
	Version: AppVersion,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor until interrupted",
	RunE:  runMonitor,
}

// loadConfig reads the config file named by --config and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Logging.Level = viper.GetString("log-level")
	}
	if viper.GetBool("debug") {
		cfg.App.Debug = true
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// runMonitor is the main command to run the monitor
func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		app.Stop()
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	return app.Stop()
}

// checkCmd runs a single health check cycle and prints the results
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one health check cycle and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Server.Enabled = false

		app, err := NewApplication(cfg)
		if err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		defer app.Stop()

		ctx := app.ctx
		if cfg.Monitor.CycleTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Monitor.CycleTimeout)
			defer cancel()
		}

		app.engine.LoadRules(cfg.Alerts.Rules)
		if err := app.engine.RegisterDefinitions(ctx, app.runner.Definitions()); err != nil {
			app.logger.WithError(err).Warn("Failed to register health check definitions")
		}

		results, cycleErr := app.monitor.RunHealthCheckCycle(ctx)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
		return cycleErr
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Factory Monitor %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := storage.ValidateStorageConfig(&cfg.Storage); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration is valid!\n")
		fmt.Fprintf(out, "Environment: %s\n", cfg.App.Environment)
		fmt.Fprintf(out, "Database: %s\n", cfg.Storage.Type)
		fmt.Fprintf(out, "Health check interval: %s\n", cfg.Monitor.HealthCheckInterval)
		fmt.Fprintf(out, "Monitoring interval: %s\n", cfg.Monitor.MonitoringInterval)
		fmt.Fprintf(out, "Alert rules: %d\n", len(cfg.Alerts.Rules))

		return nil
	},
}

// init initializes the CLI commands
func init() {
	// Assigned here rather than in the literal to break the rootCmd -> runMonitor -> loadConfig -> rootCmd initialization cycle.
	rootCmd.RunE = runMonitor

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(validateConfigCmd)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
