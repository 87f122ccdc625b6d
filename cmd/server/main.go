// Command server launches the WorkflowGenie application server: it resolves
// configuration from the environment, wires logging and telemetry, starts the
// background initializer and serves the application callable until a
// termination signal arrives.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Tar-2005/Workflowgenie/app"
	"github.com/Tar-2005/Workflowgenie/bootstrap"
	"github.com/Tar-2005/Workflowgenie/config"
	"github.com/Tar-2005/Workflowgenie/opentelemetry"
	"github.com/Tar-2005/Workflowgenie/server"
	"github.com/Tar-2005/Workflowgenie/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, _, err := zap.New(zap.Config{
		Environment:     zap.Environment(cfg.EnvName),
		Level:           cfg.LogLevel,
		OTelLibraryName: cfg.ServiceName,
	})
	if err != nil {
		return err
	}

	telemetry, err := opentelemetry.InitializeTelemetry(&opentelemetry.TelemetryConfig{
		LibraryName:               cfg.ServiceName,
		ServiceName:               cfg.ServiceName,
		ServiceVersion:            cfg.Version,
		DeploymentEnv:             cfg.EnvName,
		CollectorExporterEndpoint: cfg.OtelExporterEndpoint,
		EnableTelemetry:           cfg.TelemetryEnabled,
		Logger:                    logger,
	})
	if err != nil {
		return err
	}

	initializer := bootstrap.New(logger, warmupSteps()...)
	initializer.Start(context.Background())

	callable := app.Welcome(cfg.ServiceName, "workflow assistant application server")

	supervisor := server.New(cfg, callable, initializer, telemetry, logger)

	return supervisor.Run()
}

// warmupSteps lists the background initialization performed before the
// application callable starts answering. The shipped binary only verifies
// its scratch directory; deployments wiring a real application register
// their own steps here.
func warmupSteps() []bootstrap.Step {
	return []bootstrap.Step{
		{
			Name: "scratch_dir",
			Run: func(_ context.Context) error {
				dir := os.TempDir()

				probe, err := os.CreateTemp(dir, "workflowgenie-*")
				if err != nil {
					return fmt.Errorf("scratch directory %s not writable: %w", dir, err)
				}

				name := probe.Name()

				if err := probe.Close(); err != nil {
					return err
				}

				return os.Remove(name)
			},
		},
	}
}
