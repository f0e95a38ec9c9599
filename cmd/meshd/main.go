// Command meshd runs the service registry, circuit breakers and resilient
// client behind an introspection HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/meshkit/bootstrap"
	"github.com/kbukum/meshkit/component"
	"github.com/kbukum/meshkit/config"
	"github.com/kbukum/meshkit/discovery"
	"github.com/kbukum/meshkit/httpclient"
	"github.com/kbukum/meshkit/logger"
	"github.com/kbukum/meshkit/observability"
	"github.com/kbukum/meshkit/resilience"
	"github.com/kbukum/meshkit/server"
	"github.com/kbukum/meshkit/sse"
	"github.com/kbukum/meshkit/version"
)

const serviceName = "meshd"

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	flag.Parse()

	if err := run(context.Background(), *configFile); err != nil {
		logger.Error("meshd exited", logger.MergeWithError(nil, err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	cfg := &MeshConfig{}
	opts := []config.LoaderOption{config.WithEnvPrefix("MESHD")}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return err
	}
	build := version.Get()
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	if cfg.Version == "" {
		cfg.Version = build.Short()
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	if err := wire(ctx, app, build); err != nil {
		return err
	}
	return app.Run(ctx)
}

// wire builds registry, breakers, client and server in dependency order and
// registers them with the app.
func wire(ctx context.Context, app *bootstrap.App[*MeshConfig], build version.Info) error {
	cfg := app.Cfg

	providers, err := observability.Init(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	metrics, err := observability.NewMetrics(observability.Meter(cfg.Name))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	disc, err := discovery.NewComponent(cfg.Discovery, app.Logger)
	if err != nil {
		return err
	}
	registry := disc.Registry()
	events := sse.NewComponent("/events", app.Logger)
	forward := sse.ForwardRegistryEvents(events.Hub())
	unsubscribe := registry.Subscribe(func(e discovery.Event) {
		metrics.RecordRegistryEvent(context.Background(), e.Service, string(e.Type))
		forward(e)
	})

	breakers, err := resilience.NewRegistry(cfg.Breakers, app.Logger, resilience.WithMetrics(metrics))
	if err != nil {
		return err
	}

	client, err := httpclient.NewResilient(cfg.Client, registry, app.Logger,
		httpclient.WithCircuitBreakers(breakers),
		httpclient.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, app.Logger)
	srv.RegisterIntrospection(server.Introspection{
		ServiceName: cfg.Name,
		Version:     cfg.Version,
		Health:      app.Components.HealthAll,
		Breakers:    breakers,
		Services:    registry,
		Stats:       client,
		Events:      events.Hub(),
		Build:       &build,
	})

	components := []component.Component{
		events,
		disc,
		resilience.NewRegistryComponent(breakers),
		httpclient.NewComponent(client),
		server.NewComponent(srv),
	}
	for _, c := range components {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	app.OnStop(func(ctx context.Context) error {
		unsubscribe()
		return providers.Shutdown(ctx)
	})
	return nil
}
