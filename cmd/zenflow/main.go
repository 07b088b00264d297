package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pbinitiative/zenflow/internal/config"
	"github.com/pbinitiative/zenflow/internal/log"
	"github.com/pbinitiative/zenflow/internal/otel"
	"github.com/pbinitiative/zenflow/internal/profile"
	"github.com/pbinitiative/zenflow/pkg/access"
	"github.com/pbinitiative/zenflow/pkg/action"
	"github.com/pbinitiative/zenflow/pkg/bus"
	"github.com/pbinitiative/zenflow/pkg/flow"
	"github.com/pbinitiative/zenflow/pkg/graph"
	"github.com/pbinitiative/zenflow/pkg/rules"
	storageinmemory "github.com/pbinitiative/zenflow/pkg/storage/inmemory"
	"github.com/pbinitiative/zenflow/pkg/timer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	profile.InitProfile()
	log.Init()

	conf := config.InitConfig()

	openTelemetry, err := otel.SetupOtel(conf.Name)
	if err != nil {
		log.Error("Failed to set up OTEL: %s", err)
		os.Exit(1)
	}
	metricsSrv := startMetricsServer(conf.Metrics.Addr)

	b := bus.NewInMemoryBus(
		bus.WithWorkers(conf.Bus.Workers),
		bus.WithQueueSize(conf.Bus.QueueSize),
	)

	definitions, err := graph.NewCachedQuery(graph.NewInMemoryGraph(), conf.Engine.GraphCacheSize)
	if err != nil {
		log.Error("Failed to set up definition cache: %s", err)
		os.Exit(1)
	}
	collaborators := flow.Collaborators{
		Graph:     definitions,
		Store:     storageinmemory.New(),
		Access:    access.StaticIssuer{ServiceToken: conf.Collaborators.ServiceToken},
		Rules:     rules.NewFeelEvaluator(),
		Templates: rules.NewJsTemplateEngine(),
		Actions:   action.NewRegistry(),
	}

	timerManager := timer.NewManager(b)
	timerManager.Start()
	if err := b.Subscribe(flow.NotificationTimerSchedule, "timer-manager", timerManager.HandleSchedule); err != nil {
		log.Error("Failed to subscribe timer manager: %s", err)
		os.Exit(1)
	}

	handlers := []interface{ Start() error }{
		flow.NewRouter(b),
		flow.NewEventHandler(b, collaborators),
		flow.NewActivityHandler(b, collaborators),
		flow.NewGatewayHandler(b, collaborators, conf.Engine.AtomicJoins),
		flow.NewSequenceHandler(b, collaborators, conf.Engine.AtomicJoins),
		flow.NewNextHandler(b, collaborators),
	}
	for _, h := range handlers {
		if err := h.Start(); err != nil {
			log.Error("Failed to start flow handler: %s", err)
			os.Exit(1)
		}
	}

	appStop := make(chan os.Signal, 2)
	signal.Notify(appStop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	handleSigterm(appStop)

	// cleanup
	timerManager.Stop()
	b.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to properly stop metrics server: %s", err)
	}
	openTelemetry.Stop(shutdownCtx)
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server failed: %s", err)
		}
	}()
	return srv
}

func handleSigterm(appStop chan os.Signal) {
	sig := <-appStop
	log.Infof("Received %s. Shutting down", sig.String())
}
