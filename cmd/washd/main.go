package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/waschgehtab/washd/internal/api"
	"github.com/waschgehtab/washd/internal/notify"
	"github.com/waschgehtab/washd/internal/server"
	"github.com/waschgehtab/washd/internal/storage"
	"github.com/waschgehtab/washd/internal/timerwatch"
)

func main() {
	httpAddr := flag.String("http-addr", ":8080", "HTTP listen address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics listen address")
	dbPath := flag.String("db", "./data/badger", "Badger DB path")
	natsURL := flag.String("nats", "", "NATS server URL (empty disables notifications)")
	traceStdout := flag.Bool("trace-stdout", false, "write otel spans to stdout")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *traceStdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Fatal("stdout trace exporter", zap.Error(err))
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	store, err := storage.NewBadgerStore(*dbPath)
	if err != nil {
		log.Fatal("open badger store", zap.Error(err))
	}
	defer store.Close()

	var sink *notify.NATSSink
	var srvSink notify.Sink
	if *natsURL != "" {
		sink, err = notify.NewNATSSink(*natsURL, "washer.notify", log)
		if err != nil {
			log.Fatal("connect nats", zap.Error(err))
		}
		defer sink.Close()
		srvSink = sink
	} else {
		log.Warn("no NATS URL configured, notifications disabled")
	}

	srv := server.New(store, srvSink, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Advisory-timer watcher: observes, never transitions.
	watcher := timerwatch.New(srv, srv, log)
	go watcher.Run(ctx)

	// Mirror committed snapshots onto the NATS status stream.
	if sink != nil {
		go func() {
			snaps, cancelSub := srv.Subscribe()
			defer cancelSub()
			for {
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-snaps:
					if !ok {
						return
					}
					if err := sink.PublishStatus(snap); err != nil {
						log.Warn("status publish failed", zap.Error(err))
					}
				}
			}
		}()
	}

	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: api.NewHTTPHandler(srv, log),
	}
	go func() {
		log.Info("HTTP API listening", zap.String("addr", *httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http listen", zap.Error(err))
		}
	}()

	metricsServer := &http.Server{Addr: *metricsAddr}
	go func() {
		mux := http.NewServeMux()
		api.RegisterMetrics(mux)
		metricsServer.Handler = mux
		log.Info("Prometheus metrics listening", zap.String("addr", *metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutdown initiated")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}
	log.Info("shutdown complete")
}
