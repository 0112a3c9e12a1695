// Command dsuserver is a minimal runnable demonstration of the dsu
// library: it loads a config file, registers one simulated device, and
// serves the Cemuhook DSU protocol until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwsl/dsuserver"
	"github.com/cwsl/dsuserver/internal/simdevice"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	bindAddress := flag.String("bind", "", "Override the configured bind address")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("dsuserver: %v", err)
	}
	if *debug {
		cfg.Logging.Debug = true
	}
	if *bindAddress != "" {
		cfg.Server.BindAddress = *bindAddress
	}

	registry := prometheus.NewRegistry()
	var metrics *dsu.Metrics
	if cfg.Metrics.Enabled {
		metrics = dsu.NewMetrics(registry)
	}

	server, err := dsu.NewServer(dsu.ServerConfig{
		Port:        cfg.Server.Port,
		BindAddress: cfg.Server.BindAddress,
		Debug:       cfg.Logging.Debug,
		Metrics:     metrics,
	})
	if err != nil {
		log.Fatalf("dsuserver: %v", err)
	}

	devices := []*simdevice.SimDevice{
		simdevice.New(0x00AABBCCDDEE, dsu.GyroFull, 16*time.Millisecond),
	}
	for _, d := range devices {
		if err := server.AddDevice(d); err != nil {
			log.Fatalf("dsuserver: add device: %v", err)
		}
	}
	defer func() {
		for _, d := range devices {
			d.Stop()
		}
	}()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics, registry)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("dsuserver: listening on %s:%d with %d device(s)", cfg.Server.BindAddress, cfg.Server.Port, server.ActiveDeviceCount())
	if err := server.Run(ctx); err != nil {
		log.Fatalf("dsuserver: %v", err)
	}
	log.Println("dsuserver: shut down")
}

func serveMetrics(cfg MetricsConfig, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("dsuserver: metrics server: %v", err)
	}
}
