// Command ovasim runs a simulated optical vector analyzer.
//
// It listens for SCPI clients on -addr and, with -metrics, serves Prometheus metrics
// of the simulator. The instrument can be described by a YAML profile:
//
//	identification: "OVA Simulator,OVA5000,SIM00001,1.0.0"
//	center_wavelength: 1550
//	wavelength_range: 4
//	sample_resolution: 0.0016
//	response_delay: 20ms
//
// Set ENV=development for console logs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arloliu/go-ova/internal/simulator"
	"github.com/arloliu/go-ova/logger"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5025", "listen address of the instrument")
	profilePath := flag.String("profile", "", "YAML instrument profile")
	metricsAddr := flag.String("metrics", "", "listen address of the Prometheus endpoint, disabled if empty")
	points := flag.Int("points", 0, "fixed number of points per array, 0 derives it from range and resolution")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	flag.Parse()

	log := logger.NewSlog(logger.ParseLevel(*logLevel), false)
	logger.SetLogger(log)

	if err := run(log, *addr, *profilePath, *metricsAddr, *points); err != nil {
		log.Error("simulator failed", "error", err)
		os.Exit(1)
	}
}

func run(log logger.Logger, addr string, profilePath string, metricsAddr string, points int) error {
	profile := simulator.DefaultProfile()
	if profilePath != "" {
		p, err := simulator.LoadProfile(profilePath)
		if err != nil {
			return err
		}
		profile = p
	}

	srv, err := simulator.New(profile, simulator.WithLogger(log))
	if err != nil {
		return err
	}
	if points > 0 {
		srv.SetPoints(points)
	}

	if err := srv.Start(addr); err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer srv.Close()

	if metricsAddr != "" {
		httpSrv, err := serveMetrics(log, srv, metricsAddr)
		if err != nil {
			return err
		}
		defer httpSrv.Close()
	}

	exitSig := make(chan os.Signal, 1)
	signal.Notify(exitSig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	<-exitSig

	log.Info("exit signal received", "scans", srv.ScanCount())

	return nil
}

func serveMetrics(log logger.Logger, srv *simulator.Server, addr string) (*http.Server, error) {
	reg := prometheus.NewRegistry()

	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "ovasim",
			Name:      "scans_total",
			Help:      "Number of scans performed by the simulated instrument.",
		}, func() float64 { return float64(srv.ScanCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ovasim",
			Name:      "connections",
			Help:      "Number of connected clients.",
		}, func() float64 { return float64(srv.ConnectionCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "ovasim",
			Name:      "pending_errors",
			Help:      "Number of entries in the instrument error queue.",
		}, func() float64 { return float64(srv.PendingErrors()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", addr)

	return httpSrv, nil
}
