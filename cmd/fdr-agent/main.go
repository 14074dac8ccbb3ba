// Command fdr-agent runs the Recorder as a long-lived service: it
// drives the LogManager's tick loop and exposes a small control and
// metrics HTTP surface. It moves no log bytes over the network — only
// status, health and Prometheus scrape endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/skywing/fdrlog/internal/config"
	"github.com/skywing/fdrlog/internal/frontend"
	"github.com/skywing/fdrlog/internal/recorder"
)

func main() {
	var (
		configPath string
		listenAddr string
	)
	flag.StringVar(&configPath, "config", "", "path to config.yaml")
	flag.StringVar(&listenAddr, "listen", ":9090", "control/metrics listen address")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	lm := recorder.New(recorder.Config{
		OutputDir:            cfg.Recorder.OutputDir,
		FlushThreshold:       cfg.Recorder.FlushThresholdBytes,
		MinGuaranteedSpace:   cfg.Recorder.MinGuaranteedSpace,
		SizeCapBytes:         cfg.Recorder.SizeCapBytes,
		MaxLogCount:          cfg.Recorder.MaxLogCount,
		MinFreeBytes:         cfg.Recorder.MinFreeBytes,
		TickPeriod:           cfg.Recorder.TickPeriod,
		EncryptionPubKeyPath: cfg.Recorder.EncryptionPubKeyPath,
	}, logger)

	if err := lm.Start(); err != nil {
		logger.WithError(err).Fatal("failed to start recorder")
	}

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, cfg.Recorder, logger, func(rc config.RecorderConfig) {
			lm.UpdateQuota(rc.SizeCapBytes, rc.MaxLogCount, rc.MinFreeBytes)
		})
		if err != nil {
			logger.WithError(err).Warn("config hot reload disabled")
		} else {
			defer watcher.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runTickLoop(ctx, lm, cfg.Recorder.TickPeriod, logger)
	}()

	srv := &http.Server{Addr: listenAddr, Handler: newRouter(lm)}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.WithField("addr", listenAddr).Info("control server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("control server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutdown signal received")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	if err := lm.Stop(); err != nil {
		logger.WithError(err).Error("error stopping recorder")
	}
	wg.Wait()
}

func runTickLoop(ctx context.Context, lm *recorder.LogManager, period time.Duration, logger *logrus.Logger) {
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := lm.Tick(now); err != nil {
				logger.WithError(err).Warn("tick failed")
			}
		}
	}
}

func newRouter(lm *recorder.LogManager) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/status", statusHandler(lm)).Methods(http.MethodGet)
	r.HandleFunc("/rotate", rotateHandler(lm)).Methods(http.MethodPost)
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	ActivePath string `json:"active_path"`
	SizeBytes  int64  `json:"size_bytes"`
}

func statusHandler(lm *recorder.LogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := lm.Backend()
		resp := statusResponse{ActivePath: b.ActivePath(), SizeBytes: b.Size()}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func rotateHandler(lm *recorder.LogManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := lm.Rotate(frontend.CloseReasonRotate); err != nil {
			http.Error(w, fmt.Sprintf("rotate failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
