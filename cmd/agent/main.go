package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clmm-lp-agent/internal/agent"
	"clmm-lp-agent/internal/cli"
	"clmm-lp-agent/internal/config"
	"clmm-lp-agent/internal/metrics"
	"clmm-lp-agent/internal/svc"
)

const (
	defaultTickInterval = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
	metricsAddr         = ":9090"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting agent runtime...")

	appCfg, err := config.Load(config.ConfigFile())
	if err != nil {
		log.Printf("[main] Warning: failed to load app config: %v", err)
		log.Printf("[main] Using default configuration")
		appCfg = &config.Config{Env: "test"}
	}

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(*appCfg, time.Now())
	runtime := svcCtx.Runtime()

	for id, pool := range svcCtx.Pools {
		for _, pc := range svcCtx.AgentConfig.Pools {
			if pc.ControllerID == id && pc.AutoStart {
				pool.Start()
			}
		}
	}

	tickInterval := svcCtx.AgentConfig.Runtime.TickInterval
	if tickInterval <= 0 {
		tickInterval = defaultTickInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsHandler()}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("[main] Metrics listening on %s", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[main] Metrics server stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runTickLoop(ctx, runtime, tickInterval)
	}()

	log.Println("[main] Agent runtime started. Press Ctrl+C to stop.")

	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Agent runtime stopped")
}

// runTickLoop drives the shared tick loop on a fixed interval, running one
// round immediately on startup.
func runTickLoop(ctx context.Context, runtime *agent.Runtime, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runtime.Tick(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			log.Println("[tick] Stopping tick loop")
			return
		case <-ticker.C:
			runtime.Tick(ctx, time.Now())
		}
	}
}

func metricsHandler() http.Handler {
	return metrics.Handler()
}
