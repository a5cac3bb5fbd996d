package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/availability-holds/internal/app"
	"github.com/hackgods/availability-holds/internal/config"
	"github.com/hackgods/availability-holds/internal/hold"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("expiry-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running expiry worker in env=%s interval=%s batch=%d", cfg.Env, cfg.WorkerInterval, cfg.SweepBatchSize)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a.Service)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Service)
		}
	}
}

func runOnce(ctx context.Context, svc *hold.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.SweepExpired(runCtx)
	if err != nil {
		log.Printf("expiry run error after %d holds: %v", n, err)
		return
	}
	log.Printf("expiry run complete: expired=%d duration=%s", n, time.Since(start))
}
