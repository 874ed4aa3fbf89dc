package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cachemir/mcpool/pkg/client"
	"github.com/cachemir/mcpool/pkg/config"
)

func main() {
	workers := flag.Int("workers", 8, "Number of concurrent workers")
	requests := flag.Int("requests", 1000, "Requests per worker")
	keys := flag.Int("keys", 100, "Distinct keys to route across nodes")
	flag.Parse()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	slog.SetDefault(config.NewLogger(cfg.LogLevel))

	cluster, err := client.NewCluster(cfg)
	if err != nil {
		log.Fatalf("Failed to create cluster: %v", err)
	}
	defer cluster.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var done, failed atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < *requests; i++ {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				key := fmt.Sprintf("bench:%d", (w*(*requests)+i)%*keys)
				_, err := cluster.ExecKey(ctx, key, []byte("get "+key+"\r\n"), []byte("END\r\n"))
				if err != nil {
					failed.Add(1)
					slog.Debug("request failed", "key", key, "err", err)
					continue
				}
				done.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("benchmark interrupted", "err", err)
	}

	elapsed := time.Since(start)
	slog.Info("benchmark finished",
		"ok", done.Load(),
		"failed", failed.Load(),
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"rps", int(float64(done.Load())/elapsed.Seconds()))

	for node, s := range cluster.Stats() {
		slog.Info("pool stats", "node", node,
			"size", s.Size, "idle", s.Idle, "in_use", s.InUse,
			"created", s.Created, "closed", s.Closed,
			"connect_errors", s.ConnectErrors, "waits", s.Waits)
	}
}
