// Command msgbus-bench drives a Bus with synthetic producer/consumer
// goroutines and prints a MetricsSnapshot every second, the way the
// teacher's ublk-mem creates a memory-backed device and serves it until
// interrupted (cmd/ublk-mem/main.go in github.com/ehrlich-b/go-ublk).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/behrlich/msgbus"
	"github.com/behrlich/msgbus/internal/lane"
	"github.com/behrlich/msgbus/internal/logging"
	"github.com/behrlich/msgbus/promexport"
)

func main() {
	var (
		producers  = flag.Int("producers", 4, "number of producer goroutines")
		consumers  = flag.Int("consumers", 2, "number of consumer goroutines")
		duration   = flag.Duration("duration", 10*time.Second, "how long to run before stopping")
		verbose    = flag.Bool("v", false, "verbose logging")
		metricAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9400) for the run's duration")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	opts := msgbus.DefaultBusOptions()
	opts.Logger = logger
	bus := msgbus.NewBus(opts)

	logger.Info("starting bench", "producers", *producers, "consumers", *consumers, "duration", duration.String())

	if *metricAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(promexport.NewCollector(bus, nil))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics server stopped: %v", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", *metricAddr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	var wg sync.WaitGroup
	for i := 0; i < *producers; i++ {
		wg.Add(1)
		go runProducer(ctx, &wg, bus, uint32(i+1))
	}
	for i := 0; i < *consumers; i++ {
		wg.Add(1)
		go runConsumer(ctx, &wg, bus, uint32(i+1))
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	start := time.Now()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			printSnapshot(bus, time.Since(start).Seconds())
		}
	}

	wg.Wait()
	printSnapshot(bus, time.Since(start).Seconds())
	fmt.Printf("final system health: %.3f\n", bus.GetSystemHealth())
}

func runProducer(ctx context.Context, wg *sync.WaitGroup, bus *msgbus.Bus, producerID uint32) {
	defer wg.Done()
	rng := rand.New(rand.NewSource(int64(producerID)))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		size := rng.Intn(512) + 16
		data := make([]byte, size)
		rng.Read(data)
		priority := uint32(rng.Intn(4))
		latencyCritical := rng.Intn(10) == 0

		// Fault reporting and health bookkeeping for a failed submit
		// happen inside Bus.SubmitTo; the producer just backs off.
		if _, ok := bus.FastLaneSubmit(data, priority, latencyCritical); !ok {
			time.Sleep(time.Millisecond)
		}
		time.Sleep(time.Millisecond)
	}
}

func runConsumer(ctx context.Context, wg *sync.WaitGroup, bus *msgbus.Bus, consumerID uint32) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, _, _, ok := bus.FastLaneDrain(); !ok {
			time.Sleep(time.Millisecond)
		}
		bus.AcknowledgeProcess()
	}
}

func printSnapshot(bus *msgbus.Bus, elapsedSeconds float64) {
	snap := bus.GetMetrics()
	fmt.Printf("t=%.0fs submits=%d drains=%d drain_misses=%d throughput=%.3fMB/s health=%.3f\n",
		elapsedSeconds, snap.SubmitOps, snap.DrainOps, snap.DrainMisses,
		bus.SystemThroughputMBps(elapsedSeconds), bus.GetSystemHealth())
	for _, k := range lane.Kinds {
		m := bus.LaneMetrics(k)
		fmt.Printf("  lane=%-9s count=%d congestion=%d avg_latency_us=%.2f\n", k, m.MessageCount, m.CongestionEvents, m.AvgLatencyUs)
	}
}
