// Command api_load polls the feed API from many concurrent clients, the way
// dashboards do, and reports throughput, failures and stale responses.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type counters struct {
	ok     atomic.Int64
	failed atomic.Int64
	stale  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (c *counters) observe(d time.Duration) {
	c.mu.Lock()
	c.latencies = append(c.latencies, d)
	c.mu.Unlock()
}

func (c *counters) percentile(p float64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), c.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*p)]
}

func main() {
	var (
		baseURL      string
		paths        string
		clients      int
		pollInterval time.Duration
		testDuration time.Duration
	)

	flag.StringVar(&baseURL, "url", "http://localhost:3000", "feed base URL")
	flag.StringVar(&paths, "paths", "/api/domains,/api/users", "comma separated endpoints to poll")
	flag.IntVar(&clients, "clients", 200, "number of concurrent polling clients")
	flag.DurationVar(&pollInterval, "every", time.Second, "delay between polls of one client")
	flag.DurationVar(&testDuration, "dur", 30*time.Second, "test duration (0 for until interrupted)")
	flag.Parse()

	if clients <= 0 {
		log.Fatalf("invalid clients: %d", clients)
	}
	targets := strings.Split(paths, ",")

	log.Printf("starting api load: url=%s paths=%v clients=%d every=%s duration=%s", baseURL, targets, clients, pollInterval, testDuration)

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxConnsPerHost:     clients + 10,
			MaxIdleConns:        clients + 10,
			MaxIdleConnsPerHost: clients + 10,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	var (
		stats counters
		wg    sync.WaitGroup
	)
	start := time.Now()

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			target := baseURL + targets[id%len(targets)]

			for ctx.Err() == nil {
				poll(ctx, httpClient, target, &stats)

				select {
				case <-ctx.Done():
				case <-time.After(pollInterval):
				}
			}
		}(i)
	}

	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("status: ok=%d failed=%d stale=%d elapsed=%s",
					stats.ok.Load(), stats.failed.Load(), stats.stale.Load(), time.Since(start).Truncate(time.Second))
			}
		}
	}()

	wg.Wait()

	elapsed := time.Since(start)
	total := stats.ok.Load() + stats.failed.Load()
	fmt.Printf("done: ok=%d failed=%d stale=%d elapsed=%s req/s=%.2f p50=%s p99=%s\n",
		stats.ok.Load(), stats.failed.Load(), stats.stale.Load(), elapsed.Truncate(time.Millisecond),
		float64(total)/elapsed.Seconds(), stats.percentile(0.5), stats.percentile(0.99))
}

func poll(ctx context.Context, client *http.Client, target string, stats *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		stats.failed.Add(1)
		return
	}

	began := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			stats.failed.Add(1)
		}
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		stats.failed.Add(1)
		return
	}

	stats.ok.Add(1)
	stats.observe(time.Since(began))
	if resp.Header.Get("X-Snapshot-Stale") == "true" {
		stats.stale.Add(1)
	}
}
