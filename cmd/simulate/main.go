// Command simulate drives a running api-server with contending holds and
// checks that no holdee ends up with overlapping accepted holds.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-holds/internal/hold"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Contenders  int // overlapping holds raced per round
	Holdees     int
	DeclineRate float64
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	if len(latencies) > 0 {
		p50Idx := len(latencies) * 50 / 100
		if p50Idx >= len(latencies) {
			p50Idx = len(latencies) - 1
		}
		p50 = latencies[p50Idx]

		p95Idx := len(latencies) * 95 / 100
		if p95Idx >= len(latencies) {
			p95Idx = len(latencies) - 1
		}
		p95 = latencies[p95Idx]
	}

	return avg, min, max, p50, p95
}

type Metrics struct {
	Create  OperationMetrics
	Accept  OperationMetrics
	Decline OperationMetrics
	List    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	holdees []uuid.UUID
	metrics Metrics

	rounds     int64
	violations int64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: url=%s duration=%s workers=%d contenders=%d holdees=%d",
		cfg.APIBaseURL, cfg.Duration, cfg.Workers, cfg.Contenders, cfg.Holdees)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for i := 0; i < cfg.Holdees; i++ {
		sim.holdees = append(sim.holdees, uuid.New())
	}

	// Run simulation
	sim.Run()

	// Print report
	sim.PrintReport()

	if atomic.LoadInt64(&sim.violations) > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		Contenders:  getInt("SIM_CONTENDERS", 4),
		Holdees:     getInt("SIM_HOLDEES", 50),
		DeclineRate: getFloat("SIM_DECLINE_RATE", 0.1),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Contenders < 2 {
		return fmt.Errorf("SIM_CONTENDERS must be >= 2")
	}
	if cfg.Holdees <= 0 {
		return fmt.Errorf("SIM_HOLDEES must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")

	// final audit with a fresh context
	auditCtx, auditCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer auditCancel()
	for _, holdee := range s.holdees {
		s.audit(auditCtx, holdee)
	}
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			s.round(ctx, rng)
		}
	}
}

// round creates overlapping holds on one holdee and answers all of them at
// once. The audit afterwards must find no overlapping accepted pair.
func (s *Simulator) round(ctx context.Context, rng *rand.Rand) {
	holdee := s.holdees[rng.Intn(len(s.holdees))]
	today := hold.DateOf(time.Now().UTC())
	start := today.AddDays(1 + rng.Intn(60))

	var ids []uuid.UUID
	for i := 0; i < s.config.Contenders; i++ {
		from := start.AddDays(rng.Intn(3))
		id, ok := s.createHold(ctx, uuid.New(), holdee, from, from.AddDays(rng.Intn(4)))
		if ok {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return
	}

	var (
		wg   sync.WaitGroup
		gate = make(chan struct{})
	)
	for _, id := range ids {
		action := "accept"
		if rng.Float64() < s.config.DeclineRate {
			action = "decline"
		}
		wg.Add(1)
		go func(id uuid.UUID, action string) {
			defer wg.Done()
			<-gate
			s.respond(ctx, id, holdee, action)
		}(id, action)
	}
	close(gate)
	wg.Wait()

	atomic.AddInt64(&s.rounds, 1)
	if ctx.Err() == nil {
		s.audit(ctx, holdee)
	}
}

func (s *Simulator) createHold(ctx context.Context, requester, holdee uuid.UUID, start, end hold.Date) (uuid.UUID, bool) {
	body, _ := json.Marshal(map[string]string{
		"requester_id": requester.String(),
		"holdee_id":    holdee.String(),
		"start_date":   start.String(),
		"end_date":     end.String(),
	})

	begin := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/holds", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(begin)
	if err != nil {
		s.metrics.Create.Record(latency, false, false)
		return uuid.Nil, false
	}
	defer resp.Body.Close()

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	ok := resp.StatusCode == http.StatusCreated && json.NewDecoder(resp.Body).Decode(&created) == nil
	s.metrics.Create.Record(latency, ok, resp.StatusCode == http.StatusConflict)
	return created.ID, ok
}

func (s *Simulator) respond(ctx context.Context, id, holdee uuid.UUID, action string) bool {
	body, _ := json.Marshal(map[string]string{"action": action})

	begin := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/holds/%s/respond", s.config.APIBaseURL, id), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", holdee.String())

	resp, err := s.client.Do(req)
	latency := time.Since(begin)

	metrics := &s.metrics.Accept
	if action == "decline" {
		metrics = &s.metrics.Decline
	}
	if err != nil {
		metrics.Record(latency, false, false)
		return false
	}
	defer resp.Body.Close()

	ok := resp.StatusCode == http.StatusOK
	metrics.Record(latency, ok, resp.StatusCode == http.StatusConflict)
	return ok
}

// audit lists accepted holds of holdee and counts overlapping pairs.
func (s *Simulator) audit(ctx context.Context, holdee uuid.UUID) {
	q := url.Values{}
	q.Set("holdee_id", holdee.String())
	q.Set("status", "accepted")
	q.Set("limit", "100")

	begin := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/holds?"+q.Encode(), nil)
	resp, err := s.client.Do(req)
	latency := time.Since(begin)
	if err != nil {
		s.metrics.List.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	var list struct {
		Holds []struct {
			ID        uuid.UUID `json:"id"`
			StartDate hold.Date `json:"start_date"`
			EndDate   hold.Date `json:"end_date"`
		} `json:"holds"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&list) != nil {
		s.metrics.List.Record(latency, false, false)
		return
	}
	s.metrics.List.Record(latency, true, false)

	for i := 0; i < len(list.Holds); i++ {
		for j := i + 1; j < len(list.Holds); j++ {
			a, b := list.Holds[i], list.Holds[j]
			if hold.Overlaps(a.StartDate, a.EndDate, b.StartDate, b.EndDate) {
				atomic.AddInt64(&s.violations, 1)
				log.Printf("VIOLATION holdee=%s accepted %s and %s overlap", holdee, a.ID, b.ID)
			}
		}
	}
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Rounds: %d\n", atomic.LoadInt64(&s.rounds))
	fmt.Printf("Overlapping accepted pairs: %d\n", atomic.LoadInt64(&s.violations))
	fmt.Println()

	printOperationReport("Create", &s.metrics.Create)
	printOperationReport("Accept", &s.metrics.Accept)
	printOperationReport("Decline", &s.metrics.Decline)
	printOperationReport("Audit list", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	error := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if error > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", error, float64(error)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
