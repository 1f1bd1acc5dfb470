package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SersifAbdeljalil/hospital-management/internal/db"
)

// simulate hammers the booking endpoint with deliberately overlapping
// windows and reports how many attempts per window actually succeeded.
// Anything other than exactly one success per contended window is a bug.

type SimConfig struct {
	APIBaseURL  string
	Workers     int
	Windows     int
	PerWindow   int
	PostgresDSN string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
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

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(om.Latencies))
	copy(sorted, om.Latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg = sum / time.Duration(len(sorted))
	p50 = sorted[len(sorted)/2]
	p95 = sorted[len(sorted)*95/100]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := SimConfig{
		APIBaseURL:  envOr("API_BASE_URL", "http://127.0.0.1:8080"),
		Workers:     envInt("SIM_WORKERS", 20),
		Windows:     envInt("SIM_WINDOWS", 10),
		PerWindow:   envInt("SIM_PER_WINDOW", 10),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required to load patient and practitioner ids")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	patients, err := loadIDs(context.Background(), pool, "patients", 200)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	practitioners, err := loadIDs(context.Background(), pool, "practitioners", 10)
	if err != nil {
		log.Fatalf("load practitioners: %v", err)
	}
	if len(patients) == 0 || len(practitioners) == 0 {
		log.Fatal("run cmd/seed first: no patients or practitioners found")
	}

	log.Printf("simulating %d contended windows, %d attempts each, %d workers",
		cfg.Windows, cfg.PerWindow, cfg.Workers)

	client := &http.Client{Timeout: 10 * time.Second}
	metrics := &OperationMetrics{}

	type attempt struct {
		practitioner uuid.UUID
		start        time.Time
	}

	jobs := make(chan attempt)
	perWindowSuccess := make([]int64, cfg.Windows)

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				patient := patients[rand.Intn(len(patients))]
				ok, conflict, latency := book(client, cfg.APIBaseURL, a.practitioner, patient, a.start)
				metrics.Record(latency, ok, conflict)
				if ok {
					for i := 0; i < cfg.Windows; i++ {
						if a.start.Equal(windowStart(i)) {
							atomic.AddInt64(&perWindowSuccess[i], 1)
						}
					}
				}
			}
		}()
	}

	for i := 0; i < cfg.Windows; i++ {
		practitioner := practitioners[i%len(practitioners)]
		start := windowStart(i)
		for j := 0; j < cfg.PerWindow; j++ {
			jobs <- attempt{practitioner: practitioner, start: start}
		}
	}
	close(jobs)
	wg.Wait()

	avg, p50, p95 := metrics.Stats()
	log.Printf("total=%d success=%d conflict=%d error=%d",
		metrics.Total, metrics.Success, metrics.Conflict, metrics.Error)
	log.Printf("latency avg=%s p50=%s p95=%s", avg, p50, p95)

	violations := 0
	for i, n := range perWindowSuccess {
		if n > 1 {
			violations++
			log.Printf("VIOLATION: window %d booked %d times", i, n)
		}
	}
	if violations == 0 {
		log.Println("no double-booking observed")
	} else {
		log.Printf("%d windows double-booked", violations)
		os.Exit(1)
	}
}

// windowStart spreads contended windows across distinct far-future slots so
// reruns do not collide with earlier simulations.
func windowStart(i int) time.Time {
	base := time.Now().Truncate(time.Hour).AddDate(0, 0, 60)
	return base.Add(time.Duration(i) * time.Hour)
}

func book(client *http.Client, baseURL string, practitioner, patient uuid.UUID, start time.Time) (ok, conflict bool, latency time.Duration) {
	body, _ := json.Marshal(map[string]any{
		"patient_id": patient.String(),
		"medecin_id": practitioner.String(),
		"date_heure": start.Format(time.RFC3339),
		"duree":      30,
		"motif":      "simulation",
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return false, false, 0
	}
	req.Header.Set("Content-Type", "application/json")

	begin := time.Now()
	resp, err := client.Do(req)
	latency = time.Since(begin)
	if err != nil {
		return false, false, latency
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		return true, false, latency
	case http.StatusConflict:
		return false, true, latency
	default:
		return false, false, latency
	}
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, table string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s LIMIT %d`, table, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
