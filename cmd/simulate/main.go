// Command simulate hammers a running booking-server with concurrent
// booking requests for one doctor and day, then checks that winners plus
// remaining free slots add up: every slot was sold at most once.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type metrics struct {
	total     int64
	success   int64
	conflict  int64
	errored   int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.errored, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) percentile(p int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "simulate").Logger()

	baseURL := envOr("API_BASE_URL", "http://127.0.0.1:8080")
	workers := envInt("WORKERS", 50)
	requests := envInt("REQUESTS", 500)
	date := envOr("DATE", nextMonday().Format("2006-01-02"))

	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	doctorID := uuid.New()
	if v := os.Getenv("DOCTOR_ID"); v != "" {
		doctorID = uuid.MustParse(v)
	}

	gofakeit.Seed(time.Now().UnixNano())

	slots, err := fetchSlots(baseURL, doctorID, date)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch slots")
	}
	if len(slots) == 0 {
		log.Fatal().Str("date", date).Msg("no free slots to contend for")
	}
	log.Info().Int("slots", len(slots)).Int("workers", workers).
		Int("requests", requests).Str("date", date).Msg("starting run")

	var m metrics
	client := &http.Client{Timeout: 10 * time.Second}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				slot := slots[rand.Intn(len(slots))]
				status, latency := book(client, baseURL, tenantID, doctorID, date, slot)
				m.record(latency, status)
			}
		}()
	}
	for i := 0; i < requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	remaining, err := fetchSlots(baseURL, doctorID, date)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch slots after run")
	}

	log.Info().
		Int64("total", m.total).
		Int64("success", m.success).
		Int64("conflict", m.conflict).
		Int64("error", m.errored).
		Str("p50", m.percentile(50).String()).
		Str("p95", m.percentile(95).String()).
		Msg("run complete")

	booked := len(slots) - len(remaining)
	if int64(booked) != m.success {
		log.Fatal().Int("slots_gone", booked).Int64("successes", m.success).
			Msg("MISMATCH: double booking or lost booking detected")
	}
	log.Info().Int("slots_gone", booked).Msg("exclusivity holds: one winner per slot")
}

func fetchSlots(baseURL string, doctorID uuid.UUID, date string) ([]string, error) {
	resp, err := http.Get(fmt.Sprintf("%s/doctors/%s/slots?date=%s", baseURL, doctorID, date))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("slots endpoint returned %d", resp.StatusCode)
	}

	var out struct {
		Slots []string `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

func book(client *http.Client, baseURL string, tenantID, doctorID uuid.UUID, date, slot string) (int, time.Duration) {
	payload, _ := json.Marshal(map[string]string{
		"tenant_id":       tenantID.String(),
		"doctor_id":       doctorID.String(),
		"patient_id":      uuid.New().String(),
		"date":            date,
		"time":            slot,
		"chief_complaint": gofakeit.Sentence(4),
	})

	start := time.Now()
	resp, err := client.Post(baseURL+"/appointments", "application/json", bytes.NewReader(payload))
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	resp.Body.Close()
	return resp.StatusCode, latency
}

func nextMonday() time.Time {
	d := time.Now().AddDate(0, 0, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
