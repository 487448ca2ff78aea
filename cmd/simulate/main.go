package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaccicare/vaccination-scheduling/internal/config"
	"github.com/vaccicare/vaccination-scheduling/internal/db"
)

// Load driver for the booking API. Reads children, open slots and
// facility stock from Postgres, then hammers the HTTP surface with a
// configurable mix of bookings, cancellations and reads so slot
// capacity races can be observed under contention.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	BookRatio   float64
	CancelRatio float64
	ReadRatio   float64
	ChildLimit  int
	SlotLimit   int
	PostgresDSN string
	JWTSecret   string
}

type childRef struct {
	ChildID  uuid.UUID
	MemberID uuid.UUID
}

type slotRef struct {
	SlotID     uuid.UUID
	FacilityID uuid.UUID
}

type apptRef struct {
	ID       uuid.UUID
	MemberID uuid.UUID
}

type dataPool struct {
	children []childRef
	slots    []slotRef
	// facility vaccine IDs keyed by facility, for ad-hoc selections
	stock map[uuid.UUID][]uuid.UUID

	mu           sync.RWMutex
	appointments []apptRef
}

func (p *dataPool) addAppointment(ref apptRef) {
	p.mu.Lock()
	p.appointments = append(p.appointments, ref)
	p.mu.Unlock()
}

func (p *dataPool) randomAppointment(rng *rand.Rand) (apptRef, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.appointments) == 0 {
		return apptRef{}, false
	}
	return p.appointments[rng.Intn(len(p.appointments))], true
}

type opStats struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (s *opStats) record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&s.Total, 1)
	switch {
	case err == nil && status >= 200 && status < 300:
		atomic.AddInt64(&s.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&s.Conflict, 1)
	default:
		atomic.AddInt64(&s.Error, 1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, latency)
	s.mu.Unlock()
}

func (s *opStats) percentiles() (p50, p95, max time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) == 0 {
		return 0, 0, 0
	}
	sorted := make([]time.Duration, len(s.latencies))
	copy(sorted, s.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(pct int) int {
		i := len(sorted) * pct / 100
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}
	return sorted[idx(50)], sorted[idx(95)], sorted[len(sorted)-1]
}

type simulator struct {
	cfg    SimConfig
	pool   *dataPool
	client *http.Client

	// per-member bearer tokens, minted lazily
	tokenMu sync.Mutex
	tokens  map[uuid.UUID]string

	book     opStats
	cancel   opStats
	read     opStats
	listByCh opStats
	slotList opStats
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("booking simulator starting")

	cfg := loadSimConfig()
	if err := validateSimConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d book=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookRatio, cfg.CancelRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d children, %d open slots, %d facilities with stock",
		len(pool.children), len(pool.slots), len(pool.stock))

	sim := &simulator{
		cfg:    cfg,
		pool:   pool,
		client: &http.Client{Timeout: 10 * time.Second},
		tokens: make(map[uuid.UUID]string),
	}

	sim.run()
	sim.printReport()
}

func loadSimConfig() SimConfig {
	base, err := config.Load()
	if err != nil {
		log.Fatalf("load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		BookRatio:   getFloat("SIM_BOOK_RATIO", 0.5),
		CancelRatio: getFloat("SIM_CANCEL_RATIO", 0.2),
		ReadRatio:   getFloat("SIM_READ_RATIO", 0.3),
		ChildLimit:  getInt("SIM_CHILD_LIMIT", 4000),
		SlotLimit:   getInt("SIM_SLOT_LIMIT", 2400),
		PostgresDSN: base.PostgresDSN,
		JWTSecret:   base.JWTSecret,
	}

	total := cfg.BookRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateSimConfig(cfg SimConfig) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required to mint bearer tokens")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pg *pgxpool.Pool, cfg SimConfig) (*dataPool, error) {
	pool := &dataPool{stock: make(map[uuid.UUID][]uuid.UUID)}

	rows, err := pg.Query(ctx, `SELECT id, member_id FROM children LIMIT $1`, cfg.ChildLimit)
	if err != nil {
		return nil, fmt.Errorf("load children: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c childRef
		if err := rows.Scan(&c.ChildID, &c.MemberID); err != nil {
			return nil, err
		}
		pool.children = append(pool.children, c)
	}

	rows, err = pg.Query(ctx, `
		SELECT id, facility_id FROM schedule_slots
		WHERE status = 'available' AND slot_date >= current_date
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s slotRef
		if err := rows.Scan(&s.SlotID, &s.FacilityID); err != nil {
			return nil, err
		}
		pool.slots = append(pool.slots, s)
	}

	rows, err = pg.Query(ctx, `SELECT id, facility_id FROM facility_vaccines WHERE quantity > 0`)
	if err != nil {
		return nil, fmt.Errorf("load facility stock: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var fvID, facilityID uuid.UUID
		if err := rows.Scan(&fvID, &facilityID); err != nil {
			return nil, err
		}
		pool.stock[facilityID] = append(pool.stock[facilityID], fvID)
	}

	if len(pool.children) == 0 {
		return nil, fmt.Errorf("no children loaded (run cmd/seed first)")
	}
	if len(pool.slots) == 0 {
		return nil, fmt.Errorf("no open slots loaded (run cmd/seed first)")
	}
	return pool, nil
}

func (s *simulator) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	log.Printf("running for %s with %d workers", s.cfg.Duration, s.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	log.Println("simulation complete")
}

func (s *simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.cfg.BookRatio:
				s.doBook(ctx, rng)
			case r < s.cfg.BookRatio+s.cfg.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doGetDetail(ctx, rng)
				case 1:
					s.doListByChild(ctx, rng)
				case 2:
					s.doListSlots(ctx, rng)
				}
			}
		}
	}
}

// memberToken mints (and caches) an HMAC bearer token for a guardian.
func (s *simulator) memberToken(memberID uuid.UUID) string {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if tok, ok := s.tokens[memberID]; ok {
		return tok
	}

	claims := jwt.MapClaims{
		"sub":  memberID.String(),
		"role": "member",
		"exp":  time.Now().Add(2 * time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	s.tokens[memberID] = tok
	return tok
}

func (s *simulator) doRequest(ctx context.Context, method, url string, body any, memberID uuid.UUID) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.memberToken(memberID))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, nil
}

func (s *simulator) doBook(ctx context.Context, rng *rand.Rand) {
	child := s.pool.children[rng.Intn(len(s.pool.children))]
	slot := s.pool.slots[rng.Intn(len(s.pool.slots))]

	stock := s.pool.stock[slot.FacilityID]
	if len(stock) == 0 {
		return
	}
	vaccineID := stock[rng.Intn(len(stock))]

	body := map[string]any{
		"child_id":           child.ChildID.String(),
		"facility_id":        slot.FacilityID.String(),
		"slot_id":            slot.SlotID.String(),
		"ad_hoc_vaccine_ids": []string{vaccineID.String()},
	}

	start := time.Now()
	status, raw, err := s.doRequest(ctx, http.MethodPost, s.cfg.APIBaseURL+"/appointments", body, child.MemberID)
	s.book.record(time.Since(start), status, err)

	if err == nil && status == http.StatusCreated {
		var resp struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(raw, &resp) == nil && resp.ID != uuid.Nil {
			s.pool.addAppointment(apptRef{ID: resp.ID, MemberID: child.MemberID})
		}
	}
}

func (s *simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.randomAppointment(rng)
	if !ok {
		return
	}

	body := map[string]string{"reason": "simulated cancellation"}
	url := fmt.Sprintf("%s/appointments/%s/cancel", s.cfg.APIBaseURL, appt.ID)

	start := time.Now()
	status, _, err := s.doRequest(ctx, http.MethodPost, url, body, appt.MemberID)
	s.cancel.record(time.Since(start), status, err)
}

func (s *simulator) doGetDetail(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.randomAppointment(rng)
	if !ok {
		return
	}

	url := fmt.Sprintf("%s/appointments/%s", s.cfg.APIBaseURL, appt.ID)

	start := time.Now()
	status, _, err := s.doRequest(ctx, http.MethodGet, url, nil, appt.MemberID)
	s.read.record(time.Since(start), status, err)
}

func (s *simulator) doListByChild(ctx context.Context, rng *rand.Rand) {
	child := s.pool.children[rng.Intn(len(s.pool.children))]
	url := fmt.Sprintf("%s/appointments?child_id=%s&limit=20", s.cfg.APIBaseURL, child.ChildID)

	start := time.Now()
	status, _, err := s.doRequest(ctx, http.MethodGet, url, nil, child.MemberID)
	s.listByCh.record(time.Since(start), status, err)
}

func (s *simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	child := s.pool.children[rng.Intn(len(s.pool.children))]
	slot := s.pool.slots[rng.Intn(len(s.pool.slots))]
	url := fmt.Sprintf("%s/slots?facility_id=%s&date=%s",
		s.cfg.APIBaseURL, slot.FacilityID, time.Now().Format("2006-01-02"))

	start := time.Now()
	status, _, err := s.doRequest(ctx, http.MethodGet, url, nil, child.MemberID)
	s.slotList.record(time.Since(start), status, err)
}

func (s *simulator) printReport() {
	fmt.Println()
	fmt.Println("SIMULATION REPORT")
	fmt.Printf("duration=%s workers=%d\n\n", s.cfg.Duration, s.cfg.Workers)

	printOp("book", &s.book)
	printOp("cancel", &s.cancel)
	printOp("get detail", &s.read)
	printOp("list by child", &s.listByCh)
	printOp("list slots", &s.slotList)
}

func printOp(name string, st *opStats) {
	total := atomic.LoadInt64(&st.Total)
	if total == 0 {
		return
	}
	success := atomic.LoadInt64(&st.Success)
	conflict := atomic.LoadInt64(&st.Conflict)
	errors := atomic.LoadInt64(&st.Error)
	p50, p95, max := st.percentiles()

	fmt.Printf("%-14s total=%d success=%d (%.1f%%)", name, total, success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf(" conflict=%d", conflict)
	}
	if errors > 0 {
		fmt.Printf(" errors=%d", errors)
	}
	fmt.Printf(" p50=%s p95=%s max=%s\n",
		p50.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
}

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
