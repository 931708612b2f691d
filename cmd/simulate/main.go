package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	TransitionRatio float64
	ReadRatio       float64
	PatientLimit    int
	RaceRounds      int
	PostgresDSN     string
}

type doctorRef struct {
	DoctorID uuid.UUID
	ClinicID uuid.UUID
}

type DataPool struct {
	Patients     []uuid.UUID
	Doctors      []doctorRef
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Booking       OperationMetrics
	Transition    OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Availability  OperationMetrics
	Race          OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger

	raceViolations int64
}

func main() {
	cfg := loadConfig()
	log := logging.New(getEnv("APP_ENV", "dev"), "simulate")

	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("transition", cfg.TransitionRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("patients", len(dataPool.Patients)).Int("doctors", len(dataPool.Doctors)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.RunRaces()
	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		fatalLog := zerolog.New(os.Stderr)
		fatalLog.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:      getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.5),
		TransitionRatio: getFloat("SIM_TRANSITION_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.4),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 4000),
		RaceRounds:      getInt("SIM_RACE_ROUNDS", 5),
		PostgresDSN:     baseCfg.PostgresDSN,
	}

	total := cfg.BookingRatio + cfg.TransitionRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.TransitionRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT DISTINCT patient_id FROM appointments LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()

	// doctors come from the replica so availability has shifts to work with
	rows, err = pool.Query(ctx, `SELECT DISTINCT doctor_id, clinic_id FROM workshifts WHERE start_date > now()`)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for rows.Next() {
		var d doctorRef
		if err := rows.Scan(&d.DoctorID, &d.ClinicID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, d)
	}
	rows.Close()

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors with upcoming workshifts loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.TransitionRatio:
				s.doTransition(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByPatient(ctx, rng)
				case 2:
					s.doAvailability(ctx, rng)
				}
			}
		}
	}
}

type slot struct {
	AppointmentDate time.Time `json:"appointmentDate"`
}

func (s *Simulator) availability(ctx context.Context, d doctorRef, day time.Time) ([]slot, int, error) {
	url := fmt.Sprintf("%s/availability?clinicId=%s&doctorId=%s&date=%s",
		s.config.APIBaseURL, d.ClinicID, d.DoctorID, day.Format(time.DateOnly))
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var slots []slot
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&slots); err != nil {
			return nil, resp.StatusCode, err
		}
	}
	return slots, resp.StatusCode, nil
}

func (s *Simulator) pickSlot(ctx context.Context, rng *rand.Rand) (doctorRef, time.Time, bool) {
	d := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	day := time.Now().AddDate(0, 0, rng.Intn(5))

	slots, _, err := s.availability(ctx, d, day)
	if err != nil {
		return d, time.Time{}, false
	}
	var future []slot
	for _, sl := range slots {
		if sl.AppointmentDate.After(time.Now()) {
			future = append(future, sl)
		}
	}
	if len(future) == 0 {
		return d, time.Time{}, false
	}
	return d, future[rng.Intn(len(future))].AppointmentDate, true
}

func (s *Simulator) book(ctx context.Context, d doctorRef, patientID uuid.UUID, at time.Time) (int, uuid.UUID, error) {
	body, _ := json.Marshal(map[string]any{
		"patientId":       patientID,
		"clinicId":        d.ClinicID,
		"doctorId":        d.DoctorID,
		"specialty":       "family",
		"appointmentDate": at,
		"duration":        30,
	})

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, uuid.Nil, err
	}
	defer resp.Body.Close()

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if resp.StatusCode == http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(bodyBytes, &created)
	}
	return resp.StatusCode, created.ID, nil
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	d, at, ok := s.pickSlot(ctx, rng)
	if !ok {
		return
	}
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status, id, err := s.book(ctx, d, patientID, at)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && id != uuid.Nil {
		s.pool.AddAppointment(id)
	}
	s.metrics.Booking.Record(latency, success, err == nil && status == http.StatusConflict)
}

// RunRaces fires every worker at the same slot for the same doctor and
// counts rounds where more than one booking succeeded.
func (s *Simulator) RunRaces() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for round := 0; round < s.config.RaceRounds; round++ {
		d, at, ok := s.pickSlot(ctx, rng)
		if !ok {
			continue
		}

		var wg sync.WaitGroup
		var created int64
		gate := make(chan struct{})
		for i := 0; i < s.config.Workers; i++ {
			patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				start := time.Now()
				status, id, err := s.book(ctx, d, patientID, at)
				success := err == nil && status == http.StatusCreated
				if success {
					atomic.AddInt64(&created, 1)
					s.pool.AddAppointment(id)
				}
				s.metrics.Race.Record(time.Since(start), success, err == nil && status == http.StatusConflict)
			}()
		}
		close(gate)
		wg.Wait()

		if created > 1 {
			atomic.AddInt64(&s.raceViolations, 1)
			s.log.Error().Int64("created", created).Str("doctor_id", d.DoctorID.String()).Time("slot", at).Msg("double booking detected")
		}
	}
}

func (s *Simulator) doTransition(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	action := []string{"complete", "cancel", "no-show"}[rng.Intn(3)]

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/appointments/%s/%s", s.config.APIBaseURL, apptID, action), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}
	s.metrics.Transition.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, apptID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.ReadByID.Record(latency, success, false)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments/patient/%s", s.config.APIBaseURL, patientID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.ListByPatient.Record(latency, success, false)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	d := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()
	_, status, err := s.availability(ctx, d, time.Now().AddDate(0, 0, rng.Intn(5)))
	s.metrics.Availability.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Race rounds: %d, double bookings: %d\n", s.config.RaceRounds, atomic.LoadInt64(&s.raceViolations))
	fmt.Println()

	printOperationReport("Race booking", &s.metrics.Race)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Transition", &s.metrics.Transition)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
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
