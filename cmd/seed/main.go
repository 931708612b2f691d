package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/broker"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/db"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logging"
	"github.com/hackgods/clinic-appointment-scheduling/internal/workshift"
	"github.com/hackgods/clinic-appointment-scheduling/internal/workshiftsync"
)

type doctor struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Specialty appointment.Specialty
}

var specialties = []string{
	string(appointment.SpecialtyFamily),
	string(appointment.SpecialtyNursing),
	string(appointment.SpecialtyPhysiotherapy),
	string(appointment.SpecialtyGynecology),
	string(appointment.SpecialtyOther),
}

var types = []string{
	string(appointment.TypeConsult),
	string(appointment.TypeRevision),
	string(appointment.TypeFollowUp),
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalLog := zerolog.New(os.Stderr)
		fatalLog.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(cfg.Env, "seed")
	log.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if cfg.RunMigrations {
		if _, err := db.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	_ = gofakeit.Seed(0)

	clinics := make([]uuid.UUID, getInt("SEED_CLINICS", 2))
	for i := range clinics {
		clinics[i] = uuid.New()
	}
	doctors := make([]doctor, getInt("SEED_DOCTORS", 6))
	for i := range doctors {
		doctors[i] = doctor{
			ID:        uuid.New(),
			ClinicID:  clinics[i%len(clinics)],
			Name:      gofakeit.Name(),
			Specialty: appointment.Specialty(gofakeit.RandomString(specialties)),
		}
	}
	patients := make([]uuid.UUID, getInt("SEED_PATIENTS", 40))
	for i := range patients {
		patients[i] = uuid.New()
	}

	days := getInt("SEED_DAYS", 5)
	today := truncateDay(time.Now().In(cfg.Location))
	shifts := seedWorkshifts(doctors, today, days)
	appts := seedAppointments(doctors, patients, shifts, time.Now())

	repo := appointment.NewPgRepository(pool)
	if err := repo.CreateMany(ctx, appts); err != nil {
		log.Fatal().Err(err).Msg("insert appointments")
	}
	log.Info().Int("appointments", len(appts)).Int("doctors", len(doctors)).Int("patients", len(patients)).Msg("appointments seeded")

	if getBool("SEED_DIRECT_REPLICA", false) {
		if err := workshift.NewPgRepository(pool).ReplaceAll(ctx, shifts); err != nil {
			log.Fatal().Err(err).Msg("write workshift replica")
		}
		log.Info().Int("workshifts", len(shifts)).Msg("workshift replica written")
		return
	}

	mq := broker.NewManager(cfg.RabbitURL, cfg.ReconnectMaxBackoff, log)
	defer mq.Close()
	if err := mq.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("broker connection error")
	}
	if err := mq.DeclareFanout(ctx, cfg.WorkshiftExchange, ""); err != nil {
		log.Fatal().Err(err).Msg("declare exchange")
	}

	pub := workshiftsync.NewPublisher(mq, cfg.WorkshiftExchange)
	if err := pub.Publish(ctx, workshiftsync.SyncEvent{Workshifts: shifts}); err != nil {
		log.Fatal().Err(err).Msg("publish workshift-sync")
	}
	log.Info().Int("workshifts", len(shifts)).Str("exchange", cfg.WorkshiftExchange).Msg("workshift-sync published")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// seedWorkshifts gives every doctor a morning and an afternoon shift from
// yesterday through the next days.
func seedWorkshifts(doctors []doctor, today time.Time, days int) []workshift.Workshift {
	var out []workshift.Workshift
	for d := -1; d < days; d++ {
		day := today.AddDate(0, 0, d)
		for _, doc := range doctors {
			for _, startHour := range []int{9, 15} {
				out = append(out, workshift.Workshift{
					ID:        uuid.New(),
					DoctorID:  doc.ID,
					ClinicID:  doc.ClinicID,
					StartDate: day.Add(time.Duration(startHour) * time.Hour),
					Duration:  240,
				})
			}
		}
	}
	return out
}

type span struct{ start, end time.Time }

// seedAppointments fills roughly half of every shift. Overlaps per doctor and
// per patient are skipped so the rows pass the exclusion constraints.
func seedAppointments(doctors []doctor, patients []uuid.UUID, shifts []workshift.Workshift, now time.Time) []*appointment.Appointment {
	byDoctor := make(map[uuid.UUID]doctor, len(doctors))
	for _, d := range doctors {
		byDoctor[d.ID] = d
	}
	patientBusy := make(map[uuid.UUID][]span)

	var out []*appointment.Appointment
	for _, sh := range shifts {
		doc := byDoctor[sh.DoctorID]
		cursor := sh.StartDate
		end := sh.EffectiveEnd()

		for cursor.Before(end) {
			duration := gofakeit.RandomInt([]int{15, 30, 45})
			if cursor.Add(time.Duration(duration)*time.Minute).After(end) || !gofakeit.Bool() {
				cursor = cursor.Add(30 * time.Minute)
				continue
			}

			patient := patients[gofakeit.Number(0, len(patients)-1)]
			s := span{cursor, cursor.Add(time.Duration(duration) * time.Minute)}
			if clashes(patientBusy[patient], s) {
				cursor = cursor.Add(30 * time.Minute)
				continue
			}

			status := appointment.StatusPending
			if s.end.Before(now) {
				status = appointment.StatusCompleted
				if gofakeit.Number(0, 9) == 0 {
					status = appointment.StatusNoShow
				}
			}

			a, err := appointment.New(appointment.NewParams{
				PatientID:       patient,
				ClinicID:        doc.ClinicID,
				DoctorID:        doc.ID,
				Specialty:       doc.Specialty,
				Type:            appointment.Type(gofakeit.RandomString(types)),
				AppointmentDate: s.start,
				Duration:        duration,
				Status:          status,
			})
			if err != nil {
				cursor = s.end
				continue
			}

			out = append(out, a)
			patientBusy[patient] = append(patientBusy[patient], s)
			cursor = s.end
		}
	}
	return out
}

func clashes(busy []span, s span) bool {
	for _, b := range busy {
		if appointment.Overlaps(s.start, s.end, b.start, b.end) {
			return true
		}
	}
	return false
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
