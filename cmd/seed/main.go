package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SersifAbdeljalil/hospital-management/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	practitioners, err := seedPractitioners(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, 2000)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, practitioners, patients, 500); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d practitioners", count)

	specialties := []string{
		"Médecine générale",
		"Cardiologie",
		"Dermatologie",
		"Pédiatrie",
		"Gynécologie",
		"Ophtalmologie",
		"ORL",
		"Rhumatologie",
		"Endocrinologie",
		"Psychiatrie",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, full_name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("practitioners seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, full_name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedAppointments books non-overlapping demo appointments over the coming
// two weeks, inside clinic hours, on the half hour.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, practitioners, patients []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	motifs := []string{
		"Consultation de suivi",
		"Première consultation",
		"Renouvellement d'ordonnance",
		"Douleurs persistantes",
		"Contrôle annuel",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for attempts := 0; inserted < count && attempts < count*4; attempts++ {
		practitioner := practitioners[gofakeit.Number(0, len(practitioners)-1)]
		patient := patients[gofakeit.Number(0, len(patients)-1)]

		day := time.Now().AddDate(0, 0, gofakeit.Number(1, 14))
		start := time.Date(day.Year(), day.Month(), day.Day(),
			gofakeit.Number(8, 17), 30*gofakeit.Number(0, 1), 0, 0, time.Local)
		duration := 30

		tag, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, patient_id, practitioner_id, start_time, duration_min, status, motif, notes, created_at, updated_at)
			SELECT $1, $2, $3, $4, $5, 'planned', $6, '', now(), now()
			WHERE NOT EXISTS (
				SELECT 1 FROM appointments
				WHERE practitioner_id = $3
				  AND status IN ('planned', 'confirmed', 'in_progress')
				  AND start_time < $4 + ($5 * interval '1 minute')
				  AND start_time + (duration_min * interval '1 minute') > $4
			)
		`, uuid.New(), patient, practitioner, start, duration,
			motifs[gofakeit.Number(0, len(motifs)-1)])
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("appointments seeded: %d", inserted)
	return nil
}
