package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/careslot/booking-engine/internal/db"
)

var log = zerolog.New(os.Stderr).With().Timestamp().Str("service", "seed").Logger()

func main() {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := createSchema(context.Background(), pool); err != nil {
		log.Fatal().Err(err).Msg("create schema")
	}
	if err := seedDoctors(context.Background(), pool, 50); err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}

	log.Info().Msg("seed complete")
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS doctors (
			id         uuid PRIMARY KEY,
			tenant_id  uuid NOT NULL,
			name       text NOT NULL,
			specialty  text,
			created_at timestamptz NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS patients (
			id         uuid PRIMARY KEY,
			tenant_id  uuid NOT NULL,
			name       text NOT NULL,
			phone      text,
			created_at timestamptz NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS appointments (
			id              uuid PRIMARY KEY,
			tenant_id       uuid NOT NULL,
			branch_id       uuid,
			doctor_id       uuid NOT NULL,
			patient_id      uuid NOT NULL,
			slot_date       date NOT NULL,
			slot_time       text NOT NULL,
			requested_time  text NOT NULL,
			chief_complaint text NOT NULL DEFAULT '',
			history         text NOT NULL DEFAULT '',
			status          text NOT NULL,
			idempotency_key text,
			created_at      timestamptz NOT NULL,
			updated_at      timestamptz NOT NULL
		);

		CREATE INDEX IF NOT EXISTS appointments_doctor_day
			ON appointments (doctor_id, slot_date);

		CREATE TABLE IF NOT EXISTS slot_claims (
			doctor_id      uuid NOT NULL,
			slot_date      date NOT NULL,
			slot_time      text NOT NULL,
			appointment_id uuid NOT NULL,
			tenant_id      uuid NOT NULL,
			created_at     timestamptz NOT NULL DEFAULT now(),
			UNIQUE (doctor_id, slot_date, slot_time)
		);
	`)
	return err
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Info().Int("count", count).Msg("seeding doctors")

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tenantID := seedTenantID()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, tenant_id, name, specialty)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), tenantID, "Dr. "+gofakeit.Name(), spec)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Info().Int("count", count).Msg("seeding patients")

	tenantID := seedTenantID()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, tenant_id, name, phone)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), tenantID, gofakeit.Name(), gofakeit.Phone())
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// seedTenantID keeps all seeded rows under one stable demo tenant so the
// simulator can book against them.
func seedTenantID() uuid.UUID {
	return uuid.MustParse("00000000-0000-0000-0000-000000000001")
}
