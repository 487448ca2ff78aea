package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/schedule"
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

	seedCtx := context.Background()

	facilityIDs, err := seedFacilities(seedCtx, pool, 10)
	if err != nil {
		log.Fatalf("seed facilities: %v", err)
	}
	if err := seedFamilies(seedCtx, pool, 2000); err != nil {
		log.Fatalf("seed families: %v", err)
	}
	vaccineRefs, err := seedVaccines(seedCtx, pool)
	if err != nil {
		log.Fatalf("seed vaccines: %v", err)
	}
	if err := seedStock(seedCtx, pool, facilityIDs, vaccineRefs); err != nil {
		log.Fatalf("seed stock: %v", err)
	}
	if err := seedSchedules(seedCtx, pool, facilityIDs); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}

	log.Println("seed complete")
}

func seedFacilities(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d facilities", count)

	ids := make([]uuid.UUID, 0, count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO facilities (id, name, address, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, gofakeit.Company()+" Clinic", gofakeit.Address().Address)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("facilities seeded")
	return ids, nil
}

func seedFamilies(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d members with children", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			memberID := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO members (id, full_name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, memberID, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			// One to three children per guardian, aged newborn to six.
			for c := 0; c < gofakeit.Number(1, 3); c++ {
				birth := gofakeit.DateRange(
					time.Now().AddDate(-6, 0, 0),
					time.Now().AddDate(0, 0, -7),
				)
				_, err := tx.Exec(ctx, `
					INSERT INTO children (id, member_id, full_name, birth_date, created_at, updated_at)
					VALUES ($1, $2, $3, $4, now(), now())
				`, uuid.New(), memberID, gofakeit.Name(), birth)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("families seeded: %d/%d", end, count)
	}

	log.Println("families seeded")
	return nil
}

type vaccineRef struct {
	VaccineID uuid.UUID
	DiseaseID uuid.UUID
}

func seedVaccines(ctx context.Context, pool *pgxpool.Pool) ([]vaccineRef, error) {
	log.Println("seeding disease and vaccine catalog")

	catalog := []struct {
		disease  string
		vaccine  string
		doses    int
		interval int
	}{
		{"Hepatitis B", "HepB Pediatric", 3, 28},
		{"Measles", "MMR II", 2, 90},
		{"Polio", "IPV", 4, 28},
		{"Diphtheria/Tetanus/Pertussis", "DTaP", 5, 28},
		{"Influenza", "Fluzone Quadrivalent", 1, 0},
		{"Varicella", "Varivax", 2, 90},
		{"Pneumococcal", "PCV13", 4, 28},
	}

	refs := make([]vaccineRef, 0, len(catalog))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, entry := range catalog {
		diseaseID := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO diseases (id, name) VALUES ($1, $2)
		`, diseaseID, entry.disease); err != nil {
			return nil, err
		}

		vaccineID := uuid.New()
		manufacturer := gofakeit.Company()
		if _, err := tx.Exec(ctx, `
			INSERT INTO vaccines (id, name, manufacturer, dose_count, min_interval_days)
			VALUES ($1, $2, $3, $4, $5)
		`, vaccineID, entry.vaccine, manufacturer, entry.doses, entry.interval); err != nil {
			return nil, err
		}

		refs = append(refs, vaccineRef{VaccineID: vaccineID, DiseaseID: diseaseID})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("catalog seeded")
	return refs, nil
}

func seedStock(ctx context.Context, pool *pgxpool.Pool, facilityIDs []uuid.UUID, refs []vaccineRef) error {
	log.Println("seeding facility stock")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, facilityID := range facilityIDs {
		for _, ref := range refs {
			_, err := tx.Exec(ctx, `
				INSERT INTO facility_vaccines (id, facility_id, vaccine_id, disease_id, price, quantity)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.New(), facilityID, ref.VaccineID, ref.DiseaseID,
				int64(gofakeit.Number(150_000, 900_000)), gofakeit.Number(20, 200))
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("stock seeded")
	return nil
}

func seedSchedules(ctx context.Context, pool *pgxpool.Pool, facilityIDs []uuid.UUID) error {
	log.Println("seeding templates and the next 14 days of slots")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, facilityID := range facilityIDs {
		tpl := schedule.WorkingHoursTemplate{
			ID:                  uuid.New(),
			FacilityID:          facilityID,
			Name:                "weekday",
			StartMinute:         8 * 60,
			EndMinute:           17 * 60,
			SlotDurationMinutes: 30,
			LunchStartMinute:    12 * 60,
			LunchEndMinute:      13 * 60,
			MaxCapacity:         gofakeit.Number(3, 8),
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO working_hours_templates
				(id, facility_id, name, start_minute, end_minute,
				 slot_duration_minutes, lunch_start_minute, lunch_end_minute,
				 max_capacity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		`, tpl.ID, tpl.FacilityID, tpl.Name, tpl.StartMinute, tpl.EndMinute,
			tpl.SlotDurationMinutes, tpl.LunchStartMinute, tpl.LunchEndMinute, tpl.MaxCapacity)
		if err != nil {
			return err
		}

		for day := 0; day < 14; day++ {
			date := time.Now().AddDate(0, 0, day)
			for _, w := range tpl.SlotWindows() {
				_, err := tx.Exec(ctx, `
					INSERT INTO schedule_slots
						(id, facility_id, slot_date, start_minute, end_minute,
						 max_capacity, booked_count, status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, 0, 'available', now(), now())
				`, uuid.New(), facilityID, date, w.StartMinute, w.EndMinute, tpl.MaxCapacity)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("schedules seeded")
	return nil
}
