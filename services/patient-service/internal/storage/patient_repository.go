package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pm/patient-management/libs/db"
	"github.com/pm/patient-management/services/patient-service/internal/intents"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
)

const emailConstraint = "patients_email_key"

type PatientRepository struct {
	pool    *db.Pool
	intents *intents.Repository
}

func NewPatientRepository(pool *db.Pool, intentsRepo *intents.Repository) *PatientRepository {
	return &PatientRepository{pool: pool, intents: intentsRepo}
}

func (r *PatientRepository) Insert(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	return r.insert(ctx, r.pool, p)
}

func (r *PatientRepository) InsertWithBillingIntent(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	if r.intents == nil {
		return patient.Patient{}, errors.New("intents repository not configured")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return patient.Patient{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := r.insert(ctx, tx, p)
	if err != nil {
		return patient.Patient{}, err
	}
	if err := r.intents.InsertTx(ctx, tx, intents.Intent{
		PatientID: created.ID,
		Name:      created.Name,
		Email:     created.Email,
	}); err != nil {
		return patient.Patient{}, fmt.Errorf("insert billing intent: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return patient.Patient{}, mapWriteError(err)
	}
	return created, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PatientRepository) insert(ctx context.Context, q queryRower, p patient.Patient) (patient.Patient, error) {
	err := q.QueryRow(ctx, `
		INSERT INTO patients (name, email, address, date_of_birth, registered_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.Name, p.Email, p.Address, p.DateOfBirth, p.RegisteredDate).Scan(&p.ID)
	if err != nil {
		return patient.Patient{}, mapWriteError(err)
	}
	return p, nil
}

func (r *PatientRepository) Update(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients
		SET name = $2,
		    email = $3,
		    address = $4,
		    date_of_birth = $5,
		    updated_at = now()
		WHERE id = $1
	`, p.ID, p.Name, p.Email, p.Address, p.DateOfBirth)
	if err != nil {
		return patient.Patient{}, mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return patient.Patient{}, patient.ErrNotFound
	}
	return p, nil
}

func (r *PatientRepository) FindByID(ctx context.Context, id uuid.UUID) (patient.Patient, error) {
	var p patient.Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, address, date_of_birth, registered_date
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email, &p.Address, &p.DateOfBirth, &p.RegisteredDate)
	if db.IsNotFound(err) {
		return patient.Patient{}, patient.ErrNotFound
	}
	if err != nil {
		return patient.Patient{}, err
	}
	return p, nil
}

func (r *PatientRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (r *PatientRepository) ExistsByEmailExcluding(ctx context.Context, email string, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE email = $1 AND id <> $2)`, email, id).Scan(&exists)
	return exists, err
}

func (r *PatientRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *PatientRepository) FindAll(ctx context.Context) ([]patient.Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, address, date_of_birth, registered_date
		FROM patients
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []patient.Patient
	for rows.Next() {
		var p patient.Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Address, &p.DateOfBirth, &p.RegisteredDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, emailConstraint) {
		return patient.ErrDuplicateEmail
	}
	return err
}
