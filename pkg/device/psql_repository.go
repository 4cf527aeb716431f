package device

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX allows using either a connection pool or a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRegistrationRepository implements RegistrationRepository using
// PostgreSQL.
type PostgresRegistrationRepository struct {
	db DBTX
}

// NewPostgresRegistrationRepository creates a PostgreSQL registration repository.
func NewPostgresRegistrationRepository(db DBTX) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{db: db}
}

func (r *PostgresRegistrationRepository) CreateRegistration(ctx context.Context, registration Registration) (Registration, error) {
	query := `
		INSERT INTO device_registration (id, user_agent, registered_at, origin_ip)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query,
		registration.ID,
		registration.UserAgent,
		registration.Timestamp,
		registration.IP,
	)
	if err != nil {
		return Registration{}, fmt.Errorf("failed to insert registration: %w", err)
	}
	return registration, nil
}

func (r *PostgresRegistrationRepository) FindRegistrations(ctx context.Context) ([]Registration, error) {
	query := `
		SELECT id, user_agent, registered_at, origin_ip
		FROM device_registration
		ORDER BY registered_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	var registrations []Registration
	for rows.Next() {
		var registration Registration
		if err := rows.Scan(&registration.ID, &registration.UserAgent, &registration.Timestamp, &registration.IP); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		registrations = append(registrations, registration)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read registrations: %w", err)
	}
	return registrations, nil
}
