package subscriberrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

// PostgresRepository persists subscribers in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const subscriberColumns = `
	id, email, phone,
	push_endpoint, push_p256dh, push_auth, push_player_id,
	threshold_kmh, channels, active,
	last_alert_at, last_alert_level, created_at, updated_at
`

// Get fetches a subscriber by primary key.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (alert.Subscriber, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE id = $1
	`, id)
	sub, err := scanSubscriber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return alert.Subscriber{}, apperrors.New("not_found", "subscriber not found")
	}
	return sub, err
}

// ListActive fetches every subscriber still opted in.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]alert.Subscriber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers
		WHERE active
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []alert.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Upsert inserts or updates a subscriber row. Dedup bookkeeping columns
// are never touched here; RecordAlert owns them.
func (r *PostgresRepository) Upsert(ctx context.Context, sub alert.Subscriber) (alert.Subscriber, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO subscribers (
			id, email, phone,
			push_endpoint, push_p256dh, push_auth, push_player_id,
			threshold_kmh, channels, active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email          = EXCLUDED.email,
			phone          = EXCLUDED.phone,
			push_endpoint  = EXCLUDED.push_endpoint,
			push_p256dh    = EXCLUDED.push_p256dh,
			push_auth      = EXCLUDED.push_auth,
			push_player_id = EXCLUDED.push_player_id,
			threshold_kmh  = EXCLUDED.threshold_kmh,
			channels       = EXCLUDED.channels,
			active         = EXCLUDED.active,
			updated_at     = now()
		RETURNING `+subscriberColumns+`
	`, sub.ID, sub.Email, sub.Phone,
		sub.Push.Endpoint, sub.Push.P256DH, sub.Push.Auth, sub.Push.PlayerID,
		sub.ThresholdKMH, channelStrings(sub.Channels), sub.Active)
	return scanSubscriber(row)
}

// RecordAlert stamps the dedup bookkeeping after a delivered alert.
func (r *PostgresRepository) RecordAlert(ctx context.Context, id uuid.UUID, at time.Time, level alert.Level) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscribers
		SET last_alert_at = $2, last_alert_level = $3, updated_at = now()
		WHERE id = $1
	`, id, at.UTC(), level.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New("not_found", "subscriber not found")
	}
	return nil
}

// Deactivate soft-deletes a subscriber.
func (r *PostgresRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscribers
		SET active = FALSE, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New("not_found", "subscriber not found")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (alert.Subscriber, error) {
	var (
		sub       alert.Subscriber
		channels  []string
		lastAt    *time.Time
		lastLevel *string
	)
	err := row.Scan(
		&sub.ID, &sub.Email, &sub.Phone,
		&sub.Push.Endpoint, &sub.Push.P256DH, &sub.Push.Auth, &sub.Push.PlayerID,
		&sub.ThresholdKMH, &channels, &sub.Active,
		&lastAt, &lastLevel, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return alert.Subscriber{}, err
	}
	for _, c := range channels {
		if parsed, ok := alert.ParseChannel(c); ok {
			sub.Channels = append(sub.Channels, parsed)
		}
	}
	if lastAt != nil {
		sub.LastAlertAt = lastAt.UTC()
	}
	if lastLevel != nil {
		if level, err := alert.ParseLevel(*lastLevel); err == nil {
			sub.LastAlertLevel = level
		}
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return sub, nil
}

func channelStrings(channels []alert.Channel) []string {
	out := make([]string, 0, len(channels))
	for _, c := range channels {
		out = append(out, string(c))
	}
	return out
}

var _ alert.SubscriberRepository = (*PostgresRepository)(nil)
