package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tollfee/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every *.sql file in dir in lexical order. Applied file names are
// recorded in schema_migrations and skipped on later runs.
func (p *Postgres) MigrateDir(dir string) error {
	ctx := context.Background()
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, f := range files {
		name := filepath.Base(f)
		var seen int
		if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM schema_migrations WHERE name=$1`, name).Scan(&seen); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		if seen > 0 {
			continue
		}
		body, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

const passageColumns = `id::text, vehicle_id, vehicle_type, ts_raw`

func (p *Postgres) CreatePassage(ctx context.Context, in model.PassageInput) (model.Passage, error) {
	out, err := p.CreatePassages(ctx, []model.PassageInput{in})
	if err != nil {
		return model.Passage{}, err
	}
	return out[0], nil
}

func (p *Postgres) CreatePassages(ctx context.Context, ins []model.PassageInput) ([]model.Passage, error) {
	ats := make([]time.Time, len(ins))
	for i, in := range ins {
		at, err := checkInput(in)
		if err != nil {
			return nil, err
		}
		ats[i] = at
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]model.Passage, 0, len(ins))
	for i, in := range ins {
		pa := model.Passage{ID: uuid.New().String(), VehicleID: in.VehicleID, VehicleType: in.VehicleType, Timestamp: in.Timestamp}
		_, err := tx.ExecContext(ctx, `INSERT INTO passages (id, vehicle_id, vehicle_type, ts, ts_raw) VALUES ($1,$2,$3,$4,$5)`,
			pa.ID, pa.VehicleID, string(pa.VehicleType), ats[i], pa.Timestamp)
		if err != nil {
			return nil, err
		}
		out = append(out, pa)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) GetPassage(ctx context.Context, id string) (model.Passage, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Passage{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+passageColumns+` FROM passages WHERE id=$1`, id)
	pa, err := scanPassage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Passage{}, ErrNotFound
	}
	return pa, err
}

func (p *Postgres) ListPassages(ctx context.Context) ([]model.Passage, error) {
	return p.queryPassages(ctx, `SELECT `+passageColumns+` FROM passages ORDER BY ts ASC, id::text ASC`)
}

func (p *Postgres) ListPassagesByVehicle(ctx context.Context, vehicleID string) ([]model.Passage, error) {
	return p.queryPassages(ctx, `SELECT `+passageColumns+` FROM passages WHERE vehicle_id=$1 ORDER BY ts ASC, id::text ASC`, vehicleID)
}

func (p *Postgres) queryPassages(ctx context.Context, q string, args ...any) ([]model.Passage, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Passage{}
	for rows.Next() {
		pa, err := scanPassage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pa)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanPassage reads one row and re-validates the vehicle type so a hand-edited row
// can never reach the engine.
func scanPassage(r rowScanner) (model.Passage, error) {
	var pa model.Passage
	var vt string
	if err := r.Scan(&pa.ID, &pa.VehicleID, &vt, &pa.Timestamp); err != nil {
		return model.Passage{}, err
	}
	parsed, err := model.ParseVehicleType(vt)
	if err != nil {
		return model.Passage{}, fmt.Errorf("passage %s: %w: %q", pa.ID, err, vt)
	}
	pa.VehicleType = parsed
	return pa, nil
}

func (p *Postgres) DeletePassage(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM passages WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ClearPassages(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM passages`)
	return err
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, event_type, url, secret, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,'pending',0,now())`, id, eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	if nextAttemptAt == nil {
		t := time.Now().Add(time.Minute)
		nextAttemptAt = &t
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', failed_at=now(), last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDLQ(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, url, attempts, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), failed_at
        FROM webhook_deliveries WHERE status='failed' ORDER BY failed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DeadLetter{}
	for rows.Next() {
		var d DeadLetter
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Attempts, &d.LastError, &d.ResponseCode, &d.LatencyMs, &d.FailedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
