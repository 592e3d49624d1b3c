// Package postgres stores members, attendance and settings in Postgres. Every
// statement runs inside a transaction scoped to one admin through row level
// security.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/gym/internal/domain"
)

//go:embed migrations/0001_init.up.sql
var schema string

// Repository provides Postgres-backed persistence for the attendance,
// member and settings contracts.
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate applies the schema. It is safe to run repeatedly.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

// withAdmin runs fn in a transaction whose row level security is bound to adminID.
func (r *Repository) withAdmin(ctx context.Context, adminID string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.admin_id', $1, true)", adminID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SaveMember inserts or replaces a member.
func (r *Repository) SaveMember(ctx context.Context, member domain.Member) error {
	const stmt = `INSERT INTO members (id, admin_id, name, email, phone, joined_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email, phone=EXCLUDED.phone`

	return r.withAdmin(ctx, member.AdminID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, stmt, member.ID, member.AdminID, member.Name, nullIfEmpty(member.Email), nullIfEmpty(member.Phone), member.JoinedAt)
		return err
	})
}

// DeleteMember removes a member. Its attendance rows keep a NULL member reference.
func (r *Repository) DeleteMember(ctx context.Context, adminID, memberID string) error {
	return r.withAdmin(ctx, adminID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM members WHERE admin_id=$1 AND id=$2`, adminID, memberID)
		return err
	})
}

// FindByIDs implements domain.MemberRepository.
func (r *Repository) FindByIDs(ctx context.Context, adminID string, ids []string) (map[string]domain.Member, error) {
	const query = `SELECT id, admin_id, name, COALESCE(email, ''), COALESCE(phone, ''), joined_at
        FROM members WHERE admin_id=$1 AND id = ANY($2)`

	out := make(map[string]domain.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	err := r.withAdmin(ctx, adminID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, adminID, ids)
		if err != nil {
			return err
		}
		members, err := pgx.CollectRows(rows, scanMember)
		if err != nil {
			return err
		}
		for _, m := range members {
			out[m.ID] = m
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List implements domain.MemberRepository.
func (r *Repository) List(ctx context.Context, adminID string) ([]domain.Member, error) {
	const query = `SELECT id, admin_id, name, COALESCE(email, ''), COALESCE(phone, ''), joined_at
        FROM members WHERE admin_id=$1 ORDER BY name, id`

	var members []domain.Member
	err := r.withAdmin(ctx, adminID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, adminID)
		if err != nil {
			return err
		}
		members, err = pgx.CollectRows(rows, scanMember)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func scanMember(row pgx.CollectableRow) (domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.ID, &m.AdminID, &m.Name, &m.Email, &m.Phone, &m.JoinedAt)
	m.JoinedAt = m.JoinedAt.UTC()
	return m, err
}

// Create implements domain.AttendanceRepository. A taken id is ErrConflict.
func (r *Repository) Create(ctx context.Context, record domain.AttendanceRecord) error {
	const stmt = `INSERT INTO attendance (id, admin_id, member_id, attended_at)
        VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`

	return r.withAdmin(ctx, record.AdminID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, record.ID, record.AdminID, nullIfEmpty(record.MemberID), record.Date)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return nil
	})
}

// FindRecord implements domain.AttendanceRepository.
func (r *Repository) FindRecord(ctx context.Context, adminID, id string) (*domain.AttendanceRecord, error) {
	const query = `SELECT id, admin_id, COALESCE(member_id, ''), attended_at
        FROM attendance WHERE admin_id=$1 AND id=$2`

	var out *domain.AttendanceRecord
	err := r.withAdmin(ctx, adminID, func(tx pgx.Tx) error {
		var rec domain.AttendanceRecord
		err := tx.QueryRow(ctx, query, adminID, id).Scan(&rec.ID, &rec.AdminID, &rec.MemberID, &rec.Date)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		rec.Date = rec.Date.UTC()
		out = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByPeriod implements domain.AttendanceRepository.
func (r *Repository) ListByPeriod(ctx context.Context, adminID string, from, to time.Time) ([]domain.AttendanceRecord, error) {
	const query = `SELECT id, admin_id, COALESCE(member_id, ''), attended_at
        FROM attendance WHERE admin_id=$1 AND attended_at >= $2 AND attended_at <= $3
        ORDER BY attended_at, id`

	var records []domain.AttendanceRecord
	err := r.withAdmin(ctx, adminID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, adminID, from, to)
		if err != nil {
			return err
		}
		records, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AttendanceRecord, error) {
			var rec domain.AttendanceRecord
			err := row.Scan(&rec.ID, &rec.AdminID, &rec.MemberID, &rec.Date)
			rec.Date = rec.Date.UTC()
			return rec, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get implements domain.SettingsRepository.
func (r *Repository) Get(ctx context.Context, adminID string) (*domain.Settings, error) {
	var out *domain.Settings
	err := r.withAdmin(ctx, adminID, func(tx pgx.Tx) error {
		settings, err := selectSettings(ctx, tx, adminID, false)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &settings
		return nil
	})
	return out, err
}

// GetOrCreate implements domain.SettingsRepository.
func (r *Repository) GetOrCreate(ctx context.Context, adminID string, defaults domain.Settings) (domain.Settings, bool, error) {
	var (
		out     domain.Settings
		created bool
	)
	err := r.withAdmin(ctx, adminID, func(tx pgx.Tx) error {
		var err error
		created, err = insertDefaults(ctx, tx, adminID, defaults)
		if err != nil {
			return err
		}
		out, err = selectSettings(ctx, tx, adminID, false)
		return err
	})
	if err != nil {
		return domain.Settings{}, false, mapError(err)
	}
	return out, created, nil
}

// Upsert implements domain.SettingsRepository. The row is locked between
// read and write so concurrent merges do not drop each other's fields.
func (r *Repository) Upsert(ctx context.Context, adminID string, patch domain.SettingsPatch, defaults domain.Settings) (domain.Settings, error) {
	var out domain.Settings
	err := r.withAdmin(ctx, adminID, func(tx pgx.Tx) error {
		if _, err := insertDefaults(ctx, tx, adminID, defaults); err != nil {
			return err
		}
		current, err := selectSettings(ctx, tx, adminID, true)
		if err != nil {
			return err
		}

		patch.Apply(&current)
		current.AdminID = adminID
		current.UpdatedAt = r.now()

		doc, err := json.Marshal(current)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE settings SET document=$2, updated_at=$3 WHERE admin_id=$1`, adminID, doc, current.UpdatedAt); err != nil {
			return err
		}
		out = current
		return nil
	})
	if err != nil {
		return domain.Settings{}, mapError(err)
	}
	return out, nil
}

func insertDefaults(ctx context.Context, tx pgx.Tx, adminID string, defaults domain.Settings) (bool, error) {
	defaults.AdminID = adminID
	doc, err := json.Marshal(defaults)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, `INSERT INTO settings (admin_id, document, created_at, updated_at)
        VALUES ($1,$2,$3,$4) ON CONFLICT (admin_id) DO NOTHING`,
		adminID, doc, defaults.CreatedAt, defaults.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func selectSettings(ctx context.Context, tx pgx.Tx, adminID string, forUpdate bool) (domain.Settings, error) {
	query := `SELECT document, created_at, updated_at FROM settings WHERE admin_id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		doc      []byte
		settings domain.Settings
	)
	if err := tx.QueryRow(ctx, query, adminID).Scan(&doc, &settings.CreatedAt, &settings.UpdatedAt); err != nil {
		return domain.Settings{}, err
	}
	createdAt, updatedAt := settings.CreatedAt.UTC(), settings.UpdatedAt.UTC()
	if err := json.Unmarshal(doc, &settings); err != nil {
		return domain.Settings{}, err
	}
	settings.AdminID = adminID
	settings.CreatedAt, settings.UpdatedAt = createdAt, updatedAt
	return settings, nil
}

// mapError turns unique violations and serialization failures into domain.ErrConflict.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "40001") {
		return domain.ErrConflict
	}
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
