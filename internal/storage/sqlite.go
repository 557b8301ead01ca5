// Package storage reads the admin bot's SQLite database: connected
// client records and the penalties table used to sync active bans.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/woozymasta/mbrelay/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New opens the bot database, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(1 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

const penaltyColumns = `id, type, client_id, admin_id, duration, inactive, keyword, reason, data,
	time_add, time_edit, time_expire`

// ActiveBans returns active Ban and TempBan penalties ordered by client.
// Temporary bans must not be expired at now; permanent bans count only
// when they were added after permanentSince.
func (r *Repository) ActiveBans(ctx context.Context, now, permanentSince time.Time) ([]models.Penalty, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+penaltyColumns+`
		FROM penalties
		WHERE type IN (?, ?)
		  AND inactive = 0
		  AND ((time_expire = -1 AND time_add > ?) OR time_expire > ?)
		ORDER BY client_id
	`, models.PenaltyBan, models.PenaltyTempBan, permanentSince.Unix(), now.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var penalties []models.Penalty
	for rows.Next() {
		p, err := scanPenalty(rows)
		if err != nil {
			return nil, err
		}
		penalties = append(penalties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return penalties, nil
}

func scanPenalty(rows *sql.Rows) (models.Penalty, error) {
	var (
		p                          models.Penalty
		inactive                   int
		timeAdd, timeEdit, timeExp int64
	)

	err := rows.Scan(
		&p.ID, &p.Type, &p.ClientID, &p.AdminID, &p.Duration, &inactive, &p.Keyword, &p.Reason, &p.Data,
		&timeAdd, &timeEdit, &timeExp,
	)
	if err != nil {
		return p, err
	}

	p.Inactive = inactive != 0
	p.TimeAdd = time.Unix(timeAdd, 0)
	p.TimeEdit = time.Unix(timeEdit, 0)
	if timeExp > 0 {
		p.TimeExpire = time.Unix(timeExp, 0)
	}

	return p, nil
}

// GetClient retrieves a client by its database id. It returns nil when not found.
func (r *Repository) GetClient(ctx context.Context, id int64) (*models.ClientRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, guid, pbid, name, ip, time_add, COALESCE(last_visit, 0)
		FROM clients
		WHERE id = ?
	`, id)

	var (
		c                  models.ClientRecord
		timeAdd, lastVisit int64
	)
	err := row.Scan(&c.ID, &c.GUID, &c.PBID, &c.Name, &c.IP, &timeAdd, &lastVisit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.TimeAdd = time.Unix(timeAdd, 0)
	if lastVisit > 0 {
		c.LastVisit = time.Unix(lastVisit, 0)
	}

	return &c, nil
}

// SaveClient inserts a client or refreshes name, ip, pbid and last visit of an existing guid.
// It returns the client id.
func (r *Repository) SaveClient(ctx context.Context, c models.ClientRecord) (int64, error) {
	now := time.Now().Unix()
	if c.LastVisit.IsZero() {
		c.LastVisit = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (guid, pbid, name, ip, time_add, time_edit, last_visit)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guid) DO UPDATE SET
			pbid = CASE WHEN excluded.pbid != '' THEN excluded.pbid ELSE clients.pbid END,
			ip   = CASE WHEN excluded.ip != '' THEN excluded.ip ELSE clients.ip END,
			name = excluded.name,
			time_edit = excluded.time_edit,
			last_visit = excluded.last_visit;
	`, c.GUID, c.PBID, c.Name, c.IP, now, now, c.LastVisit.Unix())
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM clients WHERE guid = ?`, c.GUID).Scan(&id)

	return id, err
}

// AddPenalty stores a penalty and returns its id. A zero TimeExpire stores a permanent penalty.
func (r *Repository) AddPenalty(ctx context.Context, p models.Penalty) (int64, error) {
	expire := int64(-1)
	if !p.Permanent() {
		expire = p.TimeExpire.Unix()
	}
	if p.TimeAdd.IsZero() {
		p.TimeAdd = time.Now()
	}

	inactive := 0
	if p.Inactive {
		inactive = 1
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO penalties (type, client_id, admin_id, duration, inactive, keyword, reason, data,
			time_add, time_edit, time_expire)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Type, p.ClientID, p.AdminID, p.Duration, inactive, p.Keyword, p.Reason, p.Data,
		p.TimeAdd.Unix(), p.TimeAdd.Unix(), expire)
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}
