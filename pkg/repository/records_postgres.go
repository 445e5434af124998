package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jphacks/os-2412/pkg/domain"
)

// maxIDAttempts bounds how many suffixed ids are tried for one timestamp.
const maxIDAttempts = 100

type postgresRecordRepository struct {
	db *sql.DB
}

func NewPostgresRecordRepository(db *sql.DB) *postgresRecordRepository {
	return &postgresRecordRepository{db: db}
}

func (p *postgresRecordRepository) Save(ctx context.Context, record domain.Record) (string, error) {
	const query = `
		INSERT INTO records (id, data, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}

	base := domain.RecordID(record.Timestamp)
	id := base
	for n := 2; n <= maxIDAttempts+1; n++ {
		res, err := p.db.ExecContext(ctx, query, id, data, record.Timestamp)
		if err != nil {
			return "", fmt.Errorf("saving record: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("saving record: %w", err)
		}
		if affected > 0 {
			return id, nil
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}

	return "", fmt.Errorf("saving record: no free id for %s", base)
}

func (p *postgresRecordRepository) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	const query = `
		SELECT data
		FROM records
		WHERE id = $1
	`

	var data []byte
	if err := p.db.QueryRowContext(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("fetching record by id: %w", err)
	}

	var record domain.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}

	return &record, nil
}

func (p *postgresRecordRepository) GetAll(ctx context.Context) (map[string]domain.Record, error) {
	const query = `
		SELECT id, data
		FROM records
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetching records: %w", err)
	}
	defer rows.Close()

	out := map[string]domain.Record{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		var record domain.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", id, err)
		}
		out[id] = record
	}

	return out, rows.Err()
}
