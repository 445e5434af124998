package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jphacks/os-2412/pkg/domain"
)

var recordsBucket = []byte("records")

type boltRecordRepository struct {
	db *bolt.DB
}

// NewBoltRecordRepository opens (or creates) the album database at path.
func NewBoltRecordRepository(path string) (*boltRecordRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating records bucket: %w", err)
	}

	return &boltRecordRepository{db: db}, nil
}

func (r *boltRecordRepository) Close() error {
	return r.db.Close()
}

func (r *boltRecordRepository) Save(_ context.Context, record domain.Record) (string, error) {
	enc, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}

	var id string
	err = r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		id = freeID(domain.RecordID(record.Timestamp), func(candidate string) bool {
			return b.Get([]byte(candidate)) != nil
		})
		return b.Put([]byte(id), enc)
	})
	if err != nil {
		return "", fmt.Errorf("saving record: %w", err)
	}

	return id, nil
}

func (r *boltRecordRepository) GetByID(_ context.Context, id string) (*domain.Record, error) {
	var record *domain.Record
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(recordsBucket).Get([]byte(id))
		if v == nil {
			return domain.ErrNotFound
		}
		record = &domain.Record{}
		return json.Unmarshal(v, record)
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (r *boltRecordRepository) GetAll(_ context.Context) (map[string]domain.Record, error) {
	out := map[string]domain.Record{}
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(k, v []byte) error {
			var record domain.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("decoding record %s: %w", k, err)
			}
			out[string(k)] = record
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// freeID returns base, or base suffixed with _2, _3, ... when taken.
func freeID(base string, taken func(string) bool) string {
	id := base
	for n := 2; taken(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}
