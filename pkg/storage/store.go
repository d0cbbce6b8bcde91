package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/codeops-dev/registry/pkg/apperrors"
)

var (
	// Bucket names
	bucketServices        = []byte("services")
	bucketPortAllocations = []byte("port_allocations")
	bucketPortRanges      = []byte("port_ranges")
	bucketDependencies    = []byte("dependencies")
	bucketRoutes          = []byte("routes")
	bucketInfraResources  = []byte("infra_resources")
	bucketEnvConfigs      = []byte("env_configs")
	bucketSolutions       = []byte("solutions")
	bucketSolutionMembers = []byte("solution_members")
	bucketProfiles        = []byte("workstation_profiles")
	bucketTemplates       = []byte("config_templates")
)

// Store is the bbolt-backed entity store. Every public registry operation
// runs its invariant checks and writes inside one Update transaction;
// bbolt's single writer makes that sequence serializable.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the data file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketServices,
			bucketPortAllocations,
			bucketPortRanges,
			bucketDependencies,
			bucketRoutes,
			bucketInfraResources,
			bucketEnvConfigs,
			bucketSolutions,
			bucketSolutionMembers,
			bucketProfiles,
			bucketTemplates,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the data file location.
func (s *Store) Path() string {
	return s.path
}

// View runs fn in a read-only snapshot transaction.
func (s *Store) View(fn func(*Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Update runs fn in the single writable transaction. Returning an error
// rolls every write in fn back.
func (s *Store) Update(fn func(*Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Snapshot streams a consistent copy of the data file, for backups.
func (s *Store) Snapshot(w io.Writer) (int64, error) {
	var n int64
	err := s.db.View(func(btx *bolt.Tx) error {
		var err error
		n, err = btx.WriteTo(w)
		return err
	})
	return n, err
}

// Tx exposes typed entity accessors over one bolt transaction.
type Tx struct {
	btx *bolt.Tx
}

func (t *Tx) put(bucket []byte, id string, v interface{}) error {
	if id == "" {
		return fmt.Errorf("empty id for bucket %s", bucket)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", bucket, err)
	}
	return t.btx.Bucket(bucket).Put([]byte(id), data)
}

// load unmarshals the record with the given id; found=false on a miss.
func (t *Tx) load(bucket []byte, id string, out interface{}) (bool, error) {
	data := t.btx.Bucket(bucket).Get([]byte(id))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal %s record %s: %w", bucket, id, err)
	}
	return true, nil
}

func (t *Tx) delete(bucket []byte, id string) error {
	return t.btx.Bucket(bucket).Delete([]byte(id))
}

func (t *Tx) scan(bucket []byte, fn func(v []byte) error) error {
	return t.btx.Bucket(bucket).ForEach(func(_, v []byte) error {
		return fn(v)
	})
}

func notFound(entity, id string) error {
	return apperrors.NotFoundf("%s not found: %s", entity, id)
}
