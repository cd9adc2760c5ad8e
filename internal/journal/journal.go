package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketSyncs = "syncs" // key: external name -> Entry JSON

// Entry records the outcome of the most recent sync of one external.
type Entry struct {
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Branch   string        `json:"branch"`
	Action   string        `json:"action"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	SyncedAt time.Time     `json:"synced_at"`
	Duration time.Duration `json:"duration"`
}

// Journal is a small bbolt store of per-external sync outcomes, kept next
// to the cache entries.
type Journal struct {
	db *bbolt.DB
}

// Open opens (or creates) the journal under the cache root.
func Open(cacheRoot string) (*Journal, error) {
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(cacheRoot, "externals.db")

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSyncs))

		return err
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores the entry, replacing any previous record for the same
// external.
func (j *Journal) Record(entry Entry) error {
	data, err := json.Marshal(&entry)
	if err != nil {
		return err
	}

	return j.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketSyncs)).Put([]byte(entry.Name), data)
	})
}

// List returns all recorded entries sorted by external name.
func (j *Journal) List() ([]Entry, error) {
	var entries []Entry

	if err := j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketSyncs)).ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			entries = append(entries, entry)

			return nil
		})
	}); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].Name < entries[k].Name
	})

	return entries, nil
}
