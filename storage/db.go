package storage

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// Mutation is a single pending change inside an atomic batch. A nil Value with
// Delete set removes the key.
type Mutation struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Database is a generic interface for a key-value store. Get returns a nil
// slice when the key is absent. Write applies every mutation atomically: the
// batch is either fully visible or not at all, which is what the state
// manager's commit step relies on.
type Database interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Write(batch []Mutation) error
	Close()
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	db.data[string(key)] = buf
	return nil
}

func (db *MemDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

func (db *MemDB) Write(batch []Mutation) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, m := range batch {
		if m.Delete {
			delete(db.data, string(m.Key))
			continue
		}
		buf := make([]byte, len(m.Value))
		copy(buf, m.Value)
		db.data[string(m.Key)] = buf
	}
	return nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB. Batches go through
// leveldb's own write-ahead journal, so a crash mid-commit never leaves a
// partially applied transaction behind.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

func (ldb *LevelDB) Write(batch []Mutation) error {
	b := new(leveldb.Batch)
	for _, m := range batch {
		if m.Delete {
			b.Delete(m.Key)
			continue
		}
		b.Put(m.Key, m.Value)
	}
	return ldb.db.Write(b, nil)
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}
