package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelKeyPrefix = "audit:"

// LevelDBStore keeps the chain in a local LevelDB directory, one JSON value
// per entry under "audit:<zero-padded seq>" so key order is append order.
type LevelDBStore struct {
	db *leveldb.DB
}

func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open audit leveldb %s: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func levelKey(seq int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", levelKeyPrefix, seq))
}

func (s *LevelDBStore) Append(_ context.Context, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry %d: %w", e.Seq, err)
	}
	if err := s.db.Put(levelKey(e.Seq), data, syncWrite); err != nil {
		return fmt.Errorf("put audit entry %d: %w", e.Seq, err)
	}
	return nil
}

// Entries are fsynced before Append returns.
var syncWrite = &opt.WriteOptions{Sync: true}

func decodeLevel(value []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(value, &e); err != nil {
		return nil, fmt.Errorf("decode audit entry: %w", err)
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	return &e, nil
}

func (s *LevelDBStore) Last(_ context.Context) (*Entry, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(levelKeyPrefix)), nil)
	defer it.Release()
	if !it.Last() {
		return nil, it.Error()
	}
	return decodeLevel(it.Value())
}

func (s *LevelDBStore) List(_ context.Context, f Filter) ([]*Entry, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(levelKeyPrefix)), nil)
	defer it.Release()

	var out []*Entry
	for it.Next() {
		e, err := decodeLevel(it.Value())
		if err != nil {
			return nil, err
		}
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate audit leveldb: %w", err)
	}
	return out, nil
}

func (s *LevelDBStore) Truncate(_ context.Context) error {
	it := s.db.NewIterator(util.BytesPrefix([]byte(levelKeyPrefix)), nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return fmt.Errorf("iterate audit leveldb: %w", err)
	}
	if err := s.db.Write(batch, syncWrite); err != nil {
		return fmt.Errorf("truncate audit leveldb: %w", err)
	}
	return nil
}
