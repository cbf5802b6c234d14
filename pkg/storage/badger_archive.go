package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"scrape-gate/pkg/log"
	"scrape-gate/pkg/models"
	"scrape-gate/pkg/utils"
)

const (
	batchKeyPrefix = "batch:"     // batch:<created unix nano, zero padded>:<id> -> record JSON
	batchIDPrefix  = "batchid:"   // batchid:<id> -> primary key
	historyDBDir   = "history_db" // Subdirectory within stateDir for Badger files
)

// BadgerArchive implements BatchArchive using BadgerDB
type BadgerArchive struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerArchive opens (or creates) the archive under stateDir.
func NewBadgerArchive(stateDir string, logger *logrus.Entry) (*BadgerArchive, error) {
	dbPath := filepath.Join(stateDir, historyDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	logger.Infof("Opening batch history at: %s", dbPath)
	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	return &BadgerArchive{db: db, log: logger}, nil
}

func batchKey(rec models.BatchRecord) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", batchKeyPrefix, rec.CreatedAt.UnixNano(), rec.ID))
}

const maxConflictRetries = 10

// dbUpdate retries db.Update on transaction conflicts.
func (a *BadgerArchive) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := a.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		a.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// SaveBatch implements BatchArchive
func (a *BadgerArchive) SaveBatch(rec models.BatchRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: batch record has no id", utils.ErrDatabase)
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal batch %s: %w", utils.ErrParsing, rec.ID, err)
	}
	key := batchKey(rec)
	idKey := []byte(batchIDPrefix + rec.ID)

	err = a.dbUpdate(func(txn *badger.Txn) error {
		// A resave under a different timestamp must not leave the old row behind.
		if item, errGet := txn.Get(idKey); errGet == nil {
			old, errCopy := item.ValueCopy(nil)
			if errCopy != nil {
				return errCopy
			}
			if string(old) != string(key) {
				if errDel := txn.Delete(old); errDel != nil {
					return errDel
				}
			}
		} else if !errors.Is(errGet, badger.ErrKeyNotFound) {
			return errGet
		}
		if errSet := txn.Set(key, val); errSet != nil {
			return errSet
		}
		return txn.Set(idKey, key)
	})
	if err != nil {
		a.log.WithField("batch", rec.ID).Errorf("DB Update error in SaveBatch: %v", err)
		return fmt.Errorf("%w: saving batch %s: %w", utils.ErrDatabase, rec.ID, err)
	}
	a.log.WithField("batch", rec.ID).Debug("Batch archived")
	return nil
}

// GetBatch implements BatchArchive
func (a *BadgerArchive) GetBatch(id string) (*models.BatchRecord, error) {
	var rec models.BatchRecord
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(batchIDPrefix + id))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", utils.ErrBatchNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading batch %s: %w", utils.ErrDatabase, id, err)
	}
	return &rec, nil
}

// ListBatches implements BatchArchive
func (a *BadgerArchive) ListBatches(limit int) ([]models.BatchRecord, error) {
	var out []models.BatchRecord
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(batchKeyPrefix)
		seek := append([]byte(batchKeyPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			item := it.Item()
			var rec models.BatchRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				a.log.Warnf("Skipping unreadable batch record '%s': %v", string(item.Key()), err)
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing batches: %w", utils.ErrDatabase, err)
	}
	return out, nil
}

// RunGC runs BadgerDB's value log garbage collection periodically
func (a *BadgerArchive) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if a.db.IsClosed() {
				return
			}
			var err error
			for err == nil {
				err = a.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				a.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			a.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements BatchArchive
func (a *BadgerArchive) Close() error {
	if a.db == nil || a.db.IsClosed() {
		return nil
	}
	if err := a.db.Close(); err != nil {
		a.log.Errorf("Error closing history DB: %v", err)
		return err
	}
	return nil
}
