package badger

import (
	"context"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// Transactions:
// The first time a document transaction touches the store, a read-write
// badger transaction is opened and bound to it. Reads and writes made under
// the same document transaction go through that badger transaction (so they
// see their own uncommitted writes), and the document transaction's commit
// and abort hooks commit or discard it. A badger conflict at commit time
// therefore aborts the document transaction and undoes its file operations.
//
// A nil transaction uses short-lived View/Update transactions.
//
// Thread Safety:
// Safe for concurrent use across transactions. A bound badger transaction is
// only used by the goroutine driving its document transaction.
type BadgerMetadataStore struct {
	db *badger.DB

	mu    sync.Mutex
	bound map[string]*badger.Txn
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files
	DBPath string

	// InMemory keeps the database entirely in memory (tests, ephemeral runs)
	InMemory bool

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, defaults suited to small metadata values are used.
	BadgerOptions *badger.Options
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB metadata store.
//
// Parameters:
//   - ctx: Context for cancellation before the database is opened
//   - config: Database location and options
//
// Returns:
//   - *BadgerMetadataStore: Store ready for use
//   - error: Error if the database cannot be opened
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	switch {
	case config.BadgerOptions != nil:
		opts = *config.BadgerOptions
	case config.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	default:
		if config.DBPath == "" {
			return nil, fmt.Errorf("badger metadata store: path is required")
		}
		opts = badger.DefaultOptions(config.DBPath)
		opts = opts.WithCompression(options.None)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	logger.Debug("badger metadata store opened (path=%q in_memory=%v)", config.DBPath, config.InMemory)

	return &BadgerMetadataStore{
		db:    db,
		bound: make(map[string]*badger.Txn),
	}, nil
}

// bind returns the badger transaction bound to tx, opening one on first use.
func (s *BadgerMetadataStore) bind(tx *txn.Tx) *badger.Txn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bt, ok := s.bound[tx.ID()]; ok {
		return bt
	}

	bt := s.db.NewTransaction(true)
	s.bound[tx.ID()] = bt

	id := tx.ID()
	tx.OnCommit(func(context.Context) error {
		s.release(id)
		if err := bt.Commit(); err != nil {
			return fmt.Errorf("badger commit: %w", err)
		}
		return nil
	})
	tx.OnAbort(func(context.Context) {
		s.release(id)
		bt.Discard()
	})
	return bt
}

func (s *BadgerMetadataStore) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bound, id)
}

// view runs fn against the transaction bound to tx, or a read-only snapshot
// when tx is nil or already finished.
func (s *BadgerMetadataStore) view(tx *txn.Tx, fn func(*badger.Txn) error) error {
	if tx == nil || tx.State() != txn.StateActive {
		return s.db.View(fn)
	}
	return fn(s.bind(tx))
}

// update runs fn against the transaction bound to tx, or a short-lived
// read-write transaction when tx is nil.
func (s *BadgerMetadataStore) update(tx *txn.Tx, fn func(*badger.Txn) error) error {
	if tx == nil {
		return s.db.Update(fn)
	}
	if tx.State() != txn.StateActive {
		return fmt.Errorf("badger metadata store: write on %s transaction %s", tx.State(), tx.ID())
	}
	return fn(s.bind(tx))
}

// Healthcheck verifies the database answers a read.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger metadata store is closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Close discards any still-bound transactions and closes the database.
func (s *BadgerMetadataStore) Close() error {
	s.mu.Lock()
	for id, bt := range s.bound {
		logger.Warn("badger metadata store: discarding unfinished transaction %s on close", id)
		bt.Discard()
		delete(s.bound, id)
	}
	s.mu.Unlock()

	return s.db.Close()
}

var _ metadata.Store = (*BadgerMetadataStore)(nil)
