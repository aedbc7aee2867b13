package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryTransactionStore keeps transactions for the life of the process.
// Each record carries its own mutex so phase transitions on one id never
// block work on another.
type MemoryTransactionStore struct {
	records *xsync.MapOf[string, *transactionRecord]
	NewID   func() string
	Now     func() time.Time
}

type transactionRecord struct {
	mu      sync.Mutex
	tx      Transaction
	evicted bool
}

func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{
		records: xsync.NewMapOf[string, *transactionRecord](),
		NewID:   uuid.NewString,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *MemoryTransactionStore) Create(_ context.Context, payload Payload) (string, error) {
	if s == nil || s.records == nil {
		return "", fmt.Errorf("core: transaction store is not configured")
	}
	now := s.now()
	var operation Operation
	if payload != nil {
		operation = payload.Operation()
	}

	for {
		id := s.newID()
		record := &transactionRecord{tx: Transaction{
			ID:        id,
			Operation: operation,
			Payload:   payload,
			Status:    TransactionStatusPending,
			CreatedAt: now,
		}}
		record.tx.appendLog(now, PhaseCreate, fmt.Sprintf("transaction created for %s", displayOperation(operation)))
		if _, loaded := s.records.LoadOrStore(id, record); !loaded {
			return id, nil
		}
	}
}

func (s *MemoryTransactionStore) Get(_ context.Context, id string) (Transaction, error) {
	record, err := s.lookup(id)
	if err != nil {
		return Transaction{}, err
	}
	record.mu.Lock()
	defer record.mu.Unlock()
	if record.evicted {
		return Transaction{}, notFound(id)
	}
	return record.tx.clone(), nil
}

// Update runs mutate against a copy of the record while holding the record
// lock. The copy replaces the stored record only when mutate returns nil.
func (s *MemoryTransactionStore) Update(_ context.Context, id string, mutate func(*Transaction) error) error {
	if mutate == nil {
		return fmt.Errorf("core: transaction mutator is required")
	}
	record, err := s.lookup(id)
	if err != nil {
		return err
	}
	record.mu.Lock()
	defer record.mu.Unlock()
	if record.evicted {
		return notFound(id)
	}

	working := record.tx.clone()
	if err := mutate(&working); err != nil {
		return err
	}
	working.ID = record.tx.ID
	working.Operation = record.tx.Operation
	working.Payload = record.tx.Payload
	working.CreatedAt = record.tx.CreatedAt
	record.tx = working
	return nil
}

// EvictTerminal drops terminal transactions whose last activity is before
// olderThan. Pending and prepared transactions are never evicted.
func (s *MemoryTransactionStore) EvictTerminal(_ context.Context, olderThan time.Time) (int, error) {
	if s == nil || s.records == nil {
		return 0, fmt.Errorf("core: transaction store is not configured")
	}
	evicted := 0
	s.records.Range(func(id string, record *transactionRecord) bool {
		record.mu.Lock()
		if !record.evicted && record.tx.Status.Terminal() && record.tx.lastActivity().Before(olderThan) {
			record.evicted = true
			s.records.Delete(id)
			evicted++
		}
		record.mu.Unlock()
		return true
	})
	return evicted, nil
}

func (s *MemoryTransactionStore) Len() int {
	if s == nil || s.records == nil {
		return 0
	}
	return s.records.Size()
}

func (s *MemoryTransactionStore) lookup(id string) (*transactionRecord, error) {
	if s == nil || s.records == nil {
		return nil, fmt.Errorf("core: transaction store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, notFound(id)
	}
	record, ok := s.records.Load(id)
	if !ok {
		return nil, notFound(id)
	}
	return record, nil
}

func (s *MemoryTransactionStore) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *MemoryTransactionStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func notFound(id string) error {
	return fmt.Errorf("%w: %q", ErrTransactionNotFound, id)
}

func displayOperation(operation Operation) string {
	if operation == "" {
		return "unknown operation"
	}
	return string(operation)
}
