package exchange

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store is the Pebble-backed durable record of ledger balances, orders, the
// order counter, and the event log. All writes happen under the Exchange
// mutex; multi-key mutations (settlement) go through one Batch so they land
// atomically.
type Store struct {
	db *pebble.DB
}

// OpenStore opens a Pebble database at the given path.
func OpenStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(64 << 20),
		MemTableSize:             32 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadBalances scans every balance entry into a fresh map.
func (s *Store) LoadBalances() (map[common.Address]map[common.Address]int64, error) {
	prefix := balancePrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	defer iter.Close()

	balances := make(map[common.Address]map[common.Address]int64)
	for iter.First(); iter.Valid(); iter.Next() {
		tok, owner, err := balanceKeyParse(iter.Key())
		if err != nil {
			continue // skip malformed entries
		}
		if len(iter.Value()) != 8 {
			continue
		}
		amount := int64(binary.BigEndian.Uint64(iter.Value()))
		byOwner, ok := balances[tok]
		if !ok {
			byOwner = make(map[common.Address]int64)
			balances[tok] = byOwner
		}
		byOwner[owner] = amount
	}
	return balances, nil
}

// LoadOrders scans every order, in id order.
func (s *Store) LoadOrders() ([]*Order, error) {
	prefix := orderPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	defer iter.Close()

	var orders []*Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order at %s: %w", iter.Key(), err)
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

// LoadCounter reads a meta counter, returning 0 when absent.
func (s *Store) LoadCounter(key string) (uint64, error) {
	data, closer, err := s.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer closer.Close()
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt counter %s: %d bytes", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// LoadRecentEvents returns up to limit events, newest first.
func (s *Store) LoadRecentEvents(limit int) ([]Event, error) {
	prefix := eventPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	defer iter.Close()

	var events []Event
	for iter.Last(); iter.Valid() && len(events) < limit; iter.Prev() {
		var ev Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			continue // skip invalid entries
		}
		events = append(events, ev)
	}
	return events, nil
}

// Batch collects the writes of one exchange operation and commits them
// atomically with a synced write.
type Batch struct {
	batch *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (b *Batch) SetBalance(tok, owner common.Address, amount int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(amount))
	return b.batch.Set(balanceKey(tok, owner), buf[:], nil)
}

func (b *Batch) SetOrder(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order %d: %w", o.ID, err)
	}
	return b.batch.Set(orderKey(o.ID), data, nil)
}

func (b *Batch) SetCounter(key string, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return b.batch.Set([]byte(key), buf[:], nil)
}

func (b *Batch) AppendEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %d: %w", ev.Seq, err)
	}
	return b.batch.Set(eventKey(ev.Seq), data, nil)
}

// Commit writes the batch durably and releases it. After Commit returns the
// batch is spent either way.
func (b *Batch) Commit() error {
	defer b.batch.Close()
	return b.batch.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.batch.Close()
}
