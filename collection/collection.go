// Package collection implements named record collections persisted as one
// JSON array per collection in a blob store.
package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevemurr/eden-shim/store"
)

// KeyPrefix prefixes every blob key the shim writes.
const KeyPrefix = "eden_mock_"

// namespacePrefix holds every collection without a legacy key, so no
// collection name can reach the session blob or another collection's blob.
const namespacePrefix = KeyPrefix + "col_"

// Collections that predate the namespaced key scheme.
var legacyKeys = map[string]string{
	"profiles":     KeyPrefix + "profiles",
	"certificates": KeyPrefix + "certs",
}

// StorageKey returns the blob key a collection is persisted under. Distinct
// names always map to distinct keys.
func StorageKey(name string) string {
	if key, ok := legacyKeys[name]; ok {
		return key
	}
	return namespacePrefix + name
}

// Store reads and mutates collections held in a blob store. All operations
// on the same collection are serialized.
type Store struct {
	blobs   store.Store
	latency time.Duration
	log     *zap.Logger
	newID   func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLatency delays every operation by d before it starts.
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithIDGenerator replaces the uuid generator used for records without an id.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func New(blobs store.Store, opts ...Option) *Store {
	s := &Store{
		blobs: blobs,
		log:   zap.NewNop(),
		newID: uuid.NewString,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock takes the mutex guarding the collection's blob. Locks are keyed by
// storage key so that anything sharing a blob shares the lock.
func (s *Store) lock(name string) func() {
	key := StorageKey(name)
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// begin waits out the configured latency and then takes the collection lock.
// Cancellation is only honoured before the operation starts.
func (s *Store) begin(ctx context.Context, name string) (func(), error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lock(name), nil
}

func (s *Store) load(name string) ([]Record, error) {
	raw, err := s.blobs.Get(context.Background(), StorageKey(name))
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	if len(raw) == 0 {
		return []Record{}, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		s.log.Error("collection blob is corrupt", zap.String("collection", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %q: %v", ErrCorrupt, name, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// save persists the whole collection. It runs with a background context so
// that an operation which has started always completes.
func (s *Store) save(name string, records []Record) error {
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrPersist, name, err)
	}
	if err := s.blobs.Set(context.Background(), StorageKey(name), b); err != nil {
		s.log.Error("persist collection", zap.String("collection", name), zap.Error(err))
		return fmt.Errorf("%w: %q: %v", ErrPersist, name, err)
	}
	return nil
}

// Read returns every record of the collection matching all filters. With no
// filters the whole collection is returned.
//
// Reading "profiles" filtered by id with no match yields ErrNotFound together
// with an empty slice, mirroring the real backend's single-row semantics.
func (s *Store) Read(ctx context.Context, name string, filters []Filter) ([]Record, error) {
	filters, err := normalizeFilters(filters)
	if err != nil {
		return nil, err
	}
	unlock, err := s.begin(ctx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	records, err := s.load(name)
	if err != nil {
		return nil, err
	}
	result := make([]Record, 0, len(records))
	for _, r := range records {
		if matches(r, filters) {
			result = append(result, r)
		}
	}
	if name == "profiles" && len(result) == 0 && filtersOn(filters, "id") {
		return result, ErrNotFound
	}
	return result, nil
}

func filtersOn(filters []Filter, field string) bool {
	for _, f := range filters {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Insert appends records, assigning a fresh id to any record without one.
// Caller-supplied ids are trusted and not checked for collisions.
func (s *Store) Insert(ctx context.Context, name string, records []Record) ([]Record, error) {
	incoming, err := normalizeAll(records)
	if err != nil {
		return nil, err
	}
	unlock, err := s.begin(ctx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stored, err := s.load(name)
	if err != nil {
		return nil, err
	}
	for _, r := range incoming {
		if !r.hasID() {
			r["id"] = s.newID()
		}
	}
	if err := s.save(name, append(stored, incoming...)); err != nil {
		return nil, err
	}
	return copyAll(incoming), nil
}

// Update shallow-merges patch into every record matching all filters.
// Matching nothing is not an error; the count is simply zero and nothing is
// written.
func (s *Store) Update(ctx context.Context, name string, filters []Filter, patch Record) (PatchResult, error) {
	filters, err := normalizeFilters(filters)
	if err != nil {
		return PatchResult{}, err
	}
	patch, err = normalizeRecord(patch)
	if err != nil {
		return PatchResult{}, err
	}
	unlock, err := s.begin(ctx, name)
	if err != nil {
		return PatchResult{}, err
	}
	defer unlock()

	stored, err := s.load(name)
	if err != nil {
		return PatchResult{}, err
	}
	count := 0
	for i, r := range stored {
		if matches(r, filters) {
			stored[i] = merge(r, patch)
			count++
		}
	}
	if count > 0 {
		if err := s.save(name, stored); err != nil {
			return PatchResult{}, err
		}
	}
	return PatchResult{Data: patch, Count: count}, nil
}

// Upsert merges each record into the stored record with the same id, or
// appends it (with a fresh id if it has none). The collection is persisted
// once for the whole batch. The result holds the stored form of every input,
// in input order.
func (s *Store) Upsert(ctx context.Context, name string, records []Record) ([]Record, error) {
	incoming, err := normalizeAll(records)
	if err != nil {
		return nil, err
	}
	unlock, err := s.begin(ctx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stored, err := s.load(name)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(stored))
	for i, r := range stored {
		if id := r.ID(); id != "" {
			if _, dup := index[id]; !dup {
				index[id] = i
			}
		}
	}

	result := make([]Record, 0, len(incoming))
	for _, r := range incoming {
		if i, ok := existing(stored, index, r); ok {
			stored[i] = merge(stored[i], r)
			result = append(result, stored[i])
			continue
		}
		if !r.hasID() {
			r["id"] = s.newID()
		}
		stored = append(stored, r)
		if id := r.ID(); id != "" {
			index[id] = len(stored) - 1
		}
		result = append(result, r)
	}
	if err := s.save(name, stored); err != nil {
		return nil, err
	}
	return copyAll(result), nil
}

// existing finds the stored record sharing r's id. String ids go through the
// index; other id types fall back to a scan.
func existing(stored []Record, index map[string]int, r Record) (int, bool) {
	if !r.hasID() {
		return 0, false
	}
	if id := r.ID(); id != "" {
		i, ok := index[id]
		return i, ok
	}
	for i, s := range stored {
		if v, ok := s["id"]; ok && cmp.Equal(v, r["id"]) {
			return i, true
		}
	}
	return 0, false
}

// Names returns the collections that currently have a persisted blob.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	keys, err := s.blobs.Keys(ctx)
	if err != nil {
		return nil, err
	}
	reverse := make(map[string]string, len(legacyKeys))
	for name, key := range legacyKeys {
		reverse[key] = name
	}
	var names []string
	for _, key := range keys {
		if name, ok := reverse[key]; ok {
			names = append(names, name)
			continue
		}
		if name, ok := strings.CutPrefix(key, namespacePrefix); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func normalizeAll(records []Record) ([]Record, error) {
	out := make([]Record, len(records))
	for i, r := range records {
		n, err := normalizeRecord(r)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func copyAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = copyRecord(r)
	}
	return out
}
