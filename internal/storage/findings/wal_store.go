// Package findings persists audit findings in a WAL so a failed run can be
// diagnosed after the fact without re-driving the exchange.
package findings

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultDir          = "./wal/findings"
	findingSegmentLimit = 1000
	findingMaxSegments  = 100
	findingKeyPrefix    = "finding_"
)

// Status outcome of a scenario step.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Finding one recorded audit outcome, with enough context to diagnose a
// failure without re-running the scenario.
type Finding struct {
	RunID    uuid.UUID `json:"run_id"`
	Suite    string    `json:"suite"`
	Step     string    `json:"step"`
	Status   Status    `json:"status"`
	Detail   string    `json:"detail,omitempty"`
	Recorded time.Time `json:"recorded"`
}

// FindingRecord bundles a finding with its WAL index.
type FindingRecord struct {
	Index   uint64
	Finding Finding
}

// WALStore appends findings to a write-ahead log.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes the WAL under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "finding_",
		SegmentThreshold: findingSegmentLimit,
		MaxSegments:      findingMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init findings WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the finding.
func (s *WALStore) Save(f Finding) error {
	if s == nil || s.wal == nil {
		return errors.New("findings store is not initialized")
	}
	if f.Suite == "" {
		return errors.New("finding suite is required")
	}
	if f.Recorded.IsZero() {
		f.Recorded = time.Now().UTC()
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "marshal finding")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, findingKeyPrefix+f.Suite, payload)
}

// LastIndex returns the index of the most recent WAL entry. Readers capture
// it before a run and pass it to FindingsAfter to scope the read-back to that
// run alone.
func (s *WALStore) LastIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// FindingsAfter returns all findings written after the provided WAL index.
func (s *WALStore) FindingsAfter(index uint64) ([]FindingRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("findings store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]FindingRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, findingKeyPrefix) {
			continue
		}
		var f Finding
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, errors.Wrap(err, "decode finding")
		}
		records = append(records, FindingRecord{Index: idx, Finding: f})
	}

	return records, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("findings store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
