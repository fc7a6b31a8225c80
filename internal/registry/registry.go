// Package registry persists trained forecast models keyed by dataset and
// variable, and answers freshness queries so callers can decide between
// reusing a stored model and retraining.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/terracastio/terracast/internal/compression"
	"github.com/terracastio/terracast/internal/config"
	"github.com/terracastio/terracast/internal/forecast"
	"github.com/terracastio/terracast/internal/logging"
)

const artifactSuffix = ".model.sz"

// ErrNotFound is returned when no model is stored under a key.
var ErrNotFound = errors.New("model not found in registry")

// StaleError reports that a stored model exists but no longer satisfies the
// freshness policy. Callers treat it as a retrain signal, never as a failure.
type StaleError struct {
	Key    string
	Reason string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("stale model for %s: %s", e.Key, e.Reason)
}

// Record is the unit of persistence: the trained model plus the fallback
// attempts that preceded it during training.
type Record struct {
	Model    *forecast.TrainedModel `json:"model"`
	Attempts []forecast.Attempt     `json:"attempts,omitempty"`
	StoredAt time.Time              `json:"stored_at"`
}

// Stats summarises registry contents for diagnostics endpoints.
type Stats struct {
	Entries  int            `json:"entries"`
	ByFamily map[string]int `json:"by_family"`
	Oldest   *time.Time     `json:"oldest_trained_at,omitempty"`
	Newest   *time.Time     `json:"newest_trained_at,omitempty"`
}

// Registry is a file-backed model store with an in-memory index. All records
// live in memory; writes go through a temp file and an atomic rename so a
// crash never leaves a torn artifact.
type Registry struct {
	dir                string
	retrainingInterval time.Duration
	maxGrowthFraction  float64
	compressor         compression.Compressor
	logger             *logging.Logger

	mu      sync.RWMutex
	entries map[string]*Record

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open loads or creates a registry rooted at cfg.Dir, rebuilding the
// in-memory index from the artifacts found on disk. Undecodable artifacts
// are skipped with a warning rather than failing the open. Artifacts are
// encoded with the configured codec; switching codecs orphans existing
// artifacts, which then surface as skip warnings here.
func Open(cfg config.RegistryConfig, logger *logging.Logger) (*Registry, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry dir %s: %w", cfg.Dir, err)
	}

	algo, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, err
	}
	compressor, err := compression.GetCompressor(algo)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		dir:                cfg.Dir,
		retrainingInterval: cfg.RetrainingInterval,
		maxGrowthFraction:  cfg.MaxGrowthFraction,
		compressor:         compressor,
		logger:             logger,
		entries:            make(map[string]*Record),
		locks:              make(map[string]*sync.Mutex),
	}

	names, err := filepath.Glob(filepath.Join(cfg.Dir, "*"+artifactSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to scan registry dir: %w", err)
	}
	for _, name := range names {
		record, err := r.readArtifact(name)
		if err != nil {
			logger.Warn("Skipping unreadable model artifact", "path", name, "error", err)
			continue
		}
		r.entries[record.Model.Key()] = record
	}

	logger.Info("Model registry opened",
		"dir", cfg.Dir, "entries", len(r.entries), "compression", algo.String())
	return r, nil
}

// LockKey acquires the per-key mutex and returns its release func. Holding
// the lock across the check-train-store sequence guarantees at most one
// training runs per key; concurrent callers for the same key wait and then
// observe the stored result.
func (r *Registry) LockKey(key string) func() {
	r.locksMu.Lock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	r.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns the stored record for a key regardless of freshness.
func (r *Registry) Get(key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// GetIfFresh returns the stored record only if it satisfies the freshness
// policy against the current series length: the model must be younger than
// the retraining interval and the series must not have grown past the
// allowed fraction since training. A stale record yields *StaleError.
func (r *Registry) GetIfFresh(key string, currentSamples int) (*Record, error) {
	record, err := r.Get(key)
	if err != nil {
		return nil, err
	}

	age := time.Since(record.Model.TrainedAt)
	if age >= r.retrainingInterval {
		return nil, &StaleError{Key: key, Reason: fmt.Sprintf("age %s exceeds retraining interval %s", age.Round(time.Second), r.retrainingInterval)}
	}

	trained := record.Model.TrainingSamples
	if trained > 0 && currentSamples > trained {
		growth := float64(currentSamples-trained) / float64(trained)
		if growth > r.maxGrowthFraction {
			return nil, &StaleError{Key: key, Reason: fmt.Sprintf("series grew %.0f%% since training, limit %.0f%%", growth*100, r.maxGrowthFraction*100)}
		}
	}

	return record, nil
}

// Put stores a record, replacing any previous model for the key. The artifact
// is written before the index is updated so readers never see a record that
// is not on disk.
func (r *Registry) Put(record *Record) error {
	if record == nil || record.Model == nil {
		return fmt.Errorf("cannot store empty record")
	}
	if record.StoredAt.IsZero() {
		record.StoredAt = time.Now().UTC()
	}

	key := record.Model.Key()
	if err := r.writeArtifact(key, record); err != nil {
		return err
	}

	r.mu.Lock()
	r.entries[key] = record
	r.mu.Unlock()

	r.logger.Debug("Model stored",
		"key", key,
		"family", string(record.Model.Family),
		"samples", record.Model.TrainingSamples)
	return nil
}

// Delete removes a record and its artifact. Deleting a missing key returns
// ErrNotFound.
func (r *Registry) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return ErrNotFound
	}
	if err := os.Remove(r.artifactPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove model artifact: %w", err)
	}
	delete(r.entries, key)
	return nil
}

// List returns all stored records sorted by key.
func (r *Registry) List() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*Record, 0, len(r.entries))
	for _, record := range r.entries {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Model.Key() < records[j].Model.Key()
	})
	return records
}

// Stats reports entry counts and training time bounds.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Entries:  len(r.entries),
		ByFamily: make(map[string]int),
	}
	for _, record := range r.entries {
		stats.ByFamily[string(record.Model.Family)]++
		trainedAt := record.Model.TrainedAt
		if stats.Oldest == nil || trainedAt.Before(*stats.Oldest) {
			t := trainedAt
			stats.Oldest = &t
		}
		if stats.Newest == nil || trainedAt.After(*stats.Newest) {
			t := trainedAt
			stats.Newest = &t
		}
	}
	return stats
}

// CleanupOlderThan deletes every record whose model was trained earlier than
// the cutoff and returns how many were removed.
func (r *Registry) CleanupOlderThan(age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, record := range r.entries {
		if record.Model.TrainedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(r.artifactPath(key)); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove model artifact for %s: %w", key, err)
		}
		delete(r.entries, key)
		removed++
	}

	if removed > 0 {
		r.logger.Info("Registry cleanup removed aged models", "removed", removed, "older_than", age.String())
	}
	return removed, nil
}

func (r *Registry) artifactPath(key string) string {
	// Keys are "dataset/variable"; flatten the separator for the filename.
	name := strings.ReplaceAll(key, "/", "__") + artifactSuffix
	return filepath.Join(r.dir, name)
}

func (r *Registry) writeArtifact(key string, record *Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode model record: %w", err)
	}
	compressed, err := r.compressor.Compress(raw)
	if err != nil {
		return fmt.Errorf("failed to compress model record: %w", err)
	}

	path := r.artifactPath(key)
	tmp, err := os.CreateTemp(r.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close model artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish model artifact: %w", err)
	}
	return nil
}

func (r *Registry) readArtifact(path string) (*Record, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode model record: %w", err)
	}
	if record.Model == nil {
		return nil, fmt.Errorf("artifact %s has no model", filepath.Base(path))
	}
	return &record, nil
}
