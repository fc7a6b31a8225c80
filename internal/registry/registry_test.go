package registry

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/terracastio/terracast/internal/config"
	"github.com/terracastio/terracast/internal/forecast"
	"github.com/terracastio/terracast/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, zerolog.ErrorLevel)
}

func testConfig(dir string) config.RegistryConfig {
	return config.RegistryConfig{
		Dir:                dir,
		RetrainingInterval: 168 * time.Hour,
		MaxGrowthFraction:  0.20,
	}
}

func sampleModel(trainedAt time.Time, samples int) *forecast.TrainedModel {
	return &forecast.TrainedModel{
		DatasetID:       "sentinel-2a",
		VariableName:    "soil_moisture",
		Family:          forecast.FamilyAutoregressive,
		TrainedAt:       trainedAt,
		TrainingSamples: samples,
		ValidationScore: 0.82,
		Interval:        24 * time.Hour,
		LastObserved:    trainedAt,
		AR: &forecast.ARParams{
			P: 1, D: 0, Q: 1,
			Phi:             []float64{0.63721},
			Theta:           []float64{0.21009},
			Mean:            14.25,
			RecentDiff:      []float64{0.5},
			RecentResiduals: []float64{-0.125},
			LastValue:       14.75,
			AIC:             103.4,
		},
	}
}

func TestPutThenReopenRoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := Open(testConfig(dir), testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	model := sampleModel(time.Now().UTC(), 100)
	record := &Record{
		Model:    model,
		Attempts: []forecast.Attempt{{Family: forecast.FamilyRecurrent, Reason: "insufficient samples: need 30, got 20"}},
	}
	if err := r.Put(record); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A fresh open must rebuild the index from disk.
	reopened, err := Open(testConfig(dir), testLogger())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	got, err := reopened.Get(model.Key())
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}

	if got.Model.Family != forecast.FamilyAutoregressive {
		t.Errorf("family changed across persistence: %s", got.Model.Family)
	}
	if got.Model.AR == nil {
		t.Fatal("AR parameters lost across persistence")
	}
	if got.Model.AR.Phi[0] != model.AR.Phi[0] {
		t.Errorf("phi changed across persistence: got %v, want %v", got.Model.AR.Phi[0], model.AR.Phi[0])
	}
	if got.Model.AR.Theta[0] != model.AR.Theta[0] {
		t.Errorf("theta changed across persistence: got %v, want %v", got.Model.AR.Theta[0], model.AR.Theta[0])
	}
	if len(got.Attempts) != 1 || got.Attempts[0].Family != forecast.FamilyRecurrent {
		t.Errorf("attempts lost across persistence: %+v", got.Attempts)
	}
}

func TestUncompressedArtifactsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Compression = "none"

	r, err := Open(cfg, testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	model := sampleModel(time.Now().UTC(), 100)
	if err := r.Put(&Record{Model: model}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Plain artifacts are directly decodable JSON on disk.
	raw, err := os.ReadFile(filepath.Join(dir, "sentinel-2a__soil_moisture.model.sz"))
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	var stored Record
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("uncompressed artifact is not plain JSON: %v", err)
	}

	reopened, err := Open(cfg, testLogger())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if _, err := reopened.Get(model.Key()); err != nil {
		t.Errorf("Get after reopen failed: %v", err)
	}
}

func TestOpenRejectsUnknownCodec(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Compression = "lz4"

	if _, err := Open(cfg, testLogger()); err == nil {
		t.Fatal("expected Open to fail for unknown codec")
	}
}

func TestGetMissingKey(t *testing.T) {
	r, err := Open(testConfig(t.TempDir()), testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := r.Get("nope/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.GetIfFresh("nope/missing", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from GetIfFresh, got %v", err)
	}
}

func TestFreshnessPolicy(t *testing.T) {
	r, err := Open(testConfig(t.TempDir()), testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	model := sampleModel(time.Now().UTC(), 100)
	if err := r.Put(&Record{Model: model}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	key := model.Key()

	// 15% growth stays within the 20% limit.
	if _, err := r.GetIfFresh(key, 115); err != nil {
		t.Errorf("15%% growth should be fresh, got %v", err)
	}

	// 25% growth exceeds the limit.
	var stale *StaleError
	if _, err := r.GetIfFresh(key, 125); !errors.As(err, &stale) {
		t.Errorf("25%% growth should be stale, got %v", err)
	}

	// Shrinking series never triggers the growth rule.
	if _, err := r.GetIfFresh(key, 80); err != nil {
		t.Errorf("shrunk series should be fresh, got %v", err)
	}

	// Age past the retraining interval is stale regardless of growth.
	old := sampleModel(time.Now().UTC().Add(-200*time.Hour), 100)
	old.VariableName = "ndvi"
	if err := r.Put(&Record{Model: old}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := r.GetIfFresh(old.Key(), 100); !errors.As(err, &stale) {
		t.Errorf("aged model should be stale, got %v", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	r, err := Open(testConfig(t.TempDir()), testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	a := sampleModel(time.Now().UTC(), 50)
	b := sampleModel(time.Now().UTC(), 60)
	b.DatasetID = "landsat-9"
	if err := r.Put(&Record{Model: a}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := r.Put(&Record{Model: b}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	records := r.List()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Sorted by key, landsat-9 before sentinel-2a.
	if records[0].Model.DatasetID != "landsat-9" {
		t.Errorf("expected sorted listing, got %s first", records[0].Model.DatasetID)
	}

	if err := r.Delete(a.Key()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := r.Delete(a.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should report ErrNotFound, got %v", err)
	}
	if len(r.List()) != 1 {
		t.Errorf("expected 1 record after delete, got %d", len(r.List()))
	}
}

func TestStats(t *testing.T) {
	r, err := Open(testConfig(t.TempDir()), testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	early := sampleModel(time.Now().UTC().Add(-time.Hour), 50)
	late := sampleModel(time.Now().UTC(), 60)
	late.VariableName = "ndvi"
	late.Family = forecast.FamilySeasonal
	if err := r.Put(&Record{Model: early}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := r.Put(&Record{Model: late}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stats := r.Stats()
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.ByFamily["autoregressive"] != 1 || stats.ByFamily["seasonal_additive"] != 1 {
		t.Errorf("unexpected family counts: %v", stats.ByFamily)
	}
	if stats.Oldest == nil || stats.Newest == nil || !stats.Oldest.Before(*stats.Newest) {
		t.Errorf("trained-at bounds wrong: oldest=%v newest=%v", stats.Oldest, stats.Newest)
	}
}

func TestCleanupOlderThan(t *testing.T) {
	r, err := Open(testConfig(t.TempDir()), testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	aged := sampleModel(time.Now().UTC().Add(-72*time.Hour), 50)
	fresh := sampleModel(time.Now().UTC(), 60)
	fresh.VariableName = "ndvi"
	if err := r.Put(&Record{Model: aged}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := r.Put(&Record{Model: fresh}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	removed, err := r.CleanupOlderThan(48 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupOlderThan failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, err := r.Get(aged.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("aged record should be gone, got %v", err)
	}
	if _, err := r.Get(fresh.Key()); err != nil {
		t.Errorf("fresh record should survive cleanup, got %v", err)
	}
}

func TestLockKeySerializesSameKey(t *testing.T) {
	r, err := Open(testConfig(t.TempDir()), testLogger())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	const workers = 8
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			unlock := r.LockKey("sentinel-2a/soil_moisture")
			defer unlock()
			// Non-atomic increment; the lock must make it safe.
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("expected counter %d, got %d", workers, counter)
	}
}
