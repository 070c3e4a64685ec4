package database

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sugarcypher/sweetguard/internal/models"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCacheEntryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	captured := time.Date(2024, 3, 1, 12, 30, 0, 123, time.UTC)
	entry := &models.CacheEntry{
		Barcode: "049000006346",
		Result: models.Result{
			Success: true,
			Source:  "Open Food Facts API",
			Record: &models.FoodRecord{
				ProductName:      "Coca-Cola Classic",
				Brand:            "Coca-Cola",
				Ingredients:      []string{"Carbonated Water", "Sugar"},
				NutritionFacts:   &models.NutritionFacts{SugarsGrams: models.Value(39)},
				ServingSizeGrams: 355,
			},
			TrustScore: 0.95,
		},
		CapturedAt: captured,
	}
	if err := db.SaveCacheEntry(ctx, entry); err != nil {
		t.Fatalf("SaveCacheEntry: %v", err)
	}

	got, err := db.GetCacheEntry(ctx, "049000006346")
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if got == nil {
		t.Fatalf("GetCacheEntry: entry missing")
	}
	if !got.CapturedAt.Equal(captured) {
		t.Fatalf("CapturedAt: want=%v got=%v", captured, got.CapturedAt)
	}
	if !reflect.DeepEqual(got.Result, entry.Result) {
		t.Fatalf("Result: want=%+v got=%+v", entry.Result, got.Result)
	}
}

func TestGetCacheEntryMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetCacheEntry(context.Background(), "000")
	if err != nil || got != nil {
		t.Fatalf("GetCacheEntry: want nil,nil got=%v,%v", got, err)
	}
}

func TestCacheBarcodesAndClear(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, b := range []string{"30000000", "10000000", "20000000"} {
		if err := db.SaveCacheEntry(ctx, &models.CacheEntry{Barcode: b, CapturedAt: time.Now()}); err != nil {
			t.Fatalf("SaveCacheEntry(%s): %v", b, err)
		}
	}
	if err := db.DeleteCacheEntry(ctx, "20000000"); err != nil {
		t.Fatalf("DeleteCacheEntry: %v", err)
	}

	keys, err := db.CacheBarcodes(ctx)
	if err != nil {
		t.Fatalf("CacheBarcodes: %v", err)
	}
	want := []string{"10000000", "30000000"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("CacheBarcodes: want=%v got=%v", want, keys)
	}

	if err := db.ClearCacheEntries(ctx); err != nil {
		t.Fatalf("ClearCacheEntries: %v", err)
	}
	if keys, _ := db.CacheBarcodes(ctx); len(keys) != 0 {
		t.Fatalf("CacheBarcodes after clear: got=%v", keys)
	}
}

func TestScanHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	older := &models.ScanRecord{ID: "a", Status: models.ScanPending, CreatedAt: time.Now().Add(-time.Minute)}
	newer := &models.ScanRecord{ID: "b", Barcode: "12345678", Status: models.ScanPending}
	for _, s := range []*models.ScanRecord{older, newer} {
		if err := db.SaveScan(ctx, s); err != nil {
			t.Fatalf("SaveScan(%s): %v", s.ID, err)
		}
	}
	if err := db.UpdateScanStatus(ctx, "b", models.ScanResolved, "Mock Database", ""); err != nil {
		t.Fatalf("UpdateScanStatus: %v", err)
	}

	scans, err := db.GetRecentScans(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecentScans: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("GetRecentScans: want=2 got=%d", len(scans))
	}
	if scans[0].ID != "b" || scans[0].Status != models.ScanResolved || scans[0].Source != "Mock Database" {
		t.Fatalf("newest scan: got=%+v", scans[0])
	}
	if scans[1].ID != "a" {
		t.Fatalf("oldest scan: got=%+v", scans[1])
	}
}
