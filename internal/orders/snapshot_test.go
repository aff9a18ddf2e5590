package orders

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotStore_AppendDedupes(t *testing.T) {
	store := NewSnapshotStore()
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	added := store.Append("orders", []Record{
		{OrderID: "2", Article: "A", OrderedAt: at.Add(time.Hour)},
		{OrderID: "1", Article: "A", OrderedAt: at},
	})
	if added != 2 {
		t.Fatalf("Expected 2 added, got %d", added)
	}

	added = store.Append("orders", []Record{{OrderID: "1", Article: "A", OrderedAt: at}})
	if added != 0 {
		t.Errorf("Expected duplicate to be ignored, got %d added", added)
	}

	recs := store.Records("orders")
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].OrderID != "1" {
		t.Errorf("Expected records sorted by order time, first is %s", recs[0].OrderID)
	}
	if !store.Latest("orders").Equal(at.Add(time.Hour)) {
		t.Errorf("Unexpected latest time %v", store.Latest("orders"))
	}
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "snapshot-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	dev := 25.0

	store := NewSnapshotStore()
	store.Append("orders", []Record{
		{OrderID: "1", Supplier: "Acme", Warehouse: "W", PickupPoint: "PV1", OrderedAt: at, PlannedAt: at.Add(2 * time.Hour), ReportedDeviation: &dev},
		{OrderID: "2", Supplier: "Acme", Warehouse: "W", OrderedAt: at.Add(time.Hour)},
	})

	if err := store.Save(tmpDir, "orders"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "orders.jsonl.tmp")); !os.IsNotExist(err) {
		t.Error("Expected temp file to be renamed away")
	}

	loaded := NewSnapshotStore()
	if err := loaded.Load(tmpDir, "orders"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	recs := loaded.Records("orders")
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].ReportedDeviation == nil || *recs[0].ReportedDeviation != 25 {
		t.Errorf("Expected reported deviation to survive round trip")
	}
	if !recs[0].PlannedAt.Equal(at.Add(2 * time.Hour)) {
		t.Errorf("Expected planned time %v, got %v", at.Add(2*time.Hour), recs[0].PlannedAt)
	}
}

func TestSnapshotStore_SaveAfterClear(t *testing.T) {
	tmpDir := t.TempDir()
	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	store := NewSnapshotStore()
	store.Append("orders", []Record{{OrderID: "1", Supplier: "Acme", Warehouse: "W", OrderedAt: at}})
	if err := store.Save(tmpDir, "orders"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	store.Clear("orders")
	if err := store.Save(tmpDir, "orders"); err != nil {
		t.Fatalf("Save of cleared snapshot failed: %v", err)
	}

	loaded := NewSnapshotStore()
	if err := loaded.Load(tmpDir, "orders"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Count("orders") != 0 {
		t.Errorf("Expected cleared snapshot to stay empty on disk, got %d records", loaded.Count("orders"))
	}
}

func TestSnapshotStore_LoadMissingFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "snapshot-missing")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	store := NewSnapshotStore()
	if err := store.Load(tmpDir, "nothing"); err != nil {
		t.Errorf("Expected no error for missing snapshot, got %v", err)
	}
	if store.Count("nothing") != 0 {
		t.Errorf("Expected empty snapshot")
	}
}

func TestSnapshotStore_SkipsCorruptLines(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "snapshot-corrupt")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	content := `{"orderId":"1","orderedAt":"2024-03-04T09:00:00Z"}
not json
{"orderId":"2","orderedAt":"2024-03-04T10:00:00Z"}
`
	if err := os.WriteFile(filepath.Join(tmpDir, "orders.jsonl"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewSnapshotStore()
	if err := store.Load(tmpDir, "orders"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if store.Count("orders") != 2 {
		t.Errorf("Expected 2 valid records, got %d", store.Count("orders"))
	}
}
