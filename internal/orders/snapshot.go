package orders

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SnapshotStore keeps fetched order records in memory and mirrors them to a JSONL file.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]Record // Partitioned by snapshot name
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[string][]Record),
	}
}

// Append merges records into a snapshot, dropping duplicates and keeping time order.
func (s *SnapshotStore) Append(name string, records []Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snapshots[name]

	existing := make(map[string]bool, len(current))
	for _, r := range current {
		existing[r.identity()] = true
	}

	added := 0
	for _, r := range records {
		id := r.identity()
		if existing[id] {
			continue
		}
		existing[id] = true
		current = append(current, r)
		added++
	}

	if added == 0 {
		return 0
	}

	SortByOrderTime(current)
	s.snapshots[name] = current
	return added
}

// Records returns a copy of the snapshot.
func (s *SnapshotStore) Records(name string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.snapshots[name]
	out := make([]Record, len(data))
	copy(out, data)
	return out
}

// Count returns the number of records in a snapshot.
func (s *SnapshotStore) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots[name])
}

// Latest returns the most recent order time in the snapshot.
func (s *SnapshotStore) Latest(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, r := range s.snapshots[name] {
		if r.OrderedAt.After(latest) {
			latest = r.OrderedAt
		}
	}
	return latest
}

// Clear drops a snapshot from memory.
func (s *SnapshotStore) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, name)
}

// Load reads a JSONL snapshot file. A missing file is not an error.
func (s *SnapshotStore) Load(cacheDir, name string) error {
	path := snapshotPath(cacheDir, name)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			log.Warn().Err(err).Str("snapshot", name).Msg("Skipping invalid JSON line in snapshot")
			continue
		}
		records = append(records, r)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading snapshot: %w", err)
	}

	log.Info().Str("snapshot", name).Int("count", len(records)).Msg("Loaded orders from snapshot")
	s.Append(name, records)
	return nil
}

// Save writes the snapshot to disk via a temp file and an atomic rename.
// An empty snapshot truncates the file so a cleared cache stays cleared.
func (s *SnapshotStore) Save(cacheDir, name string) error {
	s.mu.RLock()
	data := s.snapshots[name]
	s.mu.RUnlock()

	path := snapshotPath(cacheDir, name)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, r := range data {
		if err := encoder.Encode(r); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	log.Info().Str("snapshot", name).Int("count", len(data)).Msg("Order snapshot saved")
	return nil
}

// ModTime returns when the snapshot file was last written.
func ModTime(cacheDir, name string) (time.Time, error) {
	info, err := os.Stat(snapshotPath(cacheDir, name))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func snapshotPath(cacheDir, name string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", name))
}
