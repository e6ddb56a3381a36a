// Package history keeps a capped, expiring log of past voice runs so the UI
// can show what the assistant recently did.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deca/lifetrack-voice/pkg/types"
)

// Record is one completed voice run.
type Record struct {
	ID         string    `json:"id"`
	Transcript string    `json:"transcript"`
	Intents    []string  `json:"intents"`
	Summary    string    `json:"summary"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	CreatedAt  time.Time `json:"created_at"`
}

// Manager stores run records in memory and mirrors them to JSON files.
type Manager struct {
	mu          sync.RWMutex
	records     []Record
	storagePath string
	maxRecords  int
	expiry      time.Duration
}

// NewManager creates a history manager backed by storagePath. The directory
// is created if needed; existing records are loaded back in.
func NewManager(storagePath string, maxRecords int, expiry time.Duration) *Manager {
	m := &Manager{
		storagePath: storagePath,
		maxRecords:  maxRecords,
		expiry:      expiry,
	}
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		fmt.Printf("Warning: failed to create history directory: %v\n", err)
	}
	m.loadFromStorage()
	return m
}

// Append records one completed run.
func (m *Manager) Append(transcript string, intents []string, summary types.Summary) Record {
	record := Record{
		ID:         uuid.New().String(),
		Transcript: transcript,
		Intents:    intents,
		Summary:    summary.Message,
		Succeeded:  len(summary.Succeeded),
		Failed:     len(summary.Failed),
		CreatedAt:  time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, record)
	m.trim()

	if err := m.saveToStorage(record); err != nil {
		fmt.Printf("Warning: failed to persist run record: %v\n", err)
	}
	return record
}

// Recent returns up to limit records, newest first.
func (m *Manager) Recent(limit int) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.records[i])
	}
	return out
}

// CleanupExpired drops records older than the expiry window and returns the
// number removed.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.expiry)
	kept := m.records[:0]
	removed := 0
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			removed++
			path := filepath.Join(m.storagePath, r.ID+".json")
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				fmt.Printf("Warning: failed to remove expired record %s: %v\n", path, err)
			}
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed
}

// Clear drops every record, in memory and on disk.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = nil
	files, err := filepath.Glob(filepath.Join(m.storagePath, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list record files: %w", err)
	}
	for _, file := range files {
		if err := os.Remove(file); err != nil {
			fmt.Printf("Warning: failed to remove record file %s: %v\n", file, err)
		}
	}
	return nil
}

func (m *Manager) trim() {
	if m.maxRecords > 0 && len(m.records) > m.maxRecords {
		for _, r := range m.records[:len(m.records)-m.maxRecords] {
			path := filepath.Join(m.storagePath, r.ID+".json")
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				fmt.Printf("Warning: failed to remove trimmed record %s: %v\n", path, err)
			}
		}
		m.records = m.records[len(m.records)-m.maxRecords:]
	}
}

func (m *Manager) saveToStorage(record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	path := filepath.Join(m.storagePath, record.ID+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}
	return nil
}

func (m *Manager) loadFromStorage() {
	files, err := filepath.Glob(filepath.Join(m.storagePath, "*.json"))
	if err != nil {
		return
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			fmt.Printf("Warning: skipping unreadable record %s: %v\n", file, err)
			continue
		}
		m.records = append(m.records, record)
	}

	sort.Slice(m.records, func(i, j int) bool {
		return m.records[i].CreatedAt.Before(m.records[j].CreatedAt)
	})
	m.trim()
}
