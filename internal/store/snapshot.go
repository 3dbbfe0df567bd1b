package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/coderoom/internal/metrics"
	"github.com/eldtechnologies/coderoom/internal/models"
)

const snapshotFormatVersion = "3.0"

// UserPair is one snapshot user serialized as a [id, member] pair so the
// file preserves membership order across save/load cycles.
type UserPair struct {
	ID     string
	Member models.Member
}

func (p UserPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Member})
}

func (p *UserPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return fmt.Errorf("user pair id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Member); err != nil {
		return fmt.Errorf("user pair member: %w", err)
	}
	return nil
}

// SnapshotRoom is the durable form of one room.
type SnapshotRoom struct {
	Users        []UserPair           `json:"users"`
	Code         string               `json:"code"`
	Version      int                  `json:"version"`
	LastEditedBy string               `json:"lastEditedBy,omitempty"`
	ChatHistory  []models.ChatMessage `json:"chatHistory"`
	CodeHistory  []models.SaveEntry   `json:"codeHistory"`
	CreatedAt    int64                `json:"createdAt"`
	LastActivity int64                `json:"lastActivity"`
}

// RoomPair is one snapshot room serialized as a [id, room] pair,
// preserving room insertion order.
type RoomPair struct {
	ID   string
	Room SnapshotRoom
}

func (p RoomPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.ID, p.Room})
}

func (p *RoomPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return fmt.Errorf("room pair id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Room); err != nil {
		return fmt.Errorf("room pair body: %w", err)
	}
	return nil
}

// Snapshot is the whole-registry dump written to disk periodically and
// on shutdown, and read back at startup.
type Snapshot struct {
	Timestamp int64      `json:"timestamp"`
	Version   string     `json:"version"`
	Rooms     []RoomPair `json:"rooms"`
}

// NewSnapshot stamps an empty snapshot with the current format version.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Timestamp: time.Now().UnixMilli(),
		Version:   snapshotFormatVersion,
	}
}

// FileStore persists snapshots as a single JSON file under the data dir.
// Saves arrive from separate goroutines (auto-save ticks and the shutdown
// flush); the mutex makes the file a single-writer resource and the
// timestamp check keeps a slow older save from clobbering a newer one.
type FileStore struct {
	path   string
	logger zerolog.Logger

	mu      sync.Mutex
	savedTS int64 // timestamp of the newest snapshot written
}

// NewFileStore ensures the data directory exists.
func NewFileStore(dataDir string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{
		path:   filepath.Join(dataDir, "rooms-snapshot.json"),
		logger: logger.With().Str("component", "snapshot").Logger(),
	}, nil
}

// Path returns the snapshot file location.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes the snapshot atomically (unique temp file then rename).
// Snapshots older than the last one written are dropped.
func (f *FileStore) Save(snap *Snapshot) error {
	start := time.Now()
	defer func() { metrics.SnapshotDuration.Observe(time.Since(start).Seconds()) }()

	f.mu.Lock()
	defer f.mu.Unlock()

	if snap.Timestamp < f.savedTS {
		f.logger.Debug().Int64("timestamp", snap.Timestamp).Msg("stale snapshot dropped")
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "rooms-snapshot-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	f.savedTS = snap.Timestamp

	f.logger.Debug().Int("rooms", len(snap.Rooms)).Int("bytes", len(data)).Msg("snapshot written")
	return nil
}

// Load reads the snapshot, returning (nil, nil) when no file exists.
func (f *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	return &snap, nil
}
