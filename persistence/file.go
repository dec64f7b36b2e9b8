// persistence/file.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wfunc/atlas/models"
)

// FileSnapshotStore 每个房间一个 JSON 文件，先写临时文件再 rename
type FileSnapshotStore struct {
	dir string
}

func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) path(roomID string) (string, error) {
	if roomID == "" || strings.ContainsAny(roomID, `/\`) || strings.Contains(roomID, "..") {
		return "", fmt.Errorf("invalid room id %q", roomID)
	}
	return filepath.Join(s.dir, roomID+".json"), nil
}

func (s *FileSnapshotStore) SaveRoom(ctx context.Context, snap models.RoomSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(snap.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, snap.ID+".*.tmp")
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
	return os.Rename(tmp.Name(), path)
}

func (s *FileSnapshotStore) LoadRoom(ctx context.Context, roomID string) (models.RoomSnapshot, error) {
	var snap models.RoomSnapshot
	if err := ctx.Err(); err != nil {
		return snap, err
	}
	path, err := s.path(roomID)
	if err != nil {
		return snap, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, ErrRecordNotFound
	}
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", roomID, err)
	}
	return snap, nil
}

func (s *FileSnapshotStore) Close() error {
	return nil
}
