// Package archive stores finished guestbook messages as audio files with
// JSON metadata sidecars.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound reports that no archived message exists for an id.
var ErrNotFound = errors.New("message not found")

// audioExtensions are tried in order when a sidecar does not name a
// usable audio path.
var audioExtensions = []string{".wav", ".mp3", ".ogg", ".flac"}

// Storage persists archived messages. FileStorage is the only production
// implementation; the interface exists for the archiver's tests.
type Storage interface {
	// Save moves the audio file into the archive and writes its metadata
	// sidecar, returning the new message id.
	Save(audioPath string, metadata map[string]any) (string, error)

	// Get returns the audio path and metadata for a message id, or
	// ErrNotFound.
	Get(id string) (string, map[string]any, error)

	// List returns metadata for every readable message, newest first.
	List() ([]map[string]any, error)
}

// FileStorage keeps every message in a single directory. The message id is
// the audio filename stem; the sidecar is <id>.json next to it.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the archive directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

func (s *FileStorage) Save(audioPath string, metadata map[string]any) (string, error) {
	filename, _ := metadata["filename"].(string)
	if filename == "" {
		return "", fmt.Errorf("metadata must contain a filename")
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %s", audioPath)
	}

	id := strings.TrimSuffix(filename, filepath.Ext(filename))
	destAudio := filepath.Join(s.dir, filename)
	destMeta := filepath.Join(s.dir, id+".json")

	if err := moveFile(audioPath, destAudio); err != nil {
		return "", fmt.Errorf("failed to store audio file: %w", err)
	}

	meta := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["message_id"] = id
	meta["audio_file_path"] = destAudio
	meta["metadata_file_path"] = destMeta

	data, err := json.MarshalIndent(meta, "", "  ")
	if err == nil {
		err = os.WriteFile(destMeta, data, 0644)
	}
	if err != nil {
		os.Remove(destAudio)
		os.Remove(destMeta)
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	slog.Debug("Message stored", "message_id", id, "audio", destAudio)
	return id, nil
}

func (s *FileStorage) Get(id string) (string, map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("failed to read metadata for %s: %w", id, err)
	}

	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
	}

	audioPath := s.resolveAudio(id, meta)
	if audioPath == "" {
		return "", nil, ErrNotFound
	}
	return audioPath, meta, nil
}

func (s *FileStorage) List() ([]map[string]any, error) {
	sidecars, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	messages := make([]map[string]any, 0, len(sidecars))
	for _, sidecar := range sidecars {
		data, err := os.ReadFile(sidecar)
		if err != nil {
			slog.Warn("Skipping unreadable metadata", "file", sidecar, "error", err)
			continue
		}
		var meta map[string]any
		if err := json.Unmarshal(data, &meta); err != nil {
			slog.Warn("Skipping corrupt metadata", "file", sidecar, "error", err)
			continue
		}
		id, _ := meta["message_id"].(string)
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(sidecar), ".json")
			meta["message_id"] = id
		}
		if s.resolveAudio(id, meta) == "" {
			slog.Warn("Skipping message with missing audio", "message_id", id)
			continue
		}
		messages = append(messages, meta)
	}

	// Newest first. Timestamps are RFC 3339, so the string order is the
	// time order; messages without one sort last.
	sort.SliceStable(messages, func(i, j int) bool {
		ti, _ := messages[i]["timestamp"].(string)
		tj, _ := messages[j]["timestamp"].(string)
		return ti > tj
	})
	return messages, nil
}

// resolveAudio finds the audio file for a message, preferring the recorded
// path and falling back to an extension scan next to the sidecar.
func (s *FileStorage) resolveAudio(id string, meta map[string]any) string {
	if p, ok := meta["audio_file_path"].(string); ok && p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, ext := range audioExtensions {
		p := filepath.Join(s.dir, id+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// moveFile renames src to dst, copying across filesystems when rename is
// not possible.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

// Archiver names finished recordings and stores them with enriched
// metadata.
type Archiver struct {
	storage Storage
}

func NewArchiver(storage Storage) *Archiver {
	return &Archiver{storage: storage}
}

// UniqueFilename builds a collision-resistant archive filename from the
// current time down to microseconds.
func (a *Archiver) UniqueFilename(extension string) string {
	now := time.Now()
	return fmt.Sprintf("message_%s_%06d.%s",
		now.Format("20060102_150405"),
		now.Nanosecond()/1000,
		strings.TrimPrefix(extension, "."))
}

// Archive stores a finished recording and returns its message id. extra
// metadata is merged over the generated fields.
func (a *Archiver) Archive(audioPath, format string, extra map[string]any) (string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", fmt.Errorf("audio file not found: %s", audioPath)
	}
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(audioPath), ".")
	}

	meta := map[string]any{
		"filename":     a.UniqueFilename(format),
		"timestamp":    time.Now().Format(time.RFC3339),
		"audio_format": format,
		"size_bytes":   info.Size(),
	}
	for k, v := range extra {
		meta[k] = v
	}

	id, err := a.storage.Save(audioPath, meta)
	if err != nil {
		return "", fmt.Errorf("failed to archive message: %w", err)
	}
	return id, nil
}

// Retrieve returns the audio path and metadata for a message id.
func (a *Archiver) Retrieve(id string) (string, map[string]any, error) {
	return a.storage.Get(id)
}

// ListAll returns every archived message, newest first.
func (a *Archiver) ListAll() ([]map[string]any, error) {
	return a.storage.List()
}
