// Package backup exports and restores the local replica as a single archive.
//
// An archive is a zip with a manifest plus one JSON file per entity
// collection. The sync queue is included by default so a restored replica
// picks up exactly where the backed-up one left off.
package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"encoding/json/v2"

	"github.com/linkstashapp/linkstash-sync/internal/domain"
	"github.com/linkstashapp/linkstash-sync/internal/store"
)

// FormatVersion is the archive format version.
const FormatVersion = "1.0"

const archiveSuffix = ".linkstash.zip"

// Manifest describes archive contents and provenance.
type Manifest struct {
	Version    string       `json:"version"`
	CreatedAt  time.Time    `json:"created_at"`
	InstanceID string       `json:"instance_id,omitempty"`
	Counts     EntityCounts `json:"counts"`

	IncludesQueue bool `json:"includes_queue"`
}

// EntityCounts tracks collection sizes for validation.
type EntityCounts struct {
	Links      int `json:"links"`
	Tags       int `json:"tags"`
	LinkTags   int `json:"link_tags"`
	QueueItems int `json:"queue_items,omitempty"`
}

// Options configures archive creation.
type Options struct {
	OutputPath   string // Where to write the archive; generated when empty
	IncludeQueue bool   // Include pending sync queue items
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{IncludeQueue: true}
}

// Result contains the outcome of an export.
type Result struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   EntityCounts  `json:"counts"`
	Duration time.Duration `json:"duration"`
}

// Info describes an existing archive on disk.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service creates, lists, and restores replica archives.
type Service struct {
	store     *store.Store
	backupDir string
	logger    *slog.Logger
}

// New creates a backup service.
func New(s *store.Store, backupDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     s,
		backupDir: backupDir,
		logger:    logger,
	}
}

// Create exports the replica to an archive.
func (s *Service) Create(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		timestamp := time.Now().Format("2006-01-02-150405")
		outputPath = filepath.Join(s.backupDir, "backup-"+timestamp+archiveSuffix)
	}

	snapshot, err := s.snapshot(ctx, opts.IncludeQueue)
	if err != nil {
		return nil, err
	}

	manifest := Manifest{
		Version:       FormatVersion,
		CreatedAt:     time.Now(),
		Counts:        snapshot.counts(),
		IncludesQueue: opts.IncludeQueue,
	}
	if instance, err := s.store.GetInstance(ctx); err == nil {
		manifest.InstanceID = instance.ID
	}

	if err := writeArchive(outputPath, manifest, snapshot); err != nil {
		return nil, err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	s.logger.Info("backup created",
		"path", outputPath,
		"links", manifest.Counts.Links,
		"tags", manifest.Counts.Tags,
		"size", info.Size(),
	)

	return &Result{
		Path:     outputPath,
		Size:     info.Size(),
		Counts:   manifest.Counts,
		Duration: time.Since(start),
	}, nil
}

// List returns existing archives, newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.backupDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), archiveSuffix) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos, nil
}

// replicaSnapshot holds the collections being exported or imported.
type replicaSnapshot struct {
	Links    []*domain.Link
	Tags     []*domain.Tag
	LinkTags []*domain.LinkTag
	Queue    []*domain.SyncQueueItem
}

func (r *replicaSnapshot) counts() EntityCounts {
	return EntityCounts{
		Links:      len(r.Links),
		Tags:       len(r.Tags),
		LinkTags:   len(r.LinkTags),
		QueueItems: len(r.Queue),
	}
}

func (s *Service) snapshot(ctx context.Context, includeQueue bool) (*replicaSnapshot, error) {
	snap := &replicaSnapshot{}

	for link, err := range s.store.Links.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("export links: %w", err)
		}
		snap.Links = append(snap.Links, link)
	}
	for tag, err := range s.store.Tags.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("export tags: %w", err)
		}
		snap.Tags = append(snap.Tags, tag)
	}
	for lt, err := range s.store.LinkTags.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("export link-tags: %w", err)
		}
		snap.LinkTags = append(snap.LinkTags, lt)
	}

	if includeQueue {
		items, err := s.store.ListSyncQueue(ctx)
		if err != nil {
			return nil, fmt.Errorf("export queue: %w", err)
		}
		snap.Queue = items
	}
	return snap, nil
}

func writeArchive(path string, manifest Manifest, snap *replicaSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	files := []struct {
		name string
		data any
	}{
		{"manifest.json", manifest},
		{"links.json", snap.Links},
		{"tags.json", snap.Tags},
		{"linktags.json", snap.LinkTags},
	}
	if manifest.IncludesQueue {
		files = append(files, struct {
			name string
			data any
		}{"queue.json", snap.Queue})
	}

	for _, file := range files {
		w, err := zw.Create(file.name)
		if err != nil {
			return fmt.Errorf("add %s: %w", file.name, err)
		}
		data, err := json.Marshal(file.data)
		if err != nil {
			return fmt.Errorf("encode %s: %w", file.name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", file.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}
