package backup

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"encoding/json/v2"

	"github.com/linkstashapp/linkstash-sync/internal/store"
)

// MergeStrategy determines conflict resolution when a restored entity
// already exists locally.
type MergeStrategy string

const (
	// MergeKeepLocal keeps the local version on conflict.
	MergeKeepLocal MergeStrategy = "keep_local"

	// MergeKeepBackup uses the archive version on conflict.
	MergeKeepBackup MergeStrategy = "keep_backup"

	// MergeNewest uses whichever has the newer LastModified.
	MergeNewest MergeStrategy = "newest"
)

// Valid reports whether the merge strategy is recognized.
func (s MergeStrategy) Valid() bool {
	switch s {
	case MergeKeepLocal, MergeKeepBackup, MergeNewest:
		return true
	default:
		return false
	}
}

// RestoreOptions configures restoration.
type RestoreOptions struct {
	Strategy     MergeStrategy
	RestoreQueue bool // Re-enqueue archived sync queue items
	DryRun       bool // Validate and count without writing
}

// DefaultRestoreOptions returns sensible defaults.
func DefaultRestoreOptions() RestoreOptions {
	return RestoreOptions{Strategy: MergeNewest, RestoreQueue: true}
}

// RestoreResult contains the outcome of a restore.
type RestoreResult struct {
	Imported map[string]int `json:"imported"`
	Skipped  map[string]int `json:"skipped"`
	Duration time.Duration  `json:"duration"`
}

// Restore merges an archive into the local replica.
func (s *Service) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()

	if !opts.Strategy.Valid() {
		return nil, fmt.Errorf("unknown merge strategy %q", opts.Strategy)
	}

	manifest, snap, err := readArchive(path)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting restore",
		"path", path,
		"strategy", string(opts.Strategy),
		"dry_run", opts.DryRun,
		"links", manifest.Counts.Links,
		"tags", manifest.Counts.Tags,
	)

	result := &RestoreResult{
		Imported: make(map[string]int),
		Skipped:  make(map[string]int),
	}

	// Tags before links before associations, so index lookups during the
	// import never dangle.
	for _, tag := range snap.Tags {
		s.restoreOne(ctx, opts, result, "tags", tag.ID, tag.LastModified,
			func() (time.Time, error) {
				existing, err := s.store.GetTag(ctx, tag.ID)
				if err != nil {
					return time.Time{}, err
				}
				return existing.LastModified, nil
			},
			func(exists bool) error {
				if exists {
					return s.store.UpdateTag(ctx, tag)
				}
				return s.store.CreateTag(ctx, tag)
			})
	}
	for _, link := range snap.Links {
		s.restoreOne(ctx, opts, result, "links", link.ID, link.LastModified,
			func() (time.Time, error) {
				existing, err := s.store.GetLink(ctx, link.ID)
				if err != nil {
					return time.Time{}, err
				}
				return existing.LastModified, nil
			},
			func(exists bool) error {
				if exists {
					return s.store.UpdateLink(ctx, link)
				}
				return s.store.CreateLink(ctx, link)
			})
	}
	for _, lt := range snap.LinkTags {
		s.restoreOne(ctx, opts, result, "link_tags", lt.ID, lt.LastModified,
			func() (time.Time, error) {
				existing, err := s.store.GetLinkTag(ctx, lt.LinkID, lt.TagID)
				if err != nil {
					return time.Time{}, err
				}
				return existing.LastModified, nil
			},
			func(exists bool) error {
				if exists {
					return s.store.UpdateLinkTag(ctx, lt)
				}
				return s.store.CreateLinkTag(ctx, lt)
			})
	}

	if opts.RestoreQueue {
		for _, item := range snap.Queue {
			if opts.DryRun {
				result.Imported["queue_items"]++
				continue
			}
			if err := s.store.EnqueueSyncItem(ctx, item); err != nil {
				s.logger.Warn("failed to restore queue item", "item_id", item.ID, "error", err)
				result.Skipped["queue_items"]++
				continue
			}
			result.Imported["queue_items"]++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info("restore complete",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)
	return result, nil
}

// restoreOne applies the merge strategy to a single entity.
func (s *Service) restoreOne(
	ctx context.Context,
	opts RestoreOptions,
	result *RestoreResult,
	kind, id string,
	archived time.Time,
	localModified func() (time.Time, error),
	write func(exists bool) error,
) {
	local, err := localModified()
	exists := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("restore lookup failed", "kind", kind, "id", id, "error", err)
		result.Skipped[kind]++
		return
	}

	if exists {
		switch opts.Strategy {
		case MergeKeepLocal:
			result.Skipped[kind]++
			return
		case MergeNewest:
			if !archived.After(local) {
				result.Skipped[kind]++
				return
			}
		case MergeKeepBackup:
			// Always overwrite.
		}
	}

	if opts.DryRun {
		result.Imported[kind]++
		return
	}
	if err := write(exists); err != nil {
		s.logger.Warn("restore write failed", "kind", kind, "id", id, "error", err)
		result.Skipped[kind]++
		return
	}
	result.Imported[kind]++
}

// Validate checks an archive without importing it.
func (s *Service) Validate(path string) (*Manifest, error) {
	manifest, snap, err := readArchive(path)
	if err != nil {
		return nil, err
	}

	actual := snap.counts()
	if actual.Links != manifest.Counts.Links ||
		actual.Tags != manifest.Counts.Tags ||
		actual.LinkTags != manifest.Counts.LinkTags {
		return manifest, fmt.Errorf("%w: manifest counts do not match contents", ErrCorruptedArchive)
	}
	return manifest, nil
}

func readArchive(path string) (*Manifest, *replicaSnapshot, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var manifest *Manifest
	snap := &replicaSnapshot{}

	for _, file := range zr.File {
		switch file.Name {
		case "manifest.json":
			manifest = &Manifest{}
			if err := readArchiveFile(file, manifest); err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
			}
		case "links.json":
			err = readArchiveFile(file, &snap.Links)
		case "tags.json":
			err = readArchiveFile(file, &snap.Tags)
		case "linktags.json":
			err = readArchiveFile(file, &snap.LinkTags)
		case "queue.json":
			err = readArchiveFile(file, &snap.Queue)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", file.Name, err)
		}
	}

	if manifest == nil {
		return nil, nil, ErrInvalidManifest
	}
	if major, _, _ := strings.Cut(manifest.Version, "."); major != "1" {
		return nil, nil, fmt.Errorf("%w: %s", ErrVersionMismatch, manifest.Version)
	}
	return manifest, snap, nil
}

func readArchiveFile(file *zip.File, dest any) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return json.UnmarshalRead(rc, dest)
}
