// Package backup implements port.ProfileBackupStore over object storage and
// the Postgres snapshot table.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"stmtrules/internal/domain"
	"stmtrules/internal/port"
)

// ObjectStore writes profile backups as JSON objects under a key prefix.
type ObjectStore struct {
	storage port.ObjectStorage
	bucket  string
	prefix  string
}

// NewObjectStore creates an ObjectStore.
func NewObjectStore(storage port.ObjectStorage, bucket, prefix string) *ObjectStore {
	return &ObjectStore{
		storage: storage,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
	}
}

// Key returns the object key for a snapshot. Keys sort chronologically.
func (s *ObjectStore) Key(snap *domain.ConfigSnapshot) string {
	name := fmt.Sprintf("%s-%s-%s.json", snap.Kind, snap.CreatedAt.UTC().Format("20060102T150405.000Z"), snap.ID)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *ObjectStore) Store(ctx context.Context, snap *domain.ConfigSnapshot) (string, error) {
	key := s.Key(snap)
	out, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.bucket,
		Key:         key,
		Body:        bytes.NewReader(snap.Payload),
		ContentType: "application/json",
		Size:        int64(len(snap.Payload)),
	})
	if err != nil {
		return "", fmt.Errorf("uploading profile backup: %w", err)
	}
	if out.Location != "" {
		return out.Location, nil
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Prune deletes all but the newest keep profile backups under the prefix.
func (s *ObjectStore) Prune(ctx context.Context, keep int) (int, error) {
	listPrefix := string(domain.SnapshotProfiles) + "-"
	if s.prefix != "" {
		listPrefix = s.prefix + "/" + listPrefix
	}
	objects, err := s.storage.List(ctx, s.bucket, listPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing profile backups: %w", err)
	}
	if keep < 0 {
		keep = 0
	}
	if len(objects) <= keep {
		return 0, nil
	}

	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].LastModified.After(objects[j].LastModified)
		}
		return objects[i].Key > objects[j].Key
	})

	removed := 0
	for _, obj := range objects[keep:] {
		if err := s.storage.Delete(ctx, s.bucket, obj.Key); err != nil {
			return removed, fmt.Errorf("deleting profile backup %s: %w", obj.Key, err)
		}
		removed++
	}
	return removed, nil
}
