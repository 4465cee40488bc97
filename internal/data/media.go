package data

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

// mediaStore keeps inbound media as files under {root}/{account}/
type mediaStore struct {
	root string
}

// NewMediaStore creates a media store rooted at dir
func NewMediaStore(dir string) repo.MediaRepo {
	return &mediaStore{root: dir}
}

// SniffImage returns the extension and MIME type of image data by its
// magic bytes. Unrecognized data is assumed to be PNG.
func SniffImage(data []byte) (ext, mime string) {
	if len(data) >= 2 {
		switch {
		case data[0] == 0xFF && data[1] == 0xD8:
			return "jpg", "image/jpeg"
		case data[0] == 0x89 && data[1] == 0x50:
			return "png", "image/png"
		case data[0] == 0x47 && data[1] == 0x49:
			return "gif", "image/gif"
		case data[0] == 0x52 && data[1] == 0x49:
			return "webp", "image/webp"
		}
	}
	return "png", "image/png"
}

// Save writes data to a new file and returns its handle
func (s *mediaStore) Save(ctx context.Context, accountID string, data []byte) (domain.MediaRef, error) {
	if err := ctx.Err(); err != nil {
		return domain.MediaRef{}, err
	}
	dir := filepath.Join(s.root, safeSegment(accountID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return domain.MediaRef{}, fmt.Errorf("failed to create media dir: %w", err)
	}

	ext, mime := SniffImage(data)
	path := filepath.Join(dir, uuid.NewString()+"."+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return domain.MediaRef{}, fmt.Errorf("failed to write media: %w", err)
	}
	return domain.MediaRef{Path: path, MIMEType: mime, Size: int64(len(data))}, nil
}

// Sweep deletes files last modified before olderThan
func (s *mediaStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(olderThan) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// safeSegment keeps account ids from escaping the media root
func safeSegment(s string) string {
	s = filepath.Base(filepath.Clean("/" + s))
	if s == "/" || s == "." || s == "" {
		return "default"
	}
	return s
}
