// Package bundle keeps problem testcase bundles available on local disk.
//
// Bundles live in object storage as zstd-compressed tarballs holding the
// inputs/ and outputs/ halves of a testcase dir. Workers extract them lazily
// and share the result through the filesystem; a distributed lock makes sure
// concurrent workers fetch a bundle only once.
package bundle

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"arbiter/internal/common/cache"
	"arbiter/internal/common/storage"
	appErr "arbiter/pkg/errors"
)

const (
	readyFileName = ".ready"
	lockKeyPrefix = "judge:bundle:lock:"
	lockTTL       = 2 * time.Minute
	lockRetry     = 200 * time.Millisecond
)

// Cache downloads and extracts testcase bundles on demand.
type Cache struct {
	rootDir string
	bucket  string
	storage storage.ObjectStorage
	locks   cache.Cache
}

// NewCache creates a bundle cache extracting under rootDir.
func NewCache(rootDir, bucket string, objStorage storage.ObjectStorage, locks cache.Cache) (*Cache, error) {
	if rootDir == "" {
		return nil, appErr.ValidationError("rootDir", "required")
	}
	if objStorage == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("object storage is required")
	}
	if locks == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("lock cache is required")
	}
	return &Cache{rootDir: rootDir, bucket: bucket, storage: objStorage, locks: locks}, nil
}

// Ensure makes the testcase dir for a problem available locally and returns
// its path. The bundle object key is "<problemID>.tar.zst".
func (c *Cache) Ensure(ctx context.Context, problemID string) (string, error) {
	if problemID == "" {
		return "", appErr.ValidationError("problemID", "required")
	}
	dir := filepath.Join(c.rootDir, problemID)
	if c.ready(dir) {
		return dir, nil
	}

	lockKey := lockKeyPrefix + problemID
	for {
		ok, err := c.locks.TryLock(ctx, lockKey, lockTTL)
		if err != nil {
			return "", appErr.Wrapf(err, appErr.LockFailed, "acquire bundle lock failed")
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return "", appErr.Wrap(ctx.Err(), appErr.Timeout)
		case <-time.After(lockRetry):
		}
		// Another worker may have finished the extraction meanwhile.
		if c.ready(dir) {
			return dir, nil
		}
	}
	defer func() {
		_ = c.locks.Unlock(context.WithoutCancel(ctx), lockKey)
	}()

	if c.ready(dir) {
		return dir, nil
	}
	if err := c.fetch(ctx, problemID, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Invalidate drops the local copy, forcing a re-fetch on next use.
func (c *Cache) Invalidate(problemID string) error {
	return os.RemoveAll(filepath.Join(c.rootDir, problemID))
}

func (c *Cache) ready(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, readyFileName))
	return err == nil
}

func (c *Cache) fetch(ctx context.Context, problemID, dir string) error {
	objectKey := problemID + ".tar.zst"
	reader, err := c.storage.GetObject(ctx, c.bucket, objectKey)
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "download testcase bundle failed")
	}
	defer reader.Close()

	// Extract into a temp dir and rename, so a crashed extraction never
	// leaves a half-filled dir that looks usable.
	tmpDir := dir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "clean temp bundle dir failed")
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "create temp bundle dir failed")
	}
	if err := extract(reader, tmpDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, readyFileName), nil, 0644); err != nil {
		_ = os.RemoveAll(tmpDir)
		return appErr.Wrapf(err, appErr.JudgeSystemError, "write bundle marker failed")
	}
	if err := os.RemoveAll(dir); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "replace bundle dir failed")
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "rename bundle dir failed")
	}
	return nil
}

func extract(r io.Reader, destDir string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "open zstd stream failed")
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.JudgeSystemError, "read bundle tar failed")
		}
		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.JudgeSystemError, "create bundle dir failed")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.JudgeSystemError, "create bundle dir failed")
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return appErr.Wrapf(err, appErr.JudgeSystemError, "create bundle file failed")
			}
			if _, err := io.Copy(file, tr); err != nil {
				_ = file.Close()
				return appErr.Wrapf(err, appErr.JudgeSystemError, "write bundle file failed")
			}
			if err := file.Close(); err != nil {
				return appErr.Wrapf(err, appErr.JudgeSystemError, "close bundle file failed")
			}
		default:
			// Symlinks and specials have no business in a testcase bundle.
			return appErr.Newf(appErr.JudgeSystemError, "unexpected tar entry type %d for %s", header.Typeflag, header.Name)
		}
	}
}

func safeJoin(basePath, relPath string) (string, error) {
	clean := filepath.Clean(relPath)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", appErr.New(appErr.InvalidParams).WithMessage("invalid bundle entry path")
	}
	full := filepath.Join(basePath, clean)
	if full != filepath.Clean(basePath) && !strings.HasPrefix(full, filepath.Clean(basePath)+string(filepath.Separator)) {
		return "", appErr.New(appErr.InvalidParams).WithMessage("bundle entry escapes the target dir")
	}
	return full, nil
}
