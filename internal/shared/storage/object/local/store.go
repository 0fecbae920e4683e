package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"protected-docs/internal/shared/storage/object"
)

const (
	accessBlockFile  = ".htaccess"
	listingBlockFile = "index.html"
	accessBlockBody  = `# Direct access to protected documents is not allowed.
Options -Indexes
<IfModule mod_authz_core.c>
    Require all denied
</IfModule>
<IfModule !mod_authz_core.c>
    Order deny,allow
    Deny from all
</IfModule>
`
	listingBlockBody = "<!DOCTYPE html><title></title>\n"
)

// Store implements ObjectStore using the local filesystem.
type Store struct {
	baseDir string
	now     func() time.Time
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

// Root returns the directory the store writes into.
func (s *Store) Root() string {
	return s.baseDir
}

// Save writes the reader to disk under a collision-resistant key.
func (s *Store) Save(ctx context.Context, fileName string, r io.Reader) (string, int64, string, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}

	key, err := object.NewKey(fileName, s.now())
	if err != nil {
		return "", 0, "", err
	}

	var sniff [512]byte
	n, readErr := io.ReadFull(r, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return "", 0, "", fmt.Errorf("read sniff: %w", readErr)
	}
	mimeType := http.DetectContentType(sniff[:n])

	body := io.MultiReader(bytes.NewReader(sniff[:n]), r)
	size, err := s.SaveWithKey(ctx, key, mimeType, body)
	if err != nil {
		return "", 0, "", err
	}
	return key, size, mimeType, nil
}

// SaveWithKey writes the reader to disk at a specific storage key.
// The content is staged in a temporary file and renamed into place.
func (s *Store) SaveWithKey(ctx context.Context, storageKey string, _ string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		return 0, fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return written, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", storageKey, object.ErrNotExist)
		}
		return nil, err
	}
	return f, nil
}

// Stat returns metadata for a stored object.
func (s *Store) Stat(ctx context.Context, storageKey string) (object.Info, error) {
	if err := ctx.Err(); err != nil {
		return object.Info{}, err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return object.Info{}, err
	}
	fi, err := os.Stat(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return object.Info{}, fmt.Errorf("stat %s: %w", storageKey, object.ErrNotExist)
		}
		return object.Info{}, err
	}
	if fi.IsDir() {
		return object.Info{}, fmt.Errorf("stat %s: is a directory: %w", storageKey, object.ErrNotExist)
	}
	return object.Info{Key: storageKey, SizeBytes: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Delete removes a stored object.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", storageKey, object.ErrNotExist)
		}
		return err
	}
	return nil
}

// List walks the root and returns every stored object, skipping dotfiles and protection artifacts.
func (s *Store) List(ctx context.Context) ([]object.Info, error) {
	var out []object.Info
	err := filepath.WalkDir(s.baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.baseDir {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != s.baseDir && strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || (name == listingBlockFile && filepath.Dir(p) == filepath.Clean(s.baseDir)) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.baseDir, p)
		if err != nil {
			return err
		}
		out = append(out, object.Info{Key: filepath.ToSlash(rel), SizeBytes: fi.Size(), ModTime: fi.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureProtection creates the root and writes the listing and direct-access blocks if absent.
func (s *Store) EnsureProtection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.baseDir, 0o750); err != nil {
		return fmt.Errorf("create protected root: %w", err)
	}
	artifacts := map[string]string{
		accessBlockFile:  accessBlockBody,
		listingBlockFile: listingBlockBody,
	}
	for name, body := range artifacts {
		p := filepath.Join(s.baseDir, name)
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// Inspect reports whether the root exists and carries both protection artifacts.
func (s *Store) Inspect(ctx context.Context) (object.Status, error) {
	if err := ctx.Err(); err != nil {
		return object.Status{}, err
	}
	var st object.Status

	fi, err := os.Stat(s.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, err
	}
	st.FolderExists = fi.IsDir()
	if !st.FolderExists {
		return st, nil
	}

	access, accessErr := os.ReadFile(filepath.Join(s.baseDir, accessBlockFile))
	_, listingErr := os.Stat(filepath.Join(s.baseDir, listingBlockFile))
	st.ProtectionActive = accessErr == nil && listingErr == nil &&
		(strings.Contains(string(access), "Deny from all") || strings.Contains(string(access), "Require all denied"))
	return st, nil
}

// Status is Inspect plus a write probe in the root.
func (s *Store) Status(ctx context.Context) (object.Status, error) {
	st, err := s.Inspect(ctx)
	if err != nil || !st.FolderExists {
		return st, err
	}
	probe, err := os.CreateTemp(s.baseDir, ".probe-*")
	if err == nil {
		name := probe.Name()
		probe.Close()
		st.Writable = os.Remove(name) == nil
	}
	return st, nil
}

func (s *Store) resolve(storageKey string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storageKey))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key")
	}
	return filepath.Join(s.baseDir, clean), nil
}

var (
	_ object.ObjectStore = (*Store)(nil)
	_ object.Protector   = (*Store)(nil)
)
