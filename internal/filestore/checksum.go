package filestore

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"

	"protected-docs/internal/shared/storage/object"
)

const checksumPrefix = "blake3:"

func newHasher() hash.Hash {
	return blake3.New()
}

func formatChecksum(h hash.Hash) string {
	return checksumPrefix + hex.EncodeToString(h.Sum(nil))
}

// checksumOf streams a stored object through the hasher.
func checksumOf(ctx context.Context, store object.ObjectStore, key string) (string, int64, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	h := newHasher()
	n, err := io.Copy(h, rc)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", key, err)
	}
	return formatChecksum(h), n, nil
}
