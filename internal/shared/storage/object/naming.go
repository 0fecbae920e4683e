package object

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"protected-docs/internal/shared/util"
)

// NewKey builds a collision-resistant key from the upload time, a random component and the sanitized name.
func NewKey(fileName string, now time.Time) (string, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	return fmt.Sprintf("%d_%s_%s", now.UnixNano(), randomID(), sanitized), nil
}

// BaseName strips the time and random components added by NewKey.
// Keys not produced by NewKey are returned unchanged.
func BaseName(key string) string {
	parts := strings.SplitN(path.Base(key), "_", 3)
	if len(parts) != 3 || !isDigits(parts[0]) || len(parts[1]) != 16 {
		return path.Base(key)
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return path.Base(key)
	}
	return parts[2]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func randomID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
