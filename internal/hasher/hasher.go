package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"

	"mediasort/internal/services"
)

// DefaultBufferSize is the read-buffer size used when none is configured.
const DefaultBufferSize = 64 * 1024

// Hasher computes streaming SHA-256 digests with a bounded read buffer, so
// memory stays O(buffer) regardless of file size.
type Hasher struct {
	bufferSize int
}

func New(bufferSize int) *Hasher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hasher{bufferSize: bufferSize}
}

// Sum returns the hex digest of the file's bytes. A file that disappears or
// becomes unreadable mid-hash surfaces as an ErrIO-tagged error; callers
// report it rather than retrying.
func (h *Hasher) Sum(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		// A file can legitimately vanish between scan and hash.
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "hashing", "open file", path, err)
		}
		return "", services.Wrap(services.ErrIO, "hashing", "open file", path, err)
	}
	defer file.Close()

	digest := sha256.New()
	buf := make([]byte, h.bufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := file.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", services.Wrap(services.ErrIO, "hashing", "read file", path, readErr)
		}
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
