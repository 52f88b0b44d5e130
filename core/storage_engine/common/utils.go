package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/time/rate"
)

// chunkSize: size of each read/write chunk
const chunkSize = 256 * 1024

var bufPool = sync.Pool{
	New: func() interface{} { return make([]byte, chunkSize) },
}

// CopyResult describes a finished copy.
type CopyResult struct {
	Bytes  int64
	SHA256 string
}

// CopyThrottled copies the first length bytes of srcPath into a new file at
// dstPath, never faster than bytesPerSec (0 means unthrottled). dstPath must
// not exist. The copy is synced before returning; on error it is removed.
func CopyThrottled(ctx context.Context, srcPath, dstPath string, length, bytesPerSec int64) (res CopyResult, err error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return res, fmt.Errorf("open src: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return res, fmt.Errorf("open dst: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close dst: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(dstPath)
		}
	}()

	var limiter *rate.Limiter
	if bytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), chunkSize)
	}

	buf := bufPool.Get().([]byte)
	defer bufPool.Put(buf)
	sum := sha256.New()

	var off int64
	for off < length {
		want := int64(chunkSize)
		if rem := length - off; rem < want {
			want = rem
		}
		n, rerr := src.ReadAt(buf[:want], off)
		if n > 0 {
			if limiter != nil {
				if werr := limiter.WaitN(ctx, n); werr != nil {
					return res, fmt.Errorf("rate limiter: %w", werr)
				}
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return res, fmt.Errorf("write error: %w", werr)
			}
			sum.Write(buf[:n])
			off += int64(n)
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && off == length {
				break
			}
			if errors.Is(rerr, io.EOF) {
				return res, fmt.Errorf("source ended at %d of %d bytes", off, length)
			}
			return res, fmt.Errorf("read error: %w", rerr)
		}
	}

	if err := dst.Sync(); err != nil {
		return res, fmt.Errorf("sync error: %w", err)
	}
	return CopyResult{Bytes: off, SHA256: hex.EncodeToString(sum.Sum(nil))}, nil
}
