package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// CalculateFileChecksum returns the hex-encoded SHA256 digest of a file.
func CalculateFileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", errors.Wrap(err, "failed to open file for checksum")
	}
	defer file.Close()

	digest := sha256.New()
	if _, err := io.Copy(digest, file); err != nil {
		return "", errors.Wrap(err, "failed to hash file")
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FormatBytes renders a byte count in a human readable unit, e.g. "1.5 KB".
func FormatBytes(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}

	size := float64(bytes)
	idx := 0
	for size >= 1024 && idx < len(byteUnits)-1 {
		size /= 1024
		idx++
	}

	return fmt.Sprintf("%.1f %s", size, byteUnits[idx])
}

// FormatDuration renders a duration as "45s", "2m30s" or "1h30m".
func FormatDuration(duration time.Duration) string {
	seconds := int(duration.Round(time.Second).Seconds())

	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh%dm", seconds/3600, (seconds/60)%60)
	}
}
