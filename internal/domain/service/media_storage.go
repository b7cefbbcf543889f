package service

import "context"

// MediaStorage uploads local files to the media bucket and returns their
// public URL. Implementations must remove the local temp file after the
// upload attempt regardless of outcome.
type MediaStorage interface {
	// Upload stores the file at localPath and returns its public URL.
	Upload(ctx context.Context, localPath string) (string, error)
}
