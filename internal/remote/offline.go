package remote

import (
	"context"
	"errors"
)

// ErrOffline marks operations that need a configured remote store.
var ErrOffline = errors.New("remote store not configured")

// Offline is the Store for unconfigured deployments. Reads see an empty
// store so local-only use keeps working; writes and deletes fail with
// ErrOffline, which keeps pending entries queued until a remote is set up.
type Offline struct{}

var _ Store = Offline{}

func (Offline) Read(ctx context.Context, path string) (*File, error) {
	return nil, nil
}

func (Offline) Write(ctx context.Context, path, content string, token *string, message string) (string, error) {
	return "", ErrOffline
}

func (Offline) Delete(ctx context.Context, path, token, message string) error {
	return ErrOffline
}

func (Offline) List(ctx context.Context, dir string) ([]DirEntry, error) {
	return nil, ErrOffline
}
