package token

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"acytel/logger"

	"github.com/fsnotify/fsnotify"
)

// KeyFile loads the stream signing secret from a file and reloads it when
// the file changes, so keys can rotate without a restart.
type KeyFile struct {
	path    string
	watcher *fsnotify.Watcher

	mu     sync.RWMutex
	secret []byte
}

// WatchKeyFile reads the secret from path and starts watching for changes.
func WatchKeyFile(path string) (*KeyFile, error) {
	secret, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create key file watcher: %w", err)
	}

	// Watch the directory: editors and secret managers typically replace
	// the file via rename, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch key file directory: %w", err)
	}

	kf := &KeyFile{
		path:    path,
		watcher: watcher,
		secret:  bytes.TrimSpace(secret),
	}
	go kf.watch()
	return kf, nil
}

// Secret returns the current signing key. Implements KeySource.
func (kf *KeyFile) Secret() []byte {
	kf.mu.RLock()
	defer kf.mu.RUnlock()
	return kf.secret
}

// Close stops the watcher.
func (kf *KeyFile) Close() error {
	return kf.watcher.Close()
}

func (kf *KeyFile) watch() {
	for {
		select {
		case event, ok := <-kf.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(kf.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			kf.reload()
		case err, ok := <-kf.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("key file watcher error", logger.ErrorField(err))
		}
	}
}

func (kf *KeyFile) reload() {
	secret, err := os.ReadFile(kf.path)
	if err != nil {
		logger.Error("failed to reload signing key, keeping previous key",
			logger.String("path", kf.path),
			logger.ErrorField(err))
		return
	}

	kf.mu.Lock()
	kf.secret = bytes.TrimSpace(secret)
	kf.mu.Unlock()

	logger.Info("stream signing key reloaded", logger.String("path", kf.path))
}
