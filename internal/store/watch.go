package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watch reports writes to a period made by any process. Bursts of file
// events are coalesced into one Change after debounce. The channel is closed
// when ctx ends.
func (s *FileStore) Watch(ctx context.Context, k Key, debounce time.Duration) (<-chan Change, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	dir := s.Dir(k)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	out := make(chan Change, 1)
	go func() {
		defer close(out)
		defer w.Close()

		timer := time.NewTimer(debounce)
		if !timer.Stop() {
			<-timer.C
		}
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !relevant(ev) {
					continue
				}
				timer.Reset(debounce)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("watch error", zap.String("dir", dir), zap.Error(err))
			case <-timer.C:
				select {
				case out <- Change{Tenant: k.Tenant, Period: k.Period}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
