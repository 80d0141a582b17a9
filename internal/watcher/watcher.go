// Package watcher summarizes files dropped into a folder.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Kind int

const (
	KindUnsupported Kind = iota
	KindTranscript
	KindMedia
)

func (k Kind) String() string {
	switch k {
	case KindTranscript:
		return "transcript"
	case KindMedia:
		return "media"
	default:
		return "unsupported"
	}
}

var (
	transcriptExts = []string{".txt", ".md"}
	mediaExts      = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg", ".mp4", ".mov", ".mkv", ".webm"}
)

// Classify picks the driver for path by extension. Hidden files and this
// program's own journal and report outputs are unsupported.
func Classify(path string) Kind {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "-journal.md") || strings.HasSuffix(base, "-report.md") {
		return KindUnsupported
	}

	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range transcriptExts {
		if ext == e {
			return KindTranscript
		}
	}
	for _, e := range mediaExts {
		if ext == e {
			return KindMedia
		}
	}
	return KindUnsupported
}

type Handler func(ctx context.Context, path string, kind Kind) error

type Watcher struct {
	dir       string
	handler   Handler
	watcher   *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup

	// settle is how long a new file is left alone before it is read, so
	// copies can finish.
	settle time.Duration
}

func New(dir string, handler Handler, maxConcurrent int) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &Watcher{
		dir:       dir,
		handler:   handler,
		watcher:   fw,
		semaphore: make(chan struct{}, maxConcurrent),
		settle:    500 * time.Millisecond,
	}, nil
}

// Run dispatches new files to the handler until ctx is done, then waits
// for in-flight handlers.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("watching folder", "dir", w.dir, "max_concurrent", cap(w.semaphore))

	for {
		select {
		case <-ctx.Done():
			slog.Info("waiting for in-flight files")
			w.wg.Wait()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}

			kind := Classify(event.Name)
			if kind == KindUnsupported {
				slog.Debug("ignoring file", "path", event.Name)
				continue
			}
			slog.Info("new file detected", "path", event.Name, "kind", kind)

			select {
			case w.semaphore <- struct{}{}:
			case <-ctx.Done():
				w.wg.Wait()
				return ctx.Err()
			}

			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				defer func() { <-w.semaphore }()

				select {
				case <-time.After(w.settle):
				case <-ctx.Done():
					return
				}
				if err := w.handler(ctx, path, kind); err != nil {
					slog.Error("failed to process file", "path", path, "error", err)
				}
			}(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
