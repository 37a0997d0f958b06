package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"buddy/internal/application"
)

// FileSource replays WAV files dropped into a directory. Each file is
// renamed with a .processed suffix once it has been queued.
type FileSource struct {
	dir    string
	feeder *clipFeeder
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFileSource(dir string, format application.AudioFormat, logger *slog.Logger) *FileSource {
	return &FileSource{
		dir:    dir,
		feeder: newClipFeeder(format, 4),
		logger: logger.With("component", "audio.file"),
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Start(ctx context.Context, sink application.FrameSink) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return nil
	}

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating audio dir: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.feeder.run(ctx, sink)
	}()
	go func() {
		defer f.wg.Done()
		f.watch(ctx)
	}()

	f.logger.Info("watching for audio files", "dir", f.dir)
	return nil
}

func (f *FileSource) Stop() error {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		f.wg.Wait()
	}
	return nil
}

func (f *FileSource) watch(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.scan(); err != nil {
				f.logger.Error("scanning audio dir", "error", err)
			}
		}
	}
}

func (f *FileSource) scan() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("reading dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".wav" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(f.dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file %s: %w", path, err)
		}

		samples, err := decodeClip(data, f.feeder.format.SampleRate)
		if err != nil {
			f.logger.Warn("skipping audio file", "path", path, "error", err)
		} else if !f.feeder.enqueue(samples) {
			// Backlog full; leave the file for the next scan.
			return nil
		} else {
			f.logger.Info("queued audio file", "path", path, "samples", len(samples))
		}

		if err := os.Rename(path, path+".processed"); err != nil {
			return fmt.Errorf("marking %s processed: %w", path, err)
		}
	}

	return nil
}
