package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/churryboy/sheet-llm-chatbot/source"
)

// FileRepository is a Repository backed by two JSON documents: one for
// custom source descriptors, one for title overrides. All mutations
// hold a process-wide mutex and replace the file via temp-file rename,
// so concurrent edits cannot interleave into a lost update.
type FileRepository struct {
	sourcesPath string
	titlesPath  string
	logger      *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// sourcesDocument is the on-disk shape of the custom sources file.
type sourcesDocument struct {
	Sources []source.Descriptor `json:"sources"`
}

// NewFileRepository creates a file-backed repository. Parent
// directories are created as needed; missing files read as empty.
func NewFileRepository(sourcesPath, titlesPath string, logger *slog.Logger) (*FileRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, p := range []string{sourcesPath, titlesPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}
	return &FileRepository{
		sourcesPath: sourcesPath,
		titlesPath:  titlesPath,
		logger:      logger,
	}, nil
}

// Watch starts logging external edits to the registry files so that
// operators editing the JSON by hand can see the reload happen. Reads
// always go to disk, so no cache invalidation is needed; the watcher is
// purely observational. Call Close to stop it.
func (f *FileRepository) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create registry watcher: %w", err)
	}

	// Watch the directories: editors replace files by rename, which
	// drops per-file watches.
	dirs := map[string]bool{}
	for _, p := range []string{f.sourcesPath, f.titlesPath} {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch registry directory %s: %w", dir, err)
		}
	}

	f.watcher = watcher
	f.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == f.sourcesPath || event.Name == f.titlesPath {
					if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename) {
						f.logger.Info("Registry file changed on disk",
							slog.String("path", event.Name),
							slog.String("op", event.Op.String()))
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("Registry watcher error", slog.String("error", err.Error()))
			case <-f.done:
				return
			}
		}
	}()

	return nil
}

// Close stops the watcher if one is running.
func (f *FileRepository) Close() error {
	if f.watcher == nil {
		return nil
	}
	close(f.done)
	return f.watcher.Close()
}

// List implements Repository.
func (f *FileRepository) List(_ context.Context) ([]source.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readSources()
	if err != nil {
		return nil, err
	}
	return doc.Sources, nil
}

// Add implements Repository.
func (f *FileRepository) Add(_ context.Context, desc source.Descriptor) error {
	if desc.GID == "" && desc.DocumentID == "" {
		return fmt.Errorf("descriptor requires a gid or document_id")
	}
	if desc.DisplayName == "" {
		return fmt.Errorf("descriptor requires a display_name")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readSources()
	if err != nil {
		return err
	}
	for _, existing := range doc.Sources {
		if existing.GID != "" && existing.GID == desc.GID {
			return fmt.Errorf("%w: gid %s", ErrDuplicate, desc.GID)
		}
	}
	doc.Sources = append(doc.Sources, desc)
	return f.writeJSON(f.sourcesPath, doc)
}

// Update implements Repository.
func (f *FileRepository) Update(_ context.Context, gid, displayName string) error {
	if displayName == "" {
		return fmt.Errorf("display_name is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readSources()
	if err != nil {
		return err
	}
	for i := range doc.Sources {
		if doc.Sources[i].GID == gid {
			doc.Sources[i].DisplayName = displayName
			return f.writeJSON(f.sourcesPath, doc)
		}
	}
	return fmt.Errorf("%w: gid %s", ErrNotFound, gid)
}

// Titles implements Repository.
func (f *FileRepository) Titles(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	titles := map[string]string{}
	data, err := os.ReadFile(f.titlesPath)
	if os.IsNotExist(err) {
		return titles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read titles file: %w", err)
	}
	if err := json.Unmarshal(data, &titles); err != nil {
		return nil, fmt.Errorf("parse titles file: %w", err)
	}
	return titles, nil
}

// SetTitle implements Repository.
func (f *FileRepository) SetTitle(_ context.Context, gid, title string) error {
	if title == "" {
		return fmt.Errorf("title is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	titles := map[string]string{}
	data, err := os.ReadFile(f.titlesPath)
	if err == nil {
		if err := json.Unmarshal(data, &titles); err != nil {
			return fmt.Errorf("parse titles file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read titles file: %w", err)
	}

	titles[gid] = title
	return f.writeJSON(f.titlesPath, titles)
}

// readSources loads the sources document; missing file reads as empty.
// Callers must hold f.mu.
func (f *FileRepository) readSources() (*sourcesDocument, error) {
	doc := &sourcesDocument{}
	data, err := os.ReadFile(f.sourcesPath)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	return doc, nil
}

// writeJSON replaces path atomically via temp file + rename.
func (f *FileRepository) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry data: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp registry file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace registry file: %w", err)
	}
	return nil
}
