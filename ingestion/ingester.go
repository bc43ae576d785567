package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/flowrun/convert"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/graph"
	"github.com/poiesic/flowrun/storage"
)

// Report summarizes one IngestPaths call.
type Report struct {
	// Added lists the IDs of the new document records.
	Added []string
	// Duplicates counts files whose content was already ingested.
	Duplicates int
	// Unsupported counts files with a content type no converter handles.
	Unsupported int
	// Failed counts files that could not be read or stored, and added
	// documents whose follow-up hook failed.
	Failed int
}

// Ingester creates document records from files.
type Ingester struct {
	store      storage.RecordRepository
	pool       *ants.Pool
	progress   io.Writer
	onDocument func(ctx context.Context, doc *core.Record) error
	logger     *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester) error

// WithPoolSize sets the number of files read concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(i *Ingester) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if i.pool != nil {
			i.pool.Release()
		}
		i.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// WithProgress reports progress to w while ingesting.
func WithProgress(w io.Writer) Option {
	return func(i *Ingester) error {
		i.progress = w
		return nil
	}
}

// WithOnDocument calls fn for each new document record. Queue deployments
// use it to enqueue the convert task.
func WithOnDocument(fn func(ctx context.Context, doc *core.Record) error) Option {
	return func(i *Ingester) error {
		i.onDocument = fn
		return nil
	}
}

// NewIngester creates an ingester writing to store.
func NewIngester(store storage.RecordRepository, opts ...Option) (*Ingester, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
	if err != nil {
		return nil, err
	}
	i := &Ingester{
		store:  store,
		pool:   pool,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			i.Release()
			return nil, err
		}
	}
	i.logger = i.logger.With("component", "ingester")
	return i, nil
}

// Release releases the worker pool. The ingester should not be used after.
func (i *Ingester) Release() {
	if i.pool != nil {
		i.pool.Release()
	}
}

type outcome int

const (
	outcomeAdded outcome = iota
	outcomeDuplicate
	outcomeUnsupported
)

// IngestPaths ingests the given files and, recursively, the files under the
// given directories. Hidden files and directories are skipped. Errors for
// individual files are counted, logged and joined into the returned error;
// they do not stop the other files.
func (i *Ingester) IngestPaths(ctx context.Context, paths ...string) (*Report, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}

	var tracker *ProgressTracker
	if i.progress != nil {
		tracker = NewProgressTracker(i.progress, len(files), max(len(files)/20, 1))
		tracker.Start()
		defer tracker.Finish()
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report = &Report{}
		errs   []error
	)
	record := func(path string, id string, out outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		switch {
		case out == outcomeAdded && id != "":
			report.Added = append(report.Added, id)
		case err != nil:
		case out == outcomeDuplicate:
			report.Duplicates++
		case out == outcomeUnsupported:
			report.Unsupported++
		}
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		wg.Add(1)
		if err := i.pool.Submit(func() {
			defer wg.Done()
			id, out, err := i.ingestFile(ctx, path)
			if err != nil {
				i.logger.Error("file not ingested", "path", path, "error", err)
			}
			record(path, id, out, err)
		}); err != nil {
			wg.Done()
			record(path, "", 0, err)
		}
	}
	wg.Wait()

	i.logger.Info("ingestion finished", "files", len(files), "added", len(report.Added),
		"duplicates", report.Duplicates, "unsupported", report.Unsupported, "failed", report.Failed)
	mu.Lock()
	defer mu.Unlock()
	return report, errors.Join(errs...)
}

func (i *Ingester) ingestFile(ctx context.Context, path string) (string, outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}

	filename := filepath.Base(path)
	contentType := convert.DetectContentType(filename, data)
	if !convert.Supported(contentType) {
		i.logger.Debug("skipping unsupported file", "path", path, "contentType", contentType)
		return "", outcomeUnsupported, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", 0, err
	}

	fingerprint := core.Fingerprint(data)
	doc := core.NewRecord(graph.TableDocument, fingerprint)
	doc.Set(graph.FieldPath, abs)
	doc.Set(graph.FieldFilename, filename)
	doc.Set(graph.FieldSize, len(data))
	doc.Set(graph.FieldFingerprint, fingerprint)
	doc.Set(graph.FieldContentType, contentType)

	if _, err := i.store.Create(ctx, doc); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			i.logger.Debug("content already ingested", "path", path, "document", fingerprint)
			return fingerprint, outcomeDuplicate, nil
		}
		return "", 0, err
	}
	i.logger.Debug("document added", "path", path, "document", fingerprint)

	if i.onDocument != nil {
		if err := i.onDocument(ctx, doc); err != nil {
			return fingerprint, outcomeAdded, fmt.Errorf("document %s added, follow-up failed: %w", fingerprint, err)
		}
	}
	return fingerprint, outcomeAdded, nil
}

// collectFiles expands directories into the regular files under them.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
