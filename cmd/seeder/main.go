package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/flowrun"
	"github.com/poiesic/flowrun/config"
	"github.com/poiesic/flowrun/convert"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/graph"
	"github.com/poiesic/flowrun/storage"
)

// passages are short reference paragraphs. Topics repeat across passages so
// the infer flow links chunks from different documents to shared concepts.
var passages = []string{
	"Write-ahead logging records every change in an append-only log before the change reaches the main data file. " +
		"After a crash the database replays the log to restore committed transactions. " +
		"Checkpoints copy logged pages back into the data file so the log can be truncated.",
	"A log-structured merge tree buffers writes in memory and flushes them as sorted, immutable tables. " +
		"Background compaction merges overlapping tables and drops deleted keys. " +
		"Reads consult the memory table first, then each level from newest to oldest.",
	"Badger separates keys from large values: keys live in the LSM tree while values are stored in a value log. " +
		"This keeps the tree small enough to stay in memory. " +
		"Value log garbage collection rewrites files whose entries are mostly stale.",
	"SQLite stores an entire database in a single file and runs inside the application process. " +
		"In WAL mode readers do not block the writer, and the writer does not block readers. " +
		"Only one connection may write at a time, so batch writers serialize through a single handle.",
	"Optimistic concurrency lets transactions proceed without locks and checks for conflicts at commit. " +
		"When two transactions write the same key, the later commit fails and must be retried. " +
		"Short transactions keep the conflict rate low.",
	"A conditional update changes a record only when a predicate still holds at write time. " +
		"Compare-and-set on a status field is a common way to claim work from a shared table. " +
		"The caller learns whether it won the claim from the update result.",

	"Exponential backoff doubles the wait after each failed or idle attempt, up to a fixed maximum. " +
		"A successful attempt resets the wait to its base value. " +
		"Adding jitter spreads retries from many clients so they do not arrive together.",
	"A work queue decouples producers from consumers. " +
		"Each task moves from pending to processing and then to processed or failed. " +
		"Tasks left in processing after a crash are requeued so another worker can finish them.",
	"Idempotent handlers can run more than once for the same input without changing the outcome. " +
		"Content-derived identifiers make repeated inserts collide instead of creating duplicates. " +
		"Retries and at-least-once delivery both depend on this property.",
	"A worker pool caps the number of goroutines that run tasks at once. " +
		"Submitting more tasks than workers makes callers wait for a free slot. " +
		"Releasing the pool waits for running tasks and frees idle workers.",
	"Incremental processing only touches records that changed since the last pass. " +
		"A marker field written after successful processing tells the scanner a record is done. " +
		"Clearing the marker schedules the record for another pass.",
	"Versioning processing logic with a hash of its code lets a system detect results produced by older logic. " +
		"Records stamped with an old hash are stale. " +
		"Operators can reset stale records to reprocess them with the current version.",

	"Text embeddings map passages to dense vectors so that similar meanings lie close together. " +
		"Cosine similarity compares two vectors by the angle between them and ignores their length. " +
		"Normalizing vectors to unit length turns cosine similarity into a dot product.",
	"Chunking splits long documents into overlapping pieces that fit a model's context window. " +
		"Splitting on paragraph and sentence boundaries keeps each chunk coherent. " +
		"Overlap carries context across chunk boundaries at the cost of some duplicated text.",
	"Hybrid search combines vector similarity with symbolic matches such as shared concepts or exact words. " +
		"Results found by both methods rank above results found by only one. " +
		"A verbatim match of every query word earns an extra boost.",
	"Concept extraction asks a language model to list the entities and ideas a passage mentions. " +
		"Each concept gets an importance score, and low scores are discarded. " +
		"Linking chunks to the concepts they mention builds a navigable knowledge graph.",
	"Summaries condense a chunk into a few sentences that keep its key facts. " +
		"A word limit keeps summaries comparable across chunks of different sizes. " +
		"Summaries of neighbouring chunks can be combined into an overview of the whole document.",
	"A knowledge graph stores facts as nodes connected by typed edges. " +
		"Edges from chunks to documents record provenance, and edges from chunks to concepts record mentions. " +
		"Walking incoming edges of a concept finds every passage that discusses it.",

	"PDF files describe pages as positioned glyphs rather than paragraphs. " +
		"Text extraction reorders glyphs into lines and guesses where paragraphs begin. " +
		"Scanned PDFs contain only images and need optical character recognition.",
	"Spreadsheets hold data in sheets of rows and columns. " +
		"Converting a sheet to a markdown table keeps its structure readable for a language model. " +
		"Empty trailing rows and columns are trimmed before conversion.",
	"Content sniffing inspects the first bytes of a file to guess its format when the extension is missing or wrong. " +
		"Magic numbers identify formats such as PDF and ZIP archives. " +
		"Plain text is assumed when no signature matches and the bytes are valid UTF-8.",
	"A fingerprint is a fast keyed hash of a file's contents. " +
		"Two files with the same fingerprint are treated as the same document and ingested once. " +
		"Fingerprints are cheaper to compare than the files themselves.",
	"Structured logs attach key-value attributes to each message. " +
		"A component attribute on every logger makes it easy to filter output from one subsystem. " +
		"Debug-level messages stay off in production unless an operator enables them.",
	"Prometheus scrapes counters, gauges and histograms from an HTTP endpoint. " +
		"Counters only increase, gauges move up and down, and histograms bucket observed durations. " +
		"Labels split a metric by dimensions such as the flow that produced it.",
}

var (
	configPath = flag.String("config", "", "YAML config file")
	dbPath     = flag.String("db", "./flowrun_db", "store path, overrides the config file")
	seedFile   = flag.String("src", "", "file of passages separated by blank lines")
	perDoc     = flag.Int("per-doc", 3, "passages per seeded document")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// passagesFromFile returns an iterator over blank-line separated passages in
// a file. Lines within a passage are joined with single spaces.
func passagesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		var current []string
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				current = append(current, line)
				continue
			}
			if len(current) > 0 {
				if !yield(strings.Join(current, " ")) {
					return
				}
				current = current[:0]
			}
		}
		if len(current) > 0 {
			yield(strings.Join(current, " "))
		}
	}, nil
}

// passagesFromSlice returns an iterator over a slice of passages.
func passagesFromSlice(items []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, p := range items {
			if !yield(p) {
				return
			}
		}
	}
}

// seedDocuments groups passages into documents of perDoc paragraphs. The
// documents carry their text already, so the chunk flow picks them up
// without a convert step. onCreated, if set, is called for each new document.
// Documents already in the store are skipped. Returns the number created.
func seedDocuments(ctx context.Context, store storage.RecordRepository, source iter.Seq[string], perDoc int, onCreated func(context.Context, *core.Record) error) (int, error) {
	created := 0
	paragraphs := make([]string, 0, perDoc)

	flush := func() error {
		text := strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
		paragraphs = paragraphs[:0]
		if text == "" {
			return nil
		}

		fingerprint := core.Fingerprint([]byte(text))
		doc := core.NewRecord(graph.TableDocument, fingerprint)
		doc.Set(graph.FieldFilename, fmt.Sprintf("seed-%04d.txt", created))
		doc.Set(graph.FieldFingerprint, fingerprint)
		doc.Set(graph.FieldSize, len(text))
		doc.Set(graph.FieldContentType, convert.ContentTypePlain)
		doc.Set(graph.FieldText, text)

		if _, err := store.Create(ctx, doc); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return nil
			}
			return err
		}
		created++
		if onCreated == nil {
			return nil
		}
		return onCreated(ctx, doc)
	}

	for p := range source {
		if strings.TrimSpace(p) == "" {
			continue
		}
		paragraphs = append(paragraphs, p)
		if len(paragraphs) < perDoc {
			continue
		}
		if err := flush(); err != nil {
			return created, err
		}
	}
	if err := flush(); err != nil {
		return created, err
	}
	return created, nil
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	cfg.Store.Path = *dbPath

	ctx := context.Background()
	db, err := flowrun.Open(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	source := passagesFromSlice(passages)
	if *seedFile != "" {
		if source, err = passagesFromFile(*seedFile); err != nil {
			panic(err)
		}
	}

	var onCreated func(context.Context, *core.Record) error
	if cfg.Scheduler.Mode == config.ModeQueue {
		onCreated = func(ctx context.Context, doc *core.Record) error {
			_, err := db.Queue().Enqueue(ctx, graph.FlowChunk, doc.Table, doc.ID)
			return err
		}
	}

	n, err := seedDocuments(ctx, db.Store(), source, max(*perDoc, 1), onCreated)
	if err != nil {
		panic(err)
	}
	slog.Info("seeded documents", "count", n, "store", cfg.Store.Path)
}
