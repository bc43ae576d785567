package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/flowrun/ai"
	"github.com/poiesic/flowrun/convert"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/flow"
	"github.com/poiesic/flowrun/storage"
)

// convertHandler reads the file at the document's path and stores its text.
// Documents that cannot be converted are stamped with convert_error instead
// of text, so they never become chunk candidates.
func convertHandler(d Deps) flow.Handler {
	return func(ctx context.Context, rec *core.Record, hash string) error {
		path := rec.String(FieldPath)
		data, err := d.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		ct := rec.String(FieldContentType)
		if ct == "" {
			name := rec.String(FieldFilename)
			if name == "" {
				name = path
			}
			ct = convert.DetectContentType(name, data)
		}

		fields := map[string]any{FieldContentType: ct}
		text, err := convert.Convert(ct, data)
		if err != nil {
			d.Logger.Warn("document not converted", "document", rec.ID, "contentType", ct, "error", err)
			fields[FieldConvertError] = err.Error()
		} else {
			fields[FieldText] = text
		}

		if err := flow.Commit(ctx, d.Store, rec, StampConverted, hash, fields); err != nil {
			return err
		}
		if rec.Has(FieldText) {
			d.emitOrLog(ctx, rec)
		}
		return nil
	}
}

// chunkHandler splits a document's text into chunk records keyed by content,
// linking each to the document.
func chunkHandler(d Deps) flow.Handler {
	return func(ctx context.Context, rec *core.Record, hash string) error {
		texts, err := d.Chunker.Split(rec.String(FieldContentType), rec.String(FieldText))
		if err != nil {
			return err
		}

		var created []*core.Record
		for i, text := range texts {
			chunk := core.NewRecord(TableChunk, core.IDFromContent(text))
			chunk.Set(FieldText, text)
			chunk.Set(FieldDocument, rec.ID)
			chunk.Set(FieldIndex, i)

			_, err := d.Store.Create(ctx, chunk)
			switch {
			case err == nil:
				created = append(created, chunk)
			case errors.Is(err, storage.ErrDuplicateKey):
				// Identical text was already chunked, here or in another document.
			default:
				return err
			}

			if err := Relate(ctx, d.Store, EdgeChunkFromDoc, chunk, rec, map[string]any{FieldIndex: i}); err != nil {
				return err
			}
		}

		if err := flow.Commit(ctx, d.Store, rec, StampChunked, hash, map[string]any{FieldChunkCount: len(texts)}); err != nil {
			return err
		}
		d.Logger.Debug("document chunked", "document", rec.ID, "chunks", len(texts), "new", len(created))
		for _, chunk := range created {
			d.emitOrLog(ctx, chunk)
		}
		return nil
	}
}

// embedHandler stores the embedding of a chunk's text.
func embedHandler(d Deps) flow.Handler {
	return func(ctx context.Context, rec *core.Record, hash string) error {
		var vector []float32
		err := flow.RetryWithBackoff(ctx, func() error {
			v, err := d.Embedder.EmbedText(ctx, rec.String(FieldText))
			vector = v
			return err
		}, d.RetryAttempts, d.RetryDelay)
		if err != nil {
			return fmt.Errorf("embed %s: %w", rec.Ref(), err)
		}
		if len(vector) == 0 {
			return fmt.Errorf("embed %s: %w", rec.Ref(), ai.ErrEmptyResponse)
		}
		return flow.Commit(ctx, d.Store, rec, StampEmbedded, hash, map[string]any{FieldEmbedding: vector})
	}
}

// inferHandler creates concept records for the concepts a chunk mentions and
// links the chunk to each.
func inferHandler(d Deps) flow.Handler {
	return func(ctx context.Context, rec *core.Record, hash string) error {
		var concepts []ai.ExtractedConcept
		err := flow.RetryWithBackoff(ctx, func() error {
			c, err := d.Extractor.ExtractConcepts(ctx, rec.String(FieldText))
			concepts = c
			return err
		}, d.RetryAttempts, d.RetryDelay)
		if err != nil {
			return fmt.Errorf("infer concepts %s: %w", rec.Ref(), err)
		}

		linked := 0
		for _, c := range concepts {
			name := strings.ToLower(strings.TrimSpace(c.Name))
			if name == "" {
				continue
			}
			concept := core.NewRecord(TableConcept, name)
			concept.Set(FieldName, name)
			concept.Set(FieldType, c.Type)
			if _, err := d.Store.Create(ctx, concept); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				return err
			}
			if err := Relate(ctx, d.Store, EdgeMentions, rec, concept, map[string]any{FieldImportance: c.Importance}); err != nil {
				return err
			}
			linked++
		}

		return flow.Commit(ctx, d.Store, rec, StampConceptsInferred, hash, map[string]any{FieldConceptCount: linked})
	}
}

// summarizeHandler writes a summary record for a chunk, keyed by the chunk ID.
func summarizeHandler(d Deps) flow.Handler {
	return func(ctx context.Context, rec *core.Record, hash string) error {
		var text string
		err := flow.RetryWithBackoff(ctx, func() error {
			s, err := d.Summarizer.Summarize(ctx, rec.String(FieldText))
			text = s
			return err
		}, d.RetryAttempts, d.RetryDelay)
		if err != nil {
			return fmt.Errorf("summarize %s: %w", rec.Ref(), err)
		}

		summary := core.NewRecord(TableSummary, rec.ID)
		summary.Set(FieldText, text)
		summary.Set(FieldChunk, rec.ID)
		if err := d.Store.Put(ctx, summary); err != nil {
			return err
		}
		if err := Relate(ctx, d.Store, EdgeSummarizedBy, rec, summary, nil); err != nil {
			return err
		}
		return flow.Commit(ctx, d.Store, rec, StampSummarized, hash, nil)
	}
}

func (d Deps) emitOrLog(ctx context.Context, rec *core.Record) {
	if err := d.emit(ctx, rec); err != nil {
		d.Logger.Warn("follow-up not scheduled", "record", rec.Ref(), "error", err)
	}
}
