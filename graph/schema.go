package graph

// Tables.
const (
	TableDocument = "document"
	TableChunk    = "chunk"
	TableConcept  = "concept"
	TableSummary  = "summary"
)

// Edge kinds. Each kind is stored in its own table.
const (
	EdgeChunkFromDoc = "chunk_from_doc"
	EdgeMentions     = "mentions"
	EdgeSummarizedBy = "summarized_by"
)

// Record fields.
const (
	FieldPath         = "path"
	FieldFilename     = "filename"
	FieldSize         = "size"
	FieldFingerprint  = "fingerprint"
	FieldContentType  = "content_type"
	FieldText         = "text"
	FieldConvertError = "convert_error"
	FieldChunkCount   = "chunk_count"
	FieldDocument     = "document"
	FieldIndex        = "index"
	FieldEmbedding    = "embedding"
	FieldConceptCount = "concept_count"
	FieldName         = "name"
	FieldType         = "type"
	FieldImportance   = "importance"
	FieldChunk        = "chunk"
	FieldIn           = "in"
	FieldOut          = "out"
)

// Stamps.
const (
	StampConverted        = "converted"
	StampChunked          = "chunked"
	StampEmbedded         = "embedded"
	StampConceptsInferred = "concepts_inferred"
	StampSummarized       = "summarized"
)

// Flow names, also used as queue task kinds.
const (
	FlowConvert   = "convert"
	FlowChunk     = "chunk"
	FlowEmbed     = "embed"
	FlowInfer     = "infer"
	FlowSummarize = "summarize"
)
