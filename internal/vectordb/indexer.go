package vectordb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var pointNamespace = uuid.MustParse("6f1c6a52-9b0e-4d8e-a0f4-3f2d1c7b9e21")

// Document is a text to index with the payload stored on every chunk.
type Document struct {
	ID      string
	Text    string
	Payload map[string]any
}

// Indexer chunks, embeds and upserts documents.
type Indexer struct {
	store      *Qdrant
	embedder   Embedder
	chunker    *Chunker
	collection string
	logger     *slog.Logger
}

// NewIndexer creates an Indexer writing to collection by default.
func NewIndexer(store *Qdrant, embedder Embedder, collection string, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:      store,
		embedder:   embedder,
		chunker:    NewChunker(),
		collection: collection,
		logger:     logger,
	}
}

// Collection returns the default collection.
func (ix *Indexer) Collection() string { return ix.collection }

// IndexDocument writes doc to the default collection and returns the
// number of chunks stored.
func (ix *Indexer) IndexDocument(ctx context.Context, doc Document) (int, error) {
	return ix.index(ctx, ix.collection, doc)
}

// IndexPage writes the text of a web page to collection, keyed by its URL.
func (ix *Indexer) IndexPage(ctx context.Context, collection, url, text string) (int, error) {
	if collection == "" {
		collection = ix.collection
	}
	return ix.index(ctx, collection, Document{
		ID:      url,
		Text:    text,
		Payload: map[string]any{"source": url, "indexed_at": time.Now().UTC().Format(time.RFC3339)},
	})
}

func (ix *Indexer) index(ctx context.Context, collection string, doc Document) (int, error) {
	chunks := ix.chunker.Split(doc.Text)
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := ix.store.EnsureCollection(ctx, collection, ix.embedder.Dimension()); err != nil {
		return 0, fmt.Errorf("ensure collection %s: %w", collection, err)
	}

	vectors, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", doc.ID, err)
	}

	points := make([]Point, len(chunks))
	for i, chunk := range chunks {
		payload := make(map[string]any, len(doc.Payload)+3)
		for k, v := range doc.Payload {
			payload[k] = v
		}
		payload["doc_id"] = doc.ID
		payload["chunk_index"] = i
		payload["content"] = chunk
		points[i] = Point{
			ID:      PointID(doc.ID, i),
			Vector:  vectors[i],
			Payload: payload,
		}
	}

	if err := ix.store.Upsert(ctx, collection, points); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", doc.ID, err)
	}
	ix.logger.Info("document indexed", "doc_id", doc.ID, "collection", collection, "chunks", len(points))
	return len(points), nil
}

// PointID derives a stable point id from a document id and chunk index,
// so re-indexing a document overwrites its previous chunks.
func PointID(docID string, chunk int) string {
	return uuid.NewSHA1(pointNamespace, fmt.Appendf(nil, "%s#%d", docID, chunk)).String()
}
