package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

// meta data will have source filename, page number, chunk id

// KnowledgeIndex is an immutable in-memory similarity index over the chunks of one document.
type KnowledgeIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	id         string
	dimension  int
	chunks     map[string]models.Chunk
}

var errPrecomputed = errors.New("embeddings must be computed before they reach the index")

// vectors are always supplied by the pipeline
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errPrecomputed
}

// NewKnowledgeIndex builds the index in a single bulk operation.
// Vectors pair 1:1 with chunks and must share one dimension.
func NewKnowledgeIndex(ctx context.Context, source string, chunks []models.Chunk, vectors [][]float32) (*KnowledgeIndex, error) {
	const op = "build index"
	if len(chunks) != len(vectors) {
		return nil, models.Errorf(models.KindInvalidInput, op, "%d chunks but %d vectors", len(chunks), len(vectors))
	}
	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dimension {
			return nil, models.Errorf(models.KindInvalidInput, op, "vector %d has dimension %d, expected %d", i, len(v), dimension)
		}
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}

	db := chromem.NewDB()
	c, err := db.GetOrCreateCollection(id, map[string]string{models.MetaSource: source}, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	idx := &KnowledgeIndex{
		db:         db,
		collection: c,
		id:         id,
		dimension:  dimension,
		chunks:     make(map[string]models.Chunk, len(chunks)),
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docID := documentID(chunk.ChunkID)
		if _, dup := idx.chunks[docID]; dup {
			return nil, models.Errorf(models.KindInvalidInput, op, "duplicate chunk id %d", chunk.ChunkID)
		}
		idx.chunks[docID] = chunk
		// chromem normalizes in place
		embedding := append([]float32(nil), vectors[i]...)
		docs[i] = chromem.Document{
			ID:        docID,
			Content:   chunk.Content,
			Metadata:  createMetadata(source, chunk),
			Embedding: embedding,
		}
	}

	if len(docs) > 0 {
		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("failed to add documents: %w", err)
		}
	}

	log.Debug().Str("index", id).Int("chunks", len(docs)).Int("dimension", dimension).Msg("Built knowledge index")
	return idx, nil
}

func documentID(chunkID int) string {
	return fmt.Sprintf("chunk-%06d", chunkID)
}

func createMetadata(source string, chunk models.Chunk) map[string]string {
	return map[string]string{
		models.MetaSource:     source,
		models.MetaChunkID:    strconv.Itoa(chunk.ChunkID),
		models.MetaPageNumber: strconv.Itoa(chunk.PageNumber),
	}
}

func (idx *KnowledgeIndex) ID() string { return idx.id }

func (idx *KnowledgeIndex) Len() int { return idx.collection.Count() }

func (idx *KnowledgeIndex) Dimension() int { return idx.dimension }

// Query returns the k chunks nearest to vector, nearest first. Fewer than k
// chunks yields all of them; ties keep chunk insertion order.
func (idx *KnowledgeIndex) Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	const op = "query index"
	if k <= 0 {
		return nil, models.Errorf(models.KindInvalidInput, op, "k must be positive, got %d", k)
	}
	n := idx.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if len(vector) != idx.dimension {
		return nil, models.Errorf(models.KindInvalidInput, op, "query vector has dimension %d, index has %d", len(vector), idx.dimension)
	}

	// rank the whole collection so that ties at the cut-off are resolved deterministically
	results, err := idx.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: append([]float32(nil), vector...),
		NResults:       n,
	})
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		chunk, ok := idx.chunks[r.ID]
		if !ok {
			return nil, fmt.Errorf("unknown document %q in collection", r.ID)
		}
		scored = append(scored, models.ScoredChunk{Chunk: chunk, Similarity: r.Similarity})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := rank(scored[i].Similarity), rank(scored[j].Similarity)
		if si != sj {
			return si > sj
		}
		return scored[i].ChunkID < scored[j].ChunkID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func rank(s float32) float64 {
	if math.IsNaN(float64(s)) {
		return math.Inf(-1)
	}
	return float64(s)
}

// SearchWithQueryOptions runs a similarity search against the collection
func (idx *KnowledgeIndex) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	results, err := idx.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// Close drops the collection; the index must not be used afterwards.
func (idx *KnowledgeIndex) Close() error {
	if idx == nil || idx.collection == nil {
		return nil
	}
	if err := idx.db.DeleteCollection(idx.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	log.Debug().Str("index", idx.id).Msg("Dropped knowledge index")
	return nil
}
