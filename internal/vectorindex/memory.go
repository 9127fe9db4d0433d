package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"guardian-rag/internal/errs"
	"guardian-rag/internal/models"

	"go.uber.org/zap"
)

// MemoryIndex is an in-process Index for development and tests. Each
// document's chunk set is published as an immutable slice that writers
// swap whole, so readers always observe a complete snapshot.
type MemoryIndex struct {
	mu   sync.RWMutex // guards docs and dim
	docs map[string][]models.Chunk
	dim  int

	writersMu sync.Mutex
	writers   map[string]*sync.Mutex

	logger *zap.Logger
}

func NewMemoryIndex(logger *zap.Logger) *MemoryIndex {
	return &MemoryIndex{
		docs:    make(map[string][]models.Chunk),
		writers: make(map[string]*sync.Mutex),
		logger:  logger,
	}
}

// docLock returns the per-document write lock, creating it on first use.
// Writes to the same document serialize; writes to different documents
// only contend on the brief snapshot swap.
func (x *MemoryIndex) docLock(documentID string) *sync.Mutex {
	x.writersMu.Lock()
	defer x.writersMu.Unlock()
	l, ok := x.writers[documentID]
	if !ok {
		l = &sync.Mutex{}
		x.writers[documentID] = l
	}
	return l
}

func (x *MemoryIndex) Upsert(ctx context.Context, chunks []models.Chunk) error {
	dim, err := batchDimension(chunks)
	if err != nil {
		return err
	}
	if dim > 0 {
		if err := x.commitDimension(dim); err != nil {
			return err
		}
	}

	byDoc := make(map[string][]models.Chunk)
	for _, chunk := range chunks {
		byDoc[chunk.DocumentID] = append(byDoc[chunk.DocumentID], chunk)
	}

	for documentID, docChunks := range byDoc {
		lock := x.docLock(documentID)
		lock.Lock()

		x.mu.RLock()
		existing := x.docs[documentID]
		x.mu.RUnlock()

		// Copy-on-write merge: the published slice is never mutated in
		// place, so in-flight readers keep a consistent view.
		merged := make([]models.Chunk, 0, len(existing)+len(docChunks))
		replaced := make(map[string]models.Chunk, len(docChunks))
		for _, chunk := range docChunks {
			replaced[chunk.ID] = chunk
		}
		for _, chunk := range existing {
			if updated, ok := replaced[chunk.ID]; ok {
				merged = append(merged, updated)
				delete(replaced, chunk.ID)
				continue
			}
			merged = append(merged, chunk)
		}
		for _, chunk := range docChunks {
			if _, ok := replaced[chunk.ID]; ok {
				merged = append(merged, chunk)
			}
		}

		x.publish(documentID, merged)
		lock.Unlock()
	}

	return nil
}

func (x *MemoryIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []models.Chunk) error {
	for _, chunk := range chunks {
		if chunk.DocumentID != documentID {
			return &errs.IndexIntegrityError{
				Reason: fmt.Sprintf("chunk %s does not belong to document %s", chunk.ID, documentID),
			}
		}
	}
	dim, err := batchDimension(chunks)
	if err != nil {
		return err
	}
	if dim > 0 {
		if err := x.commitDimension(dim); err != nil {
			return err
		}
	}

	lock := x.docLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	snapshot := make([]models.Chunk, len(chunks))
	copy(snapshot, chunks)
	x.publish(documentID, snapshot)

	x.logger.Debug("Document chunk set replaced",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)),
	)

	return nil
}

func (x *MemoryIndex) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dim != 0 && len(vector) != x.dim {
		return nil, &errs.IndexIntegrityError{
			Reason: fmt.Sprintf("query vector has dimension %d, index has %d", len(vector), x.dim),
		}
	}

	var hits []SearchHit
	for _, chunks := range x.docs {
		for _, chunk := range chunks {
			if filter != nil && !filter(chunk) {
				continue
			}
			hits = append(hits, SearchHit{
				ChunkID:       chunk.ID,
				DocumentID:    chunk.DocumentID,
				SequenceIndex: chunk.SequenceIndex,
				Span:          chunk.Span,
				Text:          chunk.Text,
				Score:         CosineSimilarity(vector, chunk.Embedding),
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hitLess(hits[i], hits[j])
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (x *MemoryIndex) publish(documentID string, chunks []models.Chunk) {
	x.mu.Lock()
	if len(chunks) == 0 {
		delete(x.docs, documentID)
	} else {
		x.docs[documentID] = chunks
	}
	x.mu.Unlock()
}

// batchDimension validates a whole batch up front and returns its common
// dimension (0 for an empty batch). Nothing about the index is touched, so
// a rejected batch leaves no trace.
func batchDimension(chunks []models.Chunk) (int, error) {
	dim := 0
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return 0, &errs.IndexIntegrityError{
				Reason: fmt.Sprintf("chunk %s has no embedding", chunk.ID),
			}
		}
		if dim == 0 {
			dim = len(chunk.Embedding)
			continue
		}
		if len(chunk.Embedding) != dim {
			return 0, &errs.IndexIntegrityError{
				Reason: fmt.Sprintf("chunk %s has dimension %d, batch has %d", chunk.ID, len(chunk.Embedding), dim),
			}
		}
	}
	return dim, nil
}

// commitDimension pins the index dimension only after the full batch has
// validated, and rejects a batch that disagrees with an already-pinned one.
func (x *MemoryIndex) commitDimension(dim int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dim == 0 {
		x.dim = dim
		return nil
	}
	if dim != x.dim {
		return &errs.IndexIntegrityError{
			Reason: fmt.Sprintf("batch has dimension %d, index has %d", dim, x.dim),
		}
	}
	return nil
}
