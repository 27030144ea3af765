package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adverant/nexus/manualqa/internal/logging"
)

// payloadSourceKey, payloadContentKey etc. name the fields stored in a
// Qdrant point's payload, mirroring Chunk/Metadata's JSON shape.
const (
	payloadContent     = "content"
	payloadSource      = "source"
	payloadBrandName   = "brandName"
	payloadPage        = "page"
	payloadChunkIndex  = "chunkIndex"
	payloadChunkType   = "chunkType"
	payloadFaultCode   = "faultCode"
	payloadTitle       = "title"
	payloadNumPages    = "numPages"
	payloadUploadedAt  = "uploadedAt"
	payloadReindexedAt = "reindexedAt"
	payloadOCRUsed     = "ocrUsed"
	payloadOCRPartial  = "ocrPartial"
	payloadChunkID     = "chunkId"
)

// QdrantStore is the remote vector store backend, adapted from the
// teacher's internal/storage/qdrant.go gRPC client: same PointsClient /
// CollectionsClient split, same connection and upsert/search/delete shape,
// generalized from its hardcoded 1024-dimension VoyageAI assumption to the
// configurable dimension this service's embedding provider produces, and
// extended with brand-payload filtering (the Filter/Match condition
// construction borrowed from intelligencedev-manifold's qdrant_vector.go,
// which exercises the same gRPC package's filter types at a higher level).
type QdrantStore struct {
	client           qdrant.PointsClient
	collectionClient qdrant.CollectionsClient
	conn             *grpc.ClientConn
	collectionName   string
	dimension        int
	logger           *logging.Logger
}

// NewQdrantStore dials the remote vector database and ensures the
// configured collection exists with the right vector size and distance.
func NewQdrantStore(address, collectionName string, dimension int, logger *logging.Logger) (*QdrantStore, error) {
	if address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if collectionName == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if dimension <= 0 {
		dimension = 3072
	}

	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	q := &QdrantStore{
		client:           qdrant.NewPointsClient(conn),
		collectionClient: qdrant.NewCollectionsClient(conn),
		conn:             conn,
		collectionName:   collectionName,
		dimension:        dimension,
		logger:           logger,
	}

	if err := q.ensureCollection(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}
	return q, nil
}

func (q *QdrantStore) ensureCollection(ctx context.Context) error {
	listResp, err := q.collectionClient.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range listResp.Collections {
		if col.Name == q.collectionName {
			return nil
		}
	}

	_, err = q.collectionClient.Create(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(q.dimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Add upserts each chunk as a Qdrant point keyed by a UUID derived from the
// chunk's own id (chunks carry their original id in the payload so lookups
// and dedup keep working once it is no longer the literal point id).
func (q *QdrantStore) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != q.dimension {
			return fmt.Errorf("chunk %q has embedding dimension %d, expected %d", c.ID, len(c.Embedding), q.dimension)
		}
		pointUUID := toPointUUID(c.ID)
		points = append(points, &qdrant.PointStruct{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointUUID}},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: c.Embedding}},
			},
			Payload: chunkToPayload(c),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search runs a vector similarity search, applying a payload filter over
// source/brandName when brandFilter is non-empty, falling back to an
// unfiltered search if the filtered query returns nothing.
func (q *QdrantStore) Search(ctx context.Context, queryVec []float32, k int, brandFilter string) ([]ScoredChunk, bool, error) {
	results, err := q.search(ctx, queryVec, k, brandFilter)
	if err != nil {
		return nil, false, err
	}
	if len(results) == 0 && brandFilter != "" {
		unfiltered, err := q.search(ctx, queryVec, k, "")
		if err != nil {
			return nil, false, err
		}
		return unfiltered, true, nil
	}
	return results, false, nil
}

func (q *QdrantStore) search(ctx context.Context, queryVec []float32, k int, brandFilter string) ([]ScoredChunk, error) {
	if k <= 0 {
		k = 10
	}
	req := &qdrant.SearchPoints{
		CollectionName: q.collectionName,
		Vector:         queryVec,
		Limit:          uint64(k),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	}
	if brandFilter != "" {
		req.Filter = brandFilterCondition(brandFilter)
	}

	resp, err := q.client.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	out := make([]ScoredChunk, 0, len(resp.Result))
	for _, hit := range resp.Result {
		out = append(out, ScoredChunk{Chunk: payloadToChunk(hit.Id.GetUuid(), hit.Payload), Similarity: float64(hit.Score)})
	}
	return out, nil
}

// brandFilterCondition builds a should-clause match filter over source and
// brandName. Qdrant's Match condition is an exact-value match, not a
// substring one, so this filters to chunks whose brand was already
// resolved to exactly this value at ingestion time (see internal/brand);
// case-insensitive substring filtering for the embedded backend is not
// reproduced here since the remote backend indexes brand as a keyword.
func brandFilterCondition(brandFilter string) *qdrant.Filter {
	match := func(key, value string) *qdrant.Condition {
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   key,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
				},
			},
		}
	}
	return &qdrant.Filter{
		Should: []*qdrant.Condition{
			match(payloadSource, brandFilter),
			match(payloadBrandName, brandFilter),
		},
	}
}

// LexicalSearch is not offered by the remote backend: Qdrant has no BM25
// full-text ranking in the gRPC API surface this client uses. It returns an
// empty result rather than an error, so lexical search (/api/search) yields
// no hits against the remote backend instead of failing the request.
func (q *QdrantStore) LexicalSearch(ctx context.Context, text string, k int, brandFilter string) ([]ScoredChunk, error) {
	return nil, nil
}

// HasSource scrolls the collection looking for an exact or normalized
// source match, since Qdrant's Match filter only does exact-value
// equality; this mirrors the embedded backend's exact-then-normalized
// resolution (SPEC_FULL.md §14) rather than a substring match.
func (q *QdrantStore) HasSource(ctx context.Context, name string) (bool, error) {
	sources, err := q.IndexedSources(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range sources {
		if s == name {
			return true, nil
		}
	}
	normalized := normalizeSourceName(name)
	for _, s := range sources {
		if normalizeSourceName(s) == normalized {
			return true, nil
		}
	}
	return false, nil
}

// RemoveSources deletes every point whose source payload field matches one
// of names.
func (q *QdrantStore) RemoveSources(ctx context.Context, names []string) (RemoveResult, error) {
	if len(names) == 0 {
		return RemoveResult{}, nil
	}
	conditions := make([]*qdrant.Condition, 0, len(names))
	for _, n := range names {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   payloadSource,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: n}},
				},
			},
		})
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{Should: conditions},
			},
		},
	})
	if err != nil {
		return RemoveResult{}, fmt.Errorf("failed to delete points: %w", err)
	}

	info, err := q.Stats(ctx)
	if err != nil {
		return RemoveResult{}, err
	}
	return RemoveResult{Remaining: info.TotalDocuments}, nil
}

// IndexedSources scrolls the full collection's payloads, collecting the
// distinct source values. This is adequate at manual-library scale; a
// very large collection would want Qdrant's payload facet aggregation
// instead, which this gRPC client's API surface does not expose.
func (q *QdrantStore) IndexedSources(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var offset *qdrant.PointId
	for {
		resp, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collectionName,
			Offset:         offset,
			Limit:          ptrUint32(256),
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		for _, p := range resp.Result {
			if v, ok := p.Payload[payloadSource]; ok {
				seen[v.GetStringValue()] = true
			}
		}
		if resp.NextPageOffset == nil || len(resp.Result) == 0 {
			break
		}
		offset = resp.NextPageOffset
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	return out, nil
}

// Stats reports the collection's point count.
func (q *QdrantStore) Stats(ctx context.Context) (Stats, error) {
	resp, err := q.collectionClient.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: q.collectionName})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get collection info: %w", err)
	}
	return Stats{TotalDocuments: int(resp.Result.PointsCount), CollectionName: q.collectionName}, nil
}

// ExportCorpus scrolls the collection, reconstructing chunks (including
// vectors) for NDJSON bulk export.
func (q *QdrantStore) ExportCorpus(ctx context.Context, limit int, brandFilter string) ([]Chunk, error) {
	var out []Chunk
	var offset *qdrant.PointId
	var filter *qdrant.Filter
	if brandFilter != "" {
		filter = brandFilterCondition(brandFilter)
	}
	for {
		resp, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collectionName,
			Offset:         offset,
			Limit:          ptrUint32(256),
			Filter:         filter,
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		for _, p := range resp.Result {
			out = append(out, payloadToChunkWithVector(p.Id.GetUuid(), p.Payload, p.Vectors))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if resp.NextPageOffset == nil || len(resp.Result) == 0 {
			break
		}
		offset = resp.NextPageOffset
	}
	return out, nil
}

// Close tears down the gRPC connection.
func (q *QdrantStore) Close() error {
	return q.conn.Close()
}

// Loading always reports ready: the remote backend has no local
// write-ahead log replay phase to surface.
func (q *QdrantStore) Loading() (bool, float64) {
	return false, 1
}

func toPointUUID(chunkID string) string {
	if _, err := uuid.Parse(chunkID); err == nil {
		return chunkID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func normalizeSourceName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func ptrUint32(v uint32) *uint32 { return &v }

func chunkToPayload(c Chunk) map[string]*qdrant.Value {
	str := func(v string) *qdrant.Value { return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}} }
	intg := func(v int) *qdrant.Value { return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}} }
	boolean := func(v bool) *qdrant.Value { return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}} }

	return map[string]*qdrant.Value{
		payloadChunkID:     str(c.ID),
		payloadContent:     str(c.Content),
		payloadSource:      str(c.Metadata.Source),
		payloadBrandName:   str(c.Metadata.BrandName),
		payloadPage:        intg(c.Metadata.Page),
		payloadChunkIndex:  intg(c.Metadata.ChunkIndex),
		payloadChunkType:   str(c.Metadata.ChunkType),
		payloadFaultCode:   str(c.Metadata.FaultCode),
		payloadTitle:       str(c.Metadata.Title),
		payloadNumPages:    intg(c.Metadata.NumPages),
		payloadUploadedAt:  str(c.Metadata.UploadedAt),
		payloadReindexedAt: str(c.Metadata.ReindexedAt),
		payloadOCRUsed:     boolean(c.Metadata.OCRUsed),
		payloadOCRPartial:  boolean(c.Metadata.OCRPartial),
	}
}

func payloadToChunk(pointUUID string, payload map[string]*qdrant.Value) Chunk {
	return payloadToChunkWithVector(pointUUID, payload, nil)
}

func payloadToChunkWithVector(pointUUID string, payload map[string]*qdrant.Value, vectors *qdrant.Vectors) Chunk {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	intg := func(key string) int {
		if v, ok := payload[key]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}
	boolean := func(key string) bool {
		if v, ok := payload[key]; ok {
			return v.GetBoolValue()
		}
		return false
	}

	id := str(payloadChunkID)
	if id == "" {
		id = pointUUID
	}

	c := Chunk{
		ID:      id,
		Content: str(payloadContent),
		Metadata: Metadata{
			Source:      str(payloadSource),
			BrandName:   str(payloadBrandName),
			Page:        intg(payloadPage),
			ChunkIndex:  intg(payloadChunkIndex),
			ChunkType:   str(payloadChunkType),
			FaultCode:   str(payloadFaultCode),
			Title:       str(payloadTitle),
			NumPages:    intg(payloadNumPages),
			UploadedAt:  str(payloadUploadedAt),
			ReindexedAt: str(payloadReindexedAt),
			OCRUsed:     boolean(payloadOCRUsed),
			OCRPartial:  boolean(payloadOCRPartial),
		},
	}
	if vectors != nil {
		if v := vectors.GetVector(); v != nil {
			c.Embedding = v.Data
		}
	}
	return c
}
