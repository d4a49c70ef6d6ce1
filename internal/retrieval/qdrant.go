package retrieval

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/qdrant/go-client/qdrant"

	"github.com/advisor-ai/advisor/pkg/types"
)

// QdrantOptions configures the vector retrieval backend.
type QdrantOptions struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	MinScore   float64
}

// QdrantRetriever answers queries against a qdrant collection. The query is
// embedded first, then matched against stored vectors; point payloads carry
// the snippet text under "content" and an optional "source_id".
type QdrantRetriever struct {
	client     *qdrant.Client
	embedder   embedding.Embedder
	collection string
	minScore   float64
}

// NewQdrant connects to qdrant and wires the embedder used for queries.
func NewQdrant(opts QdrantOptions, embedder embedding.Embedder) (*QdrantRetriever, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	port := opts.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &QdrantRetriever{
		client:     client,
		embedder:   embedder,
		collection: opts.Collection,
		minScore:   opts.MinScore,
	}, nil
}

// Retrieve implements Retriever.
func (r *QdrantRetriever) Retrieve(ctx context.Context, query string, k int) ([]types.RetrievedSnippet, error) {
	if k <= 0 {
		return nil, nil
	}

	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	vec := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		vec[i] = float32(v)
	}

	limit := uint64(k)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query qdrant: %w", err)
	}

	snippets := make([]types.RetrievedSnippet, 0, len(points))
	for _, point := range points {
		if r.minScore > 0 && float64(point.Score) < r.minScore {
			continue
		}
		s := snippetFromPoint(point)
		if s.Text == "" {
			continue
		}
		snippets = append(snippets, s)
	}
	return Rank(snippets), nil
}

// Close releases the underlying connection.
func (r *QdrantRetriever) Close() error {
	return r.client.Close()
}

// snippetFromPoint converts a scored qdrant point into a snippet.
func snippetFromPoint(point *qdrant.ScoredPoint) types.RetrievedSnippet {
	s := types.RetrievedSnippet{Score: float64(point.Score)}

	if point.Id != nil {
		if uuid := point.Id.GetUuid(); uuid != "" {
			s.SourceID = uuid
		} else if num := point.Id.GetNum(); num != 0 {
			s.SourceID = fmt.Sprintf("%d", num)
		}
	}
	if point.Payload != nil {
		if v, ok := point.Payload["content"]; ok {
			if str := v.GetStringValue(); str != "" {
				s.Text = str
			}
		}
		if v, ok := point.Payload["source_id"]; ok {
			if str := v.GetStringValue(); str != "" {
				s.SourceID = str
			}
		}
	}
	return s
}
