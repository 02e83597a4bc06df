package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"bibleai-be/pkg/vectorindex"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys stored with every point
const (
	payloadVerseKey    = "verse_key"
	payloadTranslation = "translation"
)

// pointNamespace derives stable point ids from verse keys
var pointNamespace = uuid.MustParse("6f1c2a8e-3b7d-4c5e-9a10-2d4f6b8c0e12")

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant gRPC address (e.g., "http://localhost:6334").
	URL string

	// CollectionName is the name of the verse collection.
	CollectionName string

	// APIKey is optional API key for authentication.
	APIKey string

	// Dimension is used when the collection has to be created.
	Dimension int
}

// Client implements vectorindex.VectorIndex for Qdrant.
type Client struct {
	client         *qdrant.Client
	collectionName string
	dimension      int
}

// New creates a new Qdrant client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = "bible_verses"
	}

	host, port, useTLS, err := parseAddress(cfg.URL)
	if err != nil {
		return nil, err
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{
		client:         qdrantClient,
		collectionName: cfg.CollectionName,
		dimension:      cfg.Dimension,
	}, nil
}

// parseAddress splits "http(s)://host:port"; a bare host defaults to plain text on 6334.
func parseAddress(raw string) (host string, port int, useTLS bool, err error) {
	parsed := raw
	if !strings.HasPrefix(parsed, "http://") && !strings.HasPrefix(parsed, "https://") {
		parsed = "http://" + parsed
	}

	u, err := url.Parse(parsed)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port = 6334
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

func (c *Client) Name() string { return "qdrant" }

// EnsureCollection creates the collection with cosine distance if it does not exist.
func (c *Client) EnsureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.collectionName)
	if err != nil {
		return fmt.Errorf("qdrant collection check failed: %w", err)
	}
	if exists {
		return nil
	}
	if c.dimension <= 0 {
		return fmt.Errorf("qdrant collection %s missing and no dimension configured", c.collectionName)
	}

	err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}
	return nil
}

// Search implements vectorindex.VectorIndex.
func (c *Client) Search(ctx context.Context, vector []float32, filter vectorindex.Filter, limit int) ([]vectorindex.Hit, error) {
	limitUint64 := uint64(limit)
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	hits := make([]vectorindex.Hit, 0, len(points))
	for _, point := range points {
		key := ""
		if v, ok := point.Payload[payloadVerseKey]; ok {
			key = v.GetStringValue()
		}
		if key == "" {
			continue
		}
		hits = append(hits, vectorindex.Hit{Key: key, Score: float64(point.Score)})
	}
	return hits, nil
}

// Upsert implements vectorindex.VectorIndex.
func (c *Client) Upsert(ctx context.Context, points []vectorindex.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(p.Key)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadVerseKey:    p.Key,
				payloadTranslation: p.Translation,
			}),
		}
	}

	wait := true
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collectionName,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Count implements vectorindex.VectorIndex.
func (c *Client) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: c.collectionName,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return int(n), nil
}

// Close implements vectorindex.VectorIndex.
func (c *Client) Close() error {
	return c.client.Close()
}

// PointID maps a verse key to its deterministic point UUID.
func PointID(verseKey string) string {
	return uuid.NewSHA1(pointNamespace, []byte(verseKey)).String()
}

// buildFilter converts a translation restriction to a Qdrant keyword match.
func buildFilter(filter vectorindex.Filter) *qdrant.Filter {
	if filter.Translation == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key:   payloadTranslation,
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: filter.Translation}},
					},
				},
			},
		},
	}
}

// Compile-time check that Client implements VectorIndex.
var _ vectorindex.VectorIndex = (*Client)(nil)
