package search

import (
	"context"
	"fmt"

	"github.com/yungbote/vibelist-backend/internal/domain/trend"
)

type postDoc struct {
	ID              int64  `json:"id"`
	Content         string `json:"content"`
	UserName        string `json:"userName"`
	UserProfileName string `json:"userProfileName"`
}

// BuildPostRankQuery selects public, non-deleted posts created in the last
// day or updated in the last three days, ordered by the precomputed score
// field descending with post id as the tie breaker.
func BuildPostRankQuery(scoreField string, n int) map[string]any {
	return map[string]any{
		"size":             n,
		"track_total_hits": false,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"isPublic": true}},
					map[string]any{"bool": map[string]any{
						"must_not": []any{map[string]any{"exists": map[string]any{"field": "deletedAt"}}},
					}},
					map[string]any{"bool": map[string]any{
						"should": []any{
							map[string]any{"range": map[string]any{"createdAt": map[string]any{"gte": "now-24h"}}},
							map[string]any{"range": map[string]any{"updatedAt": map[string]any{"gte": "now-72h"}}},
						},
						"minimum_should_match": 1,
					}},
				},
			},
		},
		"sort": []any{
			map[string]any{scoreField: map[string]any{"order": "desc", "missing": "_last"}},
			map[string]any{"id": map[string]any{"order": "asc"}},
		},
	}
}

// TopRankedPosts returns up to n posts in ranking order with their score.
func (c *Client) TopRankedPosts(ctx context.Context, n int) ([]trend.RankedPost, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := c.search(ctx, c.cfg.PostIndex, BuildPostRankQuery(c.cfg.PostScoreField, n))
	if err != nil {
		return nil, fmt.Errorf("rank posts: %w", err)
	}
	env, err := decodeHits[postDoc](raw)
	if err != nil {
		return nil, fmt.Errorf("rank posts: %w", err)
	}
	out := make([]trend.RankedPost, 0, len(env.Hits.Hits))
	for _, h := range env.Hits.Hits {
		out = append(out, trend.RankedPost{
			PostID:          h.Source.ID,
			Score:           sortScore(h.Sort),
			Content:         h.Source.Content,
			UserName:        h.Source.UserName,
			UserProfileName: h.Source.UserProfileName,
		})
	}
	return out, nil
}

func sortScore(sort []any) float64 {
	if len(sort) == 0 {
		return 0
	}
	switch v := sort[0].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return 0
	}
}
