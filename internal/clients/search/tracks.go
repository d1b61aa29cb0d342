package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/yungbote/vibelist-backend/internal/domain/track"
)

const popularityField = "trackMetrics.popularity"

// FieldRange is a closed interval filter on one numeric document field.
type FieldRange struct {
	Field string
	Min   float64
	Max   float64
}

// TrackQuery selects tracks whose features all fall inside Ranges and whose
// popularity is at least MinPopularity, ordered by a random score derived
// from Seed. The same seed over the same index yields the same order.
type TrackQuery struct {
	Ranges        []FieldRange
	MinPopularity int
	Seed          int64
	Limit         int
}

// trackDoc mirrors a document in the audio feature index. Features are
// pointers so an absent field is distinguishable from a zero value.
type trackDoc struct {
	SpotifyID        string   `json:"spotifyId"`
	DurationMs       int      `json:"durationMs"`
	Danceability     *float64 `json:"danceability"`
	Energy           *float64 `json:"energy"`
	Loudness         *float64 `json:"loudness"`
	Speechiness      *float64 `json:"speechiness"`
	Acousticness     *float64 `json:"acousticness"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Liveness         *float64 `json:"liveness"`
	Valence          *float64 `json:"valence"`
	Tempo            *float64 `json:"tempo"`
	TrackMetrics     struct {
		Title      string `json:"title"`
		Artist     string `json:"artist"`
		Album      string `json:"album"`
		Popularity int    `json:"popularity"`
		Explicit   bool   `json:"explicit"`
		ImageURL   string `json:"imageUrl"`
	} `json:"trackMetrics"`
}

// candidate converts the document, failing on the first missing feature.
func (d trackDoc) candidate() (track.Candidate, error) {
	features := []struct {
		name string
		v    *float64
	}{
		{track.FeatureDanceability, d.Danceability},
		{track.FeatureEnergy, d.Energy},
		{track.FeatureLoudness, d.Loudness},
		{track.FeatureSpeechiness, d.Speechiness},
		{track.FeatureAcousticness, d.Acousticness},
		{track.FeatureInstrumentalness, d.Instrumentalness},
		{track.FeatureLiveness, d.Liveness},
		{track.FeatureValence, d.Valence},
		{track.FeatureTempo, d.Tempo},
	}
	for _, f := range features {
		if f.v == nil {
			return track.Candidate{}, fmt.Errorf("missing %s", f.name)
		}
	}
	return track.Candidate{
		SpotifyID:        d.SpotifyID,
		Title:            d.TrackMetrics.Title,
		Artist:           d.TrackMetrics.Artist,
		Album:            d.TrackMetrics.Album,
		ImageURL:         d.TrackMetrics.ImageURL,
		DurationMs:       d.DurationMs,
		Explicit:         d.TrackMetrics.Explicit,
		Popularity:       d.TrackMetrics.Popularity,
		Danceability:     *d.Danceability,
		Energy:           *d.Energy,
		Loudness:         *d.Loudness,
		Speechiness:      *d.Speechiness,
		Acousticness:     *d.Acousticness,
		Instrumentalness: *d.Instrumentalness,
		Liveness:         *d.Liveness,
		Valence:          *d.Valence,
		Tempo:            *d.Tempo,
	}, nil
}

// BuildTrackQuery renders q as an Elasticsearch request body: a bool/must
// conjunction of range clauses wrapped in a function_score whose only
// function is a seeded random_score.
func BuildTrackQuery(q TrackQuery) map[string]any {
	must := make([]any, 0, len(q.Ranges)+1)
	for _, r := range q.Ranges {
		must = append(must, map[string]any{
			"range": map[string]any{
				r.Field: map[string]any{"gte": r.Min, "lte": r.Max},
			},
		})
	}
	must = append(must, map[string]any{
		"range": map[string]any{
			popularityField: map[string]any{"gte": q.MinPopularity},
		},
	})
	return map[string]any{
		"size":             q.Limit,
		"track_total_hits": false,
		"query": map[string]any{
			"function_score": map[string]any{
				"query": map[string]any{"bool": map[string]any{"must": must}},
				"functions": []any{
					map[string]any{
						"random_score": map[string]any{
							"seed":  strconv.FormatInt(q.Seed, 10),
							"field": "_seq_no",
						},
					},
				},
				"boost_mode": "replace",
			},
		},
		"sort": []any{
			map[string]any{"_score": map[string]any{"order": "desc"}},
		},
	}
}

// SearchTracks executes q against the track index. A hit without an id or
// with any audio feature missing makes the whole response malformed. Errors
// are returned unwrapped; callers decide how to classify them.
func (c *Client) SearchTracks(ctx context.Context, q TrackQuery) ([]track.Candidate, error) {
	if q.Limit <= 0 {
		return nil, nil
	}
	raw, err := c.search(ctx, c.cfg.TrackIndex, BuildTrackQuery(q))
	if err != nil {
		return nil, err
	}
	env, err := decodeHits[trackDoc](raw)
	if err != nil {
		return nil, err
	}
	out := make([]track.Candidate, 0, len(env.Hits.Hits))
	for _, h := range env.Hits.Hits {
		if h.Source.SpotifyID == "" {
			return nil, fmt.Errorf("%w: hit %s has no spotifyId", errMalformed, h.ID)
		}
		c, err := h.Source.candidate()
		if err != nil {
			return nil, fmt.Errorf("%w: hit %s: %v", errMalformed, h.ID, err)
		}
		out = append(out, c)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
