package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/yungbote/vibelist-backend/internal/clients/openai"
	"github.com/yungbote/vibelist-backend/internal/domain/emotion"
	"github.com/yungbote/vibelist-backend/internal/domain/track"
	"github.com/yungbote/vibelist-backend/internal/modules/recommend"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

const (
	DefaultRecommendSize = 10
	MaxRecommendSize     = 100
)

// Recommender is the recommendation facade the service delegates to.
type Recommender interface {
	Recommend(ctx context.Context, label emotion.Label, size int) (recommend.Result, error)
}

// Recommendation is what the public surface returns. Detected is set when the
// listener's mood was inferred from a coordinate or text.
type Recommendation struct {
	Detected emotion.Label     `json:"detectedEmotion,omitempty"`
	Target   emotion.Label     `json:"targetEmotion"`
	Mode     emotion.Mode      `json:"mode"`
	Valence  *float64          `json:"valence,omitempty"`
	Energy   *float64          `json:"energy,omitempty"`
	Source   recommend.Source  `json:"source,omitempty"`
	Tracks   []track.Candidate `json:"tracks"`
}

type RecommendationService interface {
	RecommendByEmotion(ctx context.Context, label emotion.Label, mode emotion.Mode, size int) (*Recommendation, error)
	RecommendByCoordinate(ctx context.Context, valence, energy float64, mode emotion.Mode, size int) (*Recommendation, error)
	RecommendByText(ctx context.Context, text string, mode emotion.Mode, size int) (*Recommendation, error)
}

type recommendationService struct {
	log         *logger.Logger
	recommender Recommender
	analyzer    openai.MoodAnalyzer
}

// NewRecommendationService wires the facade. analyzer may be nil, in which
// case text requests fail with apierr.ErrUpstream.
func NewRecommendationService(log *logger.Logger, recommender Recommender, analyzer openai.MoodAnalyzer) RecommendationService {
	return &recommendationService{
		log:         log.With("service", "RecommendationService"),
		recommender: recommender,
		analyzer:    analyzer,
	}
}

// RecommendByEmotion treats label as the listener's current mood and targets
// the label reached by mode. On retrieval failure the returned value carries
// an empty track list alongside the error.
func (s *recommendationService) RecommendByEmotion(ctx context.Context, label emotion.Label, mode emotion.Mode, size int) (*Recommendation, error) {
	if !label.Valid() {
		return nil, fmt.Errorf("%w: unknown emotion %q", apierr.ErrInvalidInput, label)
	}
	if mode == "" {
		mode = emotion.Maintain
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", apierr.ErrInvalidInput, mode)
	}
	size, err := normalizeSize(size)
	if err != nil {
		return nil, err
	}

	target := emotion.Transition(label, mode)
	out := &Recommendation{
		Detected: label,
		Target:   target,
		Mode:     mode,
		Tracks:   []track.Candidate{},
	}
	res, err := s.recommender.Recommend(ctx, target, size)
	out.Source = res.Source
	if res.Tracks != nil {
		out.Tracks = res.Tracks
	}
	if err != nil {
		s.log.Warn("recommendation failed", "emotion", label, "target", target, "mode", mode, "error", err)
		return out, err
	}
	return out, nil
}

func (s *recommendationService) RecommendByCoordinate(ctx context.Context, valence, energy float64, mode emotion.Mode, size int) (*Recommendation, error) {
	if math.IsNaN(valence) || math.IsNaN(energy) || math.IsInf(valence, 0) || math.IsInf(energy, 0) {
		return nil, fmt.Errorf("%w: valence and energy must be finite", apierr.ErrInvalidInput)
	}
	label := emotion.Classify(valence, energy)
	out, err := s.RecommendByEmotion(ctx, label, mode, size)
	if out != nil {
		out.Valence = &valence
		out.Energy = &energy
	}
	return out, err
}

// RecommendByText asks the mood analyzer for a coordinate and continues as
// RecommendByCoordinate. Analyzer failures are returned as is, never as a
// recommendation for a guessed mood.
func (s *recommendationService) RecommendByText(ctx context.Context, text string, mode emotion.Mode, size int) (*Recommendation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", apierr.ErrInvalidInput)
	}
	if s.analyzer == nil {
		return nil, fmt.Errorf("%w: mood analyzer is not configured", apierr.ErrUpstream)
	}
	mood, err := s.analyzer.AnalyzeMood(ctx, text)
	if err != nil {
		s.log.Warn("mood analysis failed", "text", text, "error", err)
		if !errors.Is(err, apierr.ErrUpstream) && !errors.Is(err, apierr.ErrInvalidInput) {
			err = fmt.Errorf("%w: %v", apierr.ErrUpstream, err)
		}
		return nil, err
	}
	return s.RecommendByCoordinate(ctx, mood.Valence, mood.Energy, mode, size)
}

func normalizeSize(size int) (int, error) {
	switch {
	case size <= 0:
		return DefaultRecommendSize, nil
	case size > MaxRecommendSize:
		return 0, fmt.Errorf("%w: size must be at most %d", apierr.ErrInvalidInput, MaxRecommendSize)
	}
	return size, nil
}
