package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/vibelist-backend/internal/domain/emotion"
	"github.com/yungbote/vibelist-backend/internal/http/response"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
	"github.com/yungbote/vibelist-backend/internal/services"
)

type RecommendHandler struct {
	log     *logger.Logger
	service services.RecommendationService
}

func NewRecommendHandler(log *logger.Logger, service services.RecommendationService) *RecommendHandler {
	return &RecommendHandler{
		log:     log.With("handler", "RecommendHandler"),
		service: service,
	}
}

// RecommendRequest selects the listener's mood by exactly one of emotion,
// a valence/energy pair, or free text.
type RecommendRequest struct {
	Emotion string   `json:"emotion"`
	Valence *float64 `json:"valence"`
	Energy  *float64 `json:"energy"`
	Text    string   `json:"text"`
	Mode    string   `json:"mode"`
	Size    int      `json:"size"`
}

type recommendFailure struct {
	*services.Recommendation
	Error response.APIError `json:"error"`
}

func (h *RecommendHandler) Recommend(c *gin.Context) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return
	}
	mode, err := emotion.ParseMode(req.Mode)
	if err != nil {
		response.RespondAPIError(c, fmt.Errorf("%w: %v", apierr.ErrInvalidInput, err))
		return
	}

	ctx := c.Request.Context()
	var out *services.Recommendation
	switch kind, kErr := req.kind(); {
	case kErr != nil:
		response.RespondAPIError(c, kErr)
		return
	case kind == "emotion":
		label, pErr := emotion.Parse(req.Emotion)
		if pErr != nil {
			response.RespondAPIError(c, fmt.Errorf("%w: %v", apierr.ErrInvalidInput, pErr))
			return
		}
		out, err = h.service.RecommendByEmotion(ctx, label, mode, req.Size)
	case kind == "coordinate":
		out, err = h.service.RecommendByCoordinate(ctx, *req.Valence, *req.Energy, mode, req.Size)
	default:
		out, err = h.service.RecommendByText(ctx, req.Text, mode, req.Size)
	}

	if err != nil {
		if out != nil && errors.Is(err, apierr.ErrRetrievalFailure) {
			ae := response.MarkAPIError(c, err)
			c.JSON(ae.Status, recommendFailure{
				Recommendation: out,
				Error:          response.APIError{Message: ae.Error(), Code: ae.Code},
			})
			return
		}
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func (r RecommendRequest) kind() (string, error) {
	var kinds []string
	if strings.TrimSpace(r.Emotion) != "" {
		kinds = append(kinds, "emotion")
	}
	if r.Valence != nil || r.Energy != nil {
		if r.Valence == nil || r.Energy == nil {
			return "", fmt.Errorf("%w: valence and energy must be given together", apierr.ErrInvalidInput)
		}
		kinds = append(kinds, "coordinate")
	}
	if strings.TrimSpace(r.Text) != "" {
		kinds = append(kinds, "text")
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("%w: one of emotion, valence+energy or text is required", apierr.ErrInvalidInput)
	case 1:
		return kinds[0], nil
	default:
		return "", fmt.Errorf("%w: only one of emotion, valence+energy or text may be given", apierr.ErrInvalidInput)
	}
}
