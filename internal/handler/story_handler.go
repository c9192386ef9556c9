package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tinytales/internal/models"
	"tinytales/internal/service"
)

// APIError is the standard error response body.
type APIError struct {
	Message string `json:"message"`
}

// CreateStoryRequest is the story creation payload.
type CreateStoryRequest struct {
	ChildName      string   `json:"childName" binding:"required"`
	FavoriteAnimal string   `json:"favoriteAnimal"`
	Setting        string   `json:"setting" binding:"required"`
	Characters     []string `json:"characters"`
	LifeLesson     string   `json:"lifeLesson"`
	Mood           string   `json:"mood"`
}

// ChoiceRequest selects one of the current segment's branches.
type ChoiceRequest struct {
	ChoiceIndex *int `json:"choiceIndex" binding:"required"`
}

// SegmentResponse is a story page as exposed over the API. Raw model
// outputs stay server-side.
type SegmentResponse struct {
	Text            string          `json:"text"`
	Illustration    string          `json:"illustration,omitempty"`
	Choices         []models.Choice `json:"choices"`
	ContextQuestion string          `json:"contextQuestion,omitempty"`
	IsFallback      bool            `json:"isFallback,omitempty"`
}

// StoryResponse is the story aggregate as exposed over the API.
type StoryResponse struct {
	ID                  uuid.UUID               `json:"id"`
	Preferences         models.StoryPreferences `json:"preferences"`
	Segments            []SegmentResponse       `json:"segments"`
	CurrentSegmentIndex int                     `json:"currentSegmentIndex"`
	Status              models.StoryStatus      `json:"status"`
	Ending              string                  `json:"ending,omitempty"`
	CreatedAt           time.Time               `json:"createdAt"`
	UpdatedAt           time.Time               `json:"updatedAt"`
}

// StoryHandler exposes the story service over HTTP.
type StoryHandler struct {
	service *service.StoryService
	logger  *zap.Logger
}

func NewStoryHandler(svc *service.StoryService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		service: svc,
		logger:  logger.Named("StoryHandler"),
	}
}

// RegisterRoutes attaches the story endpoints under the given base path.
func (h *StoryHandler) RegisterRoutes(router *gin.Engine, basePath string) {
	api := router.Group(basePath)
	{
		api.POST("/stories", h.createStory)
		api.GET("/stories", h.listStories)
		api.GET("/stories/:id", h.getStory)
		api.POST("/stories/:id/choices", h.makeChoice)
		api.DELETE("/stories/:id", h.deleteStory)
	}
	router.GET("/healthz", h.healthz)
}

func (h *StoryHandler) createStory(c *gin.Context) {
	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	prefs := models.StoryPreferences{
		ChildName:      req.ChildName,
		FavoriteAnimal: req.FavoriteAnimal,
		Setting:        req.Setting,
		Characters:     req.Characters,
		LifeLesson:     req.LifeLesson,
		Mood:           req.Mood,
	}

	story, err := h.service.CreateStory(c.Request.Context(), prefs)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStoryResponse(story))
}

func (h *StoryHandler) getStory(c *gin.Context) {
	id, ok := h.storyID(c)
	if !ok {
		return
	}
	story, err := h.service.GetStory(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStoryResponse(story))
}

func (h *StoryHandler) listStories(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, APIError{Message: "limit must be an integer between 1 and 100"})
			return
		}
		limit = parsed
	}

	stories, err := h.service.ListStories(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	responses := make([]StoryResponse, 0, len(stories))
	for _, story := range stories {
		responses = append(responses, toStoryResponse(story))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *StoryHandler) makeChoice(c *gin.Context) {
	id, ok := h.storyID(c)
	if !ok {
		return
	}

	var req ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body: " + err.Error()})
		return
	}

	story, err := h.service.MakeChoice(c.Request.Context(), id, *req.ChoiceIndex)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStoryResponse(story))
}

func (h *StoryHandler) deleteStory(c *gin.Context) {
	id, ok := h.storyID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteStory(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *StoryHandler) storyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid story id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *StoryHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrStoryNotFound):
		c.JSON(http.StatusNotFound, APIError{Message: "story not found"})
	case errors.Is(err, models.ErrBadRequest), errors.Is(err, models.ErrInvalidChoice):
		c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrStoryEnded):
		c.JSON(http.StatusConflict, APIError{Message: "story has already ended"})
	case errors.Is(err, models.ErrAIGenerationFailed):
		h.logger.Error("Generation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, APIError{Message: "story generation is temporarily unavailable"})
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal server error"})
	}
}

func toStoryResponse(story *models.Story) StoryResponse {
	segments := make([]SegmentResponse, 0, len(story.Segments))
	for _, seg := range story.Segments {
		choices := seg.Choices
		if choices == nil {
			choices = []models.Choice{}
		}
		segments = append(segments, SegmentResponse{
			Text:            seg.Text,
			Illustration:    seg.Illustration,
			Choices:         choices,
			ContextQuestion: seg.ContextQuestion,
			IsFallback:      seg.IsFallback,
		})
	}
	return StoryResponse{
		ID:                  story.ID,
		Preferences:         story.Preferences,
		Segments:            segments,
		CurrentSegmentIndex: story.CurrentSegmentIndex,
		Status:              story.Status,
		Ending:              story.Ending,
		CreatedAt:           story.CreatedAt,
		UpdatedAt:           story.UpdatedAt,
	}
}
