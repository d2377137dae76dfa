package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/service"
)

const defaultHighScoreLimit = 10

type ScoreController struct {
	scores service.ScoreInteractor
}

func NewScoreController(scores service.ScoreInteractor) *ScoreController {
	return &ScoreController{scores: scores}
}

// SaveScore records a finished performance. When the client sends no score
// the server rates the performance itself.
func (c *ScoreController) SaveScore(ctx *gin.Context) {
	type SaveScoreRequest struct {
		UserID    string `json:"userId" binding:"required"`
		UserName  string `json:"userName" binding:"required"`
		SongTitle string `json:"songTitle" binding:"required"`
		Score     int    `json:"score"`
	}
	var req SaveScoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	value := req.Score
	if value == 0 {
		value = c.scores.GeneratePerformanceScore()
	}

	score := &domain.Score{
		RoomID:    ctx.Param("roomID"),
		UserID:    req.UserID,
		UserName:  req.UserName,
		SongTitle: req.SongTitle,
		Score:     value,
		Timestamp: time.Now().UTC(),
	}
	if err := c.scores.SaveScore(ctx.Request.Context(), score); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"score": score})
}

func (c *ScoreController) RoomHighScores(ctx *gin.Context) {
	scores, err := c.scores.RoomHighScores(ctx.Request.Context(), ctx.Param("roomID"), limitParam(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"scores": scores})
}

func (c *ScoreController) UserHighScores(ctx *gin.Context) {
	scores, err := c.scores.UserHighScores(ctx.Request.Context(), ctx.Param("roomID"), ctx.Param("userID"), limitParam(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"scores": scores})
}

func limitParam(ctx *gin.Context) int {
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", ""))
	if err != nil || limit <= 0 {
		return defaultHighScoreLimit
	}
	return limit
}
