package controller

import (
	"github.com/gin-gonic/gin"

	"arbiter/internal/scoreboard"
	"arbiter/pkg/response"
)

// ScoreboardController handles scoreboard reads.
type ScoreboardController struct {
	repo scoreboard.Repository
}

// NewScoreboardController creates a new controller.
func NewScoreboardController(repo scoreboard.Repository) *ScoreboardController {
	return &ScoreboardController{repo: repo}
}

// GetScoreboard returns the current scoreboard of one contest. The rank order
// may trail the cells by a moment; it converges with the next accepted run.
func (h *ScoreboardController) GetScoreboard(c *gin.Context) {
	contestID := c.Param("id")
	if contestID == "" {
		response.BadRequest(c, "Invalid contest id")
		return
	}
	snap, err := h.repo.Snapshot(c.Request.Context(), contestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, snap)
}
