package controller

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"arbiter/internal/judge/model"
	"arbiter/internal/judge/repository"
	"arbiter/internal/judge/service"
	appErr "arbiter/pkg/errors"
	"arbiter/pkg/response"
)

// JudgeController handles submission requests.
type JudgeController struct {
	intake       *service.Intake
	orchestrator *service.Orchestrator
	submissions  repository.SubmissionStore
	layout       model.Layout
}

// NewJudgeController creates a new controller.
func NewJudgeController(intake *service.Intake, orchestrator *service.Orchestrator, submissions repository.SubmissionStore, layout model.Layout) *JudgeController {
	return &JudgeController{
		intake:       intake,
		orchestrator: orchestrator,
		submissions:  submissions,
		layout:       layout,
	}
}

// SubmitRequest is the submission payload.
type SubmitRequest struct {
	ContestID string `json:"contest_id" binding:"required"`
	ProblemID string `json:"problem_id" binding:"required"`
	TeamID    string `json:"team_id"`
	UserID    string `json:"user_id" binding:"required"`
	Language  string `json:"language" binding:"required"`
	Filename  string `json:"filename" binding:"required"`
	Source    string `json:"source" binding:"required"`
}

// SubmitResponse returns the accepted submission id.
type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	Verdict      string `json:"verdict"`
}

// Submit accepts a source file for judging. An empty team_id makes it a test
// run that is judged but never reaches the scoreboard.
func (h *JudgeController) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid submission payload")
		return
	}
	if filepath.Base(req.Filename) != req.Filename || req.Filename == "." {
		response.BadRequest(c, "Invalid filename")
		return
	}

	sub := &model.Submission{
		ContestID:   req.ContestID,
		ProblemID:   req.ProblemID,
		TeamID:      req.TeamID,
		UserID:      req.UserID,
		Language:    req.Language,
		Filename:    req.Filename,
		SubmittedAt: time.Now().Unix(),
	}

	// The code file must be in place before the submission is enqueued; a
	// worker may pick it up immediately.
	dataDir := h.layout.SubmissionDataDir(sub)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.JudgeSystemError, "create submission dir failed"))
		return
	}
	if err := os.WriteFile(h.layout.CodePath(sub), []byte(req.Source), 0644); err != nil {
		response.Error(c, appErr.Wrapf(err, appErr.JudgeSystemError, "write code file failed"))
		return
	}

	if err := h.intake.Submit(c.Request.Context(), sub); err != nil {
		_ = os.RemoveAll(dataDir)
		response.Error(c, err)
		return
	}
	response.Success(c, SubmitResponse{SubmissionID: sub.ID, Verdict: string(sub.Verdict)})
}

// SubmissionStatus is the status payload for one submission.
type SubmissionStatus struct {
	SubmissionID string `json:"submission_id"`
	ContestID    string `json:"contest_id"`
	ProblemID    string `json:"problem_id"`
	TeamID       string `json:"team_id,omitempty"`
	Language     string `json:"language"`
	SubmittedAt  int64  `json:"submitted_at"`
	Verdict      string `json:"verdict"`
	Diagnostic   string `json:"diagnostic,omitempty"`
}

// GetSubmission returns the status of one submission.
func (h *JudgeController) GetSubmission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	sub, err := h.submissions.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, SubmissionStatus{
		SubmissionID: sub.ID,
		ContestID:    sub.ContestID,
		ProblemID:    sub.ProblemID,
		TeamID:       sub.TeamID,
		Language:     sub.Language,
		SubmittedAt:  sub.SubmittedAt,
		Verdict:      string(sub.Verdict),
		Diagnostic:   sub.Diagnostic,
	})
}

// DeleteSubmission removes a submission record and its data dir.
func (h *JudgeController) DeleteSubmission(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	if err := h.orchestrator.RemoveSubmission(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
