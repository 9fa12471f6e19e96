package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"arbiter/internal/common/mq"
	"arbiter/internal/judge/model"
	appErr "arbiter/pkg/errors"
)

// VerdictEventPublisher announces persisted verdicts for downstream
// consumers (notifications, analytics). A nil publisher disables publishing.
type VerdictEventPublisher interface {
	PublishVerdict(ctx context.Context, s *model.Submission) error
}

// VerdictEvent is the wire payload for one judged submission.
type VerdictEvent struct {
	SubmissionID string `json:"submission_id"`
	ContestID    string `json:"contest_id"`
	ProblemID    string `json:"problem_id"`
	TeamID       string `json:"team_id,omitempty"`
	Verdict      string `json:"verdict"`
	Diagnostic   string `json:"diagnostic,omitempty"`
	JudgedAt     int64  `json:"judged_at"`
}

// MQVerdictEventPublisher publishes verdict events to a message queue topic.
type MQVerdictEventPublisher struct {
	queue mq.Publisher
	topic string
}

// NewMQVerdictEventPublisher creates a queue-backed verdict publisher.
func NewMQVerdictEventPublisher(queue mq.Publisher, topic string) *MQVerdictEventPublisher {
	return &MQVerdictEventPublisher{queue: queue, topic: topic}
}

// PublishVerdict publishes one verdict event keyed by submission id.
func (p *MQVerdictEventPublisher) PublishVerdict(ctx context.Context, s *model.Submission) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("verdict publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("verdict topic is required")
	}
	if s == nil || s.ID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	event := VerdictEvent{
		SubmissionID: s.ID,
		ContestID:    s.ContestID,
		ProblemID:    s.ProblemID,
		TeamID:       s.TeamID,
		Verdict:      string(s.Verdict),
		Diagnostic:   s.Diagnostic,
		JudgedAt:     time.Now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal verdict event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = s.ID
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish verdict event failed")
	}
	return nil
}
