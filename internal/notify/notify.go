// Package notify carries lifecycle events to downstream consumers through the outbox table.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const aggregateRequest = "ShoutoutRequest"

// Event types.
const (
	RequestCreated   = "RequestCreated"
	RequestApproved  = "RequestApproved"
	RequestCompleted = "RequestCompleted"
	RequestCancelled = "RequestCancelled"
)

// Event describes a change to one request.
type Event struct {
	Type        string       `json:"type"`
	RequestID   string       `json:"request_id"`
	RequesterID string       `json:"requester_id"`
	CelebrityID string       `json:"celebrity_id"`
	Status      model.Status `json:"status"`
	ActorID     string       `json:"actor_id"`
	Version     uint64       `json:"version"`
	At          time.Time    `json:"at"`
}

// EventFor maps a status reached by a request to its event type.
func EventFor(s model.Status) string {
	switch s {
	case model.StatusApproved:
		return RequestApproved
	case model.StatusCompleted:
		return RequestCompleted
	case model.StatusCancelled:
		return RequestCancelled
	default:
		return RequestCreated
	}
}

type outboxWriter interface {
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
}

// OutboxEmitter records events for the relay. Emit never fails the caller.
type OutboxEmitter struct {
	repo outboxWriter
	log  *zap.SugaredLogger
}

func NewOutboxEmitter(repo outboxWriter, log *zap.SugaredLogger) *OutboxEmitter {
	return &OutboxEmitter{repo: repo, log: log}
}

func (e *OutboxEmitter) Emit(ctx context.Context, evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		e.log.Warnw("encode event", "type", evt.Type, "request_id", evt.RequestID, "error", err)
		return
	}
	row := &model.OutboxEvent{
		Aggregate:   aggregateRequest,
		AggregateID: evt.RequestID,
		EventType:   evt.Type,
		Payload:     payload,
	}
	if err := e.repo.CreateOutboxEvent(ctx, nil, row); err != nil {
		e.log.Warnw("emit event", "type", evt.Type, "request_id", evt.RequestID, "error", err)
	}
}
