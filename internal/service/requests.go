package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/auth"
	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"github.com/Africahassucceed/celebsbridgenew/internal/notify"
	"github.com/google/uuid"
)

// ListFilter narrows ListRequests. A nil Status lists every status.
type ListFilter struct {
	Status *model.Status
}

// CreateRequest validates a user submission and stores it as pending.
func (s *ShoutoutService) CreateRequest(ctx context.Context, actor auth.Principal, draft model.Draft) (string, error) {
	if actor.ID == "" {
		return "", errs.Forbidden("anonymous caller")
	}
	draft.RequesterID = actor.ID
	draft.Message = strings.TrimSpace(draft.Message)
	draft.Occasion = strings.TrimSpace(draft.Occasion)
	draft.CelebrityID = strings.TrimSpace(draft.CelebrityID)

	now := s.now()
	if err := validateDraft(draft, now); err != nil {
		return "", err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	celeb, err := s.catalog.Lookup(ctx, draft.CelebrityID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", errs.Validation("celebrity_id", "does not reference an active celebrity")
		}
		return "", err
	}
	if !celeb.Active {
		return "", errs.Validation("celebrity_id", "does not reference an active celebrity")
	}

	req := &model.ShoutoutRequest{
		ID:            uuid.NewString(),
		RequesterID:   draft.RequesterID,
		CelebrityID:   draft.CelebrityID,
		Message:       draft.Message,
		Occasion:      draft.Occasion,
		DeliveryDate:  dateOnly(draft.DeliveryDate),
		ReferenceFile: draft.ReferenceFile,
		Status:        model.StatusPending,
		QuotedPrice:   celeb.Price,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateRequest(ctx, nil, req); err != nil {
		return "", err
	}

	s.log.Infow("request created", "request_id", req.ID, "requester_id", req.RequesterID, "celebrity_id", req.CelebrityID)
	s.emit(ctx, eventFor(req, actor, notify.RequestCreated))
	return req.ID, nil
}

func validateDraft(d model.Draft, now time.Time) error {
	switch {
	case d.CelebrityID == "":
		return errs.Validation("celebrity_id", "is required")
	case d.Message == "":
		return errs.Validation("message", "is required")
	case d.Occasion == "":
		return errs.Validation("occasion", "is required")
	case d.DeliveryDate.IsZero():
		return errs.Validation("delivery_date", "is required")
	case dateOnly(d.DeliveryDate).Before(dateOnly(now)):
		return errs.Validation("delivery_date", "must not be before the submission date")
	}
	if d.ReferenceFile == nil {
		return nil
	}
	ref := strings.TrimSpace(*d.ReferenceFile)
	if ref == "" {
		return errs.Validation("reference_file", "must not be blank when given")
	}
	// uploads land under "<requester id>/"
	if !strings.HasPrefix(ref, d.RequesterID+"/") || strings.Contains(ref, "..") {
		return errs.Validation("reference_file", "must reference one of your own uploads")
	}
	return nil
}

// GetRequest returns one request with its video, if any, to the requester or an admin.
func (s *ShoutoutService) GetRequest(ctx context.Context, id string, actor auth.Principal) (*model.ShoutoutRequest, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	req, err := s.repo.GetRequest(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, req) {
		return nil, errs.Forbidden("only the requester or an admin may view this request")
	}
	if req.Status == model.StatusCompleted {
		v, err := s.repo.GetVideoByRequest(ctx, nil, id)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		req.Video = v
	}
	return req, nil
}

// ListRequests returns every request for admins and the caller's own requests otherwise, newest first.
func (s *ShoutoutService) ListRequests(ctx context.Context, actor auth.Principal, f ListFilter) ([]model.ShoutoutRequest, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if actor.IsAdmin() {
		return s.repo.ListAll(ctx, f.Status)
	}
	reqs, err := s.repo.ListByRequester(ctx, actor.ID)
	if err != nil || f.Status == nil {
		return reqs, err
	}
	out := reqs[:0]
	for _, r := range reqs {
		if r.Status == *f.Status {
			out = append(out, r)
		}
	}
	return out, nil
}

func canView(p auth.Principal, req *model.ShoutoutRequest) bool {
	return p.IsAdmin() || (p.ID != "" && p.ID == req.RequesterID)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func eventFor(req *model.ShoutoutRequest, actor auth.Principal, typ string) notify.Event {
	return notify.Event{
		Type:        typ,
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		CelebrityID: req.CelebrityID,
		Status:      req.Status,
		ActorID:     actor.ID,
		Version:     req.Version,
		At:          req.UpdatedAt,
	}
}
