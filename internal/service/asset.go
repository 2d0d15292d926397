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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssetHandle is a time-bounded download URL for a delivered video.
type AssetHandle struct {
	RequestID string    `json:"request_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttachAndComplete records the delivered video and completes the request as one unit.
// Losing a race against a concurrent transition is retried internally; a cancellation
// that wins the race is then reported as an invalid transition.
func (s *ShoutoutService) AttachAndComplete(ctx context.Context, requestID, videoRef string, actor auth.Principal) (*model.ShoutoutVideo, error) {
	if !actor.IsAdmin() {
		return nil, errs.Forbidden("only an admin may deliver a video")
	}
	videoRef = strings.TrimSpace(videoRef)
	if videoRef == "" {
		return nil, errs.Validation("video_ref", "is required")
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		video, req, err := s.attachOnce(ctx, requestID, videoRef, actor)
		if err == nil {
			s.opts.Metrics.ObserveTransition(model.StatusCompleted.String(), "ok")
			s.log.Infow("request completed",
				"request_id", requestID, "video_id", video.ID, "actor_id", actor.ID, "version", req.Version)
			s.emit(ctx, eventFor(req, actor, notify.RequestCompleted))
			return video, nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			if errors.Is(err, errs.ErrInvalidTransition) {
				s.opts.Metrics.ObserveTransition(model.StatusCompleted.String(), "rejected")
			}
			return nil, err
		}
		lastErr = err
		s.opts.Metrics.ObserveConflict("attach_and_complete")
		if attempt == s.opts.MaxAttempts {
			break
		}
		s.log.Warnw("retrying attach", "request_id", requestID, "attempt", attempt, "error", err)
		if err := s.backoff(ctx, attempt); err != nil {
			return nil, lastErr
		}
	}
	s.opts.Metrics.ObserveTransition(model.StatusCompleted.String(), "conflict")
	return nil, lastErr
}

func (s *ShoutoutService) attachOnce(ctx context.Context, requestID, videoRef string, actor auth.Principal) (*model.ShoutoutVideo, *model.ShoutoutRequest, error) {
	req, err := s.repo.GetRequest(ctx, nil, requestID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkTransition(req, model.StatusCompleted, actor); err != nil {
		return nil, nil, err
	}
	// looked up outside the transaction
	price, err := s.completionPrice(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	video := &model.ShoutoutVideo{
		ID:        uuid.NewString(),
		RequestID: requestID,
		VideoRef:  videoRef,
		CreatedAt: s.now(),
	}
	var completed *model.ShoutoutRequest
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		// status first so a lost race never reaches the video insert
		updated, err := s.repo.CompleteRequest(ctx, tx, requestID, req.Version, price)
		if err != nil {
			return err
		}
		if err := s.repo.CreateVideo(ctx, tx, video); err != nil {
			return err
		}
		completed = updated
		return nil
	})
	if err != nil {
		return nil, nil, errs.Storage("attach and complete", err)
	}
	return video, completed, nil
}

// completionPrice captures the celebrity's current price, falling back to the quote
// when the catalog no longer lists the celebrity.
func (s *ShoutoutService) completionPrice(ctx context.Context, req *model.ShoutoutRequest) (decimal.Decimal, error) {
	celeb, err := s.catalog.Lookup(ctx, req.CelebrityID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Warnw("celebrity missing from catalog, using quoted price",
				"request_id", req.ID, "celebrity_id", req.CelebrityID)
			return req.QuotedPrice, nil
		}
		return decimal.Zero, err
	}
	return celeb.Price, nil
}

// ResolveDownload issues a download handle for the video of a completed request.
func (s *ShoutoutService) ResolveDownload(ctx context.Context, requestID string, actor auth.Principal) (AssetHandle, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	req, err := s.repo.GetRequest(ctx, nil, requestID)
	if err != nil {
		return AssetHandle{}, err
	}
	if !canView(actor, req) {
		return AssetHandle{}, errs.Forbidden("only the requester or an admin may download this video")
	}
	video, err := s.repo.GetVideoByRequest(ctx, nil, requestID)
	if err != nil {
		return AssetHandle{}, err
	}
	url, exp, err := s.blobs.IssueHandle(ctx, video.VideoRef, s.opts.HandleTTL)
	if err != nil {
		return AssetHandle{}, errs.Storage("issue download handle", err)
	}
	return AssetHandle{RequestID: requestID, URL: url, ExpiresAt: exp}, nil
}
