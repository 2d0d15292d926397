package service

import (
	"context"
	"errors"

	"github.com/Africahassucceed/celebsbridgenew/internal/auth"
	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"github.com/Africahassucceed/celebsbridgenew/internal/notify"
)

type edge struct {
	from, to model.Status
}

// guard decides whether actor may take an edge for req.
type guard func(actor auth.Principal, req *model.ShoutoutRequest) bool

func adminOnly(actor auth.Principal, _ *model.ShoutoutRequest) bool { return actor.IsAdmin() }

func adminOrRequester(actor auth.Principal, req *model.ShoutoutRequest) bool {
	return actor.IsAdmin() || (actor.ID != "" && actor.ID == req.RequesterID)
}

// transitions is the complete lifecycle graph; any pair missing here is illegal.
var transitions = map[edge]guard{
	{model.StatusPending, model.StatusApproved}:   adminOnly,
	{model.StatusPending, model.StatusCancelled}:  adminOrRequester,
	{model.StatusApproved, model.StatusCompleted}: adminOnly,
	{model.StatusApproved, model.StatusCancelled}: adminOnly,
}

// CanTransition reports whether from→to is an edge of the lifecycle graph.
func CanTransition(from, to model.Status) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// checkTransition validates legality first so an illegal request always names both states,
// then the actor's right to take the edge.
func checkTransition(req *model.ShoutoutRequest, target model.Status, actor auth.Principal) error {
	allowed, ok := transitions[edge{req.Status, target}]
	if !ok {
		return errs.InvalidTransition(req.Status, target)
	}
	if !allowed(actor, req) {
		return errs.Forbidden("actor may not move request from " + req.Status.String() + " to " + target.String())
	}
	return nil
}

// Transition applies one status change with a single compare-and-swap attempt.
// A lost race surfaces as a conflict; callers decide whether to retry.
func (s *ShoutoutService) Transition(ctx context.Context, id string, target model.Status, actor auth.Principal) (*model.ShoutoutRequest, error) {
	if !target.IsValid() {
		return nil, errs.Validation("status", "unknown status "+target.String())
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	req, err := s.repo.GetRequest(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(req, target, actor); err != nil {
		s.opts.Metrics.ObserveTransition(target.String(), "rejected")
		return nil, err
	}
	if target == model.StatusCompleted {
		// completion only happens together with the video attachment
		s.opts.Metrics.ObserveTransition(target.String(), "rejected")
		return nil, errs.Wrap(errs.InvalidTransition(req.Status, target), "completion requires an attached video")
	}

	updated, err := s.repo.CompareAndSwapStatus(ctx, nil, id, req.Version, target)
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			s.opts.Metrics.ObserveConflict("transition")
			s.opts.Metrics.ObserveTransition(target.String(), "conflict")
		}
		return nil, err
	}

	s.opts.Metrics.ObserveTransition(target.String(), "ok")
	s.log.Infow("request transitioned",
		"request_id", id, "from", req.Status, "to", target, "actor_id", actor.ID, "version", updated.Version)
	s.emit(ctx, eventFor(updated, actor, notify.EventFor(target)))
	return updated, nil
}

// TransitionWithRetry re-reads and retries Transition after retryable failures,
// up to the configured attempts with linear backoff.
func (s *ShoutoutService) TransitionWithRetry(ctx context.Context, id string, target model.Status, actor auth.Principal) (*model.ShoutoutRequest, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		req, err := s.Transition(ctx, id, target, actor)
		if err == nil {
			return req, nil
		}
		if !errs.Retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == s.opts.MaxAttempts {
			break
		}
		s.log.Warnw("retrying transition", "request_id", id, "to", target, "attempt", attempt, "error", err)
		if err := s.backoff(ctx, attempt); err != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
