package ui

import (
	"context"
	"sync"

	"github.com/wagoodman/go-partybus"
	"github.com/wagoodman/jotframe/pkg/frame"

	vulnixEvent "github.com/flyingcircus/vulnix/vulnix/event"
)

type Handler struct {
}

func NewHandler() *Handler {
	return &Handler{}
}

func (r *Handler) RespondsTo(event partybus.Event) bool {
	switch event.Type {
	case vulnixEvent.VulnerabilityScanningStarted,
		vulnixEvent.UpdateVulnerabilityFeed:
		return true
	default:
		return false
	}
}

func (r *Handler) Handle(ctx context.Context, fr *frame.Frame, event partybus.Event, wg *sync.WaitGroup) error {
	switch event.Type {
	case vulnixEvent.VulnerabilityScanningStarted:
		return r.VulnerabilityScanningStartedHandler(ctx, fr, event, wg)
	case vulnixEvent.UpdateVulnerabilityFeed:
		return r.UpdateVulnerabilityFeedHandler(ctx, fr, event, wg)
	}
	return nil
}
