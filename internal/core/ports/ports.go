package ports

import (
	"context"

	"drunc.client/internal/core/domain"
)

// BroadcastReceiver delivers controller notifications in the background.
// Stop must return only after the delivery loop has exited; calling it
// more than once is allowed.
type BroadcastReceiver interface {
	Address() string
	Stop() error
}

// BroadcastHandler consumes one delivered notification.
type BroadcastHandler func(msg domain.BroadcastMessage)

// SegmentResolver turns a segment database reference into the tree rooted at session.
type SegmentResolver interface {
	Resolve(ctx context.Context, reference, session string) (*domain.SessionTree, error)
}
