package worker

import (
	"context"

	"sessionq/internal/queue"
)

// Source is the queue surface a consumer needs.
type Source interface {
	Claim(ctx context.Context, consumerID string) (queue.Item, bool, error)
	Finalize(ctx context.Context, consumerID, itemID string) error
	Submit(ctx context.Context, item queue.Item) error
}

// Handler processes one claimed item.
type Handler interface {
	Handle(ctx context.Context, item queue.Item) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, item queue.Item) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, item queue.Item) error {
	return f(ctx, item)
}

type localSource struct {
	q *queue.Queue
}

// Local adapts an in-process queue to Source. Its methods never fail.
func Local(q *queue.Queue) Source {
	return localSource{q: q}
}

func (s localSource) Claim(_ context.Context, consumerID string) (queue.Item, bool, error) {
	item, ok := s.q.Claim(consumerID)
	return item, ok, nil
}

func (s localSource) Finalize(_ context.Context, consumerID, itemID string) error {
	s.q.Finalize(consumerID, itemID)
	return nil
}

func (s localSource) Submit(_ context.Context, item queue.Item) error {
	s.q.Submit(item)
	return nil
}
