package progress

import (
	"context"

	"github.com/desertthunder/evalwatch/internal/stomp"
)

// Transport dials sessions to the progress broker.
type Transport interface {
	Dial(ctx context.Context) (Session, error)
}

// Session is an established broker connection.
type Session interface {
	Subscribe(destination string, handler func(body []byte)) (Subscription, error)
	// Done is closed when the session ends for any reason.
	Done() <-chan struct{}
	Close() error
}

// Subscription is an active subscription handle.
type Subscription interface {
	Unsubscribe() error
}

// StompTransport adapts [stomp.Client] to [Transport].
type StompTransport struct {
	client *stomp.Client
}

func NewStompTransport(client *stomp.Client) *StompTransport {
	return &StompTransport{client: client}
}

func (t *StompTransport) Dial(ctx context.Context) (Session, error) {
	s, err := t.client.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return &stompSession{s}, nil
}

type stompSession struct {
	*stomp.Session
}

func (s *stompSession) Subscribe(destination string, handler func(body []byte)) (Subscription, error) {
	sub, err := s.Session.Subscribe(destination, handler)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
