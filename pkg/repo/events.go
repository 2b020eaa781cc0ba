package repo

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Event is one commit notice from the store's event stream. The site
// server uses these to drop cached resolved sites for tenants whose repos
// changed.
type Event struct {
	// Tenant is the DID whose repo the commit touched.
	Tenant string `json:"repo"`
	// Commit identifies the commit on the store side.
	Commit string `json:"commit"`
	// Collections lists the collection identifiers the commit touched.
	Collections []string `json:"collections,omitempty"`
	// Time is the store-side commit time.
	Time time.Time `json:"time"`
}

// EventHandler receives events in stream order. Handlers must not block.
type EventHandler func(Event)

// Subscriber maintains a WebSocket subscription to the store's event
// stream, redialing after failures. Events that arrive while the
// subscription is down are simply missed; the cache this feeds is an
// optimization, not a source of truth.
type Subscriber struct {
	// URL is the stream endpoint, e.g. "wss://pds.example.com/xrpc/events".
	URL string
	// Handler receives each decoded event.
	Handler EventHandler
	// RedialInterval is how long to wait before redialing after a failed
	// connection. Zero means 5 seconds.
	RedialInterval time.Duration

	Log zerolog.Logger
}

// Run dials the stream and delivers events until ctx is cancelled. Dial
// and read failures are logged and retried; Run only returns on context
// cancellation.
func (s *Subscriber) Run(ctx context.Context) error {
	interval := s.RedialInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for {
		if err := s.readLoop(ctx); err != nil {
			s.Log.Warn().Err(err).Str("url", s.URL).Msg("event stream disconnected")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (s *Subscriber) readLoop(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadJSON when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s.Log.Debug().Str("url", s.URL).Msg("event stream connected")

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if s.Handler != nil {
			s.Handler(ev)
		}
	}
}
