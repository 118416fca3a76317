package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/metrics"
	"github.com/steinsgo/personal-site/internal/models"
)

var ErrClosed = errors.New("stream dispatcher closed")

// Source reads a room's messages with created_at >= since in
// (created_at, id) order.
type Source interface {
	Since(ctx context.Context, roomID string, since time.Time, limit int) ([]models.Message, error)
}

// Sink is the transport of one subscriber. Any returned error ends the
// subscription.
type Sink interface {
	Ready() error
	Message(msg models.Message) error
	Keepalive(at time.Time) error
}

type Options struct {
	PollInterval      time.Duration
	KeepaliveInterval time.Duration
	BatchSize         int
}

func DefaultOptions() Options {
	return Options{
		PollInterval:      500 * time.Millisecond,
		KeepaliveInterval: 15 * time.Second,
		BatchSize:         200,
	}
}

type subscriber struct {
	roomID string
	cancel context.CancelFunc
}

// Dispatcher runs one polling loop per subscriber and tracks them per room
// so they can all be stopped on shutdown.
type Dispatcher struct {
	source Source
	opts   Options
	log    zerolog.Logger

	base   context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	rooms  map[string]map[*subscriber]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(source Source, opts Options, log zerolog.Logger) *Dispatcher {
	defaults := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = defaults.KeepaliveInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}

	base, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		source: source,
		opts:   opts,
		log:    log.With().Str("component", "stream").Logger(),
		base:   base,
		stop:   stop,
		rooms:  make(map[string]map[*subscriber]struct{}),
	}
}

// Serve delivers roomID's messages created at or after `after` to sink
// until ctx ends, the sink fails, or the dispatcher is closed. It returns
// nil on cancellation and the sink's error otherwise.
func (d *Dispatcher) Serve(ctx context.Context, roomID string, after time.Time, sink Sink) error {
	ctx, sub, err := d.register(ctx, roomID)
	if err != nil {
		return err
	}
	defer d.unregister(sub)

	logger := d.log.With().Str("room_id", roomID).Logger()
	logger.Debug().Time("after", after).Msg("subscriber joined")

	if err := sink.Ready(); err != nil {
		return err
	}

	cursor := NewCursor(after)
	lastKeepalive := time.Now()
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("subscriber left")
			return nil
		case <-ticker.C:
		}

		batch, err := d.source.Since(ctx, roomID, cursor.Position(), d.opts.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.StreamPollErrors.Inc()
			logger.Warn().Err(err).Msg("stream poll failed")
		}

		admitted := cursor.Admit(batch)
		for _, msg := range admitted {
			if err := sink.Message(msg); err != nil {
				return err
			}
			metrics.StreamMessagesDelivered.Inc()
		}

		if len(admitted) == 0 {
			if now := time.Now(); now.Sub(lastKeepalive) >= d.opts.KeepaliveInterval {
				if err := sink.Keepalive(now); err != nil {
					return err
				}
				lastKeepalive = now
			}
		}
	}
}

// Subscribers reports how many subscribers are attached to roomID.
func (d *Dispatcher) Subscribers(roomID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms[roomID])
}

// Close stops every subscriber and waits for their loops to return.
// Later Serve calls fail with ErrClosed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.stop()
	d.wg.Wait()
}

func (d *Dispatcher) register(ctx context.Context, roomID string) (context.Context, *subscriber, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	release := context.AfterFunc(d.base, cancel)
	sub := &subscriber{
		roomID: roomID,
		cancel: func() {
			release()
			cancel()
		},
	}

	subs, ok := d.rooms[roomID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		d.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}
	d.wg.Add(1)
	metrics.StreamSubscribers.Inc()
	return ctx, sub, nil
}

func (d *Dispatcher) unregister(sub *subscriber) {
	sub.cancel()

	d.mu.Lock()
	if subs, ok := d.rooms[sub.roomID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(d.rooms, sub.roomID)
		}
	}
	d.mu.Unlock()

	metrics.StreamSubscribers.Dec()
	d.wg.Done()
}
