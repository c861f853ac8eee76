package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tinyland-inc/maibridge/pkg/bus"
	"github.com/tinyland-inc/maibridge/pkg/correlator"
	"github.com/tinyland-inc/maibridge/pkg/envelope"
	"github.com/tinyland-inc/maibridge/pkg/transport"
)

// Loop is the top-level scheduler: it pulls platform events off the queue,
// brain frames off the transport, and routes each to the right translator.
type Loop struct {
	queue      *bus.Queue
	transport  *transport.Transport
	table      *correlator.Table
	inbound    *Inbound
	outbound   *Outbound
	dispatcher *Dispatcher
	log        zerolog.Logger
}

func NewLoop(queue *bus.Queue, tr *transport.Transport, table *correlator.Table, in *Inbound, out *Outbound, d *Dispatcher, log zerolog.Logger) *Loop {
	return &Loop{
		queue:      queue,
		transport:  tr,
		table:      table,
		inbound:    in,
		outbound:   out,
		dispatcher: d,
		log:        log.With().Str("component", "bridge").Logger(),
	}
}

// Run drives the bridge until ctx is cancelled, then waits for in-flight
// command dispatches to resolve (via response or timeout) before returning.
// No error from any single interaction escapes this loop.
func (l *Loop) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		l.table.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		l.transport.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		l.consumePlatform(ctx)
	}()

	l.consumeBrain(ctx)
	wg.Wait()
	l.dispatcher.Wait()
}

func (l *Loop) consumePlatform(ctx context.Context) {
	for {
		ev, ok := l.queue.Consume(ctx)
		if !ok {
			return
		}
		l.inbound.Handle(ctx, ev)
	}
}

func (l *Loop) consumeBrain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-l.transport.Inbound():
			if !ok {
				return
			}
			l.handleFrame(ctx, frame)
		}
	}
}

// handleFrame classifies one brain frame. Frames carrying an echo are
// correlated command responses; everything else must decode as an envelope.
// A frame that decodes as neither is dropped and logged, never fatal.
func (l *Loop) handleFrame(ctx context.Context, frame []byte) {
	var probe struct {
		Echo string `json:"echo"`
	}
	if err := json.Unmarshal(frame, &probe); err == nil && probe.Echo != "" {
		l.table.Put(probe.Echo, frame)
		return
	}

	env, err := envelope.Decode(frame)
	if err != nil {
		l.log.Warn().Err(err).Msg("malformed frame from brain, dropped")
		return
	}
	l.log.Debug().RawJSON("frame", frame).Msg("received from brain")
	l.outbound.Handle(ctx, env)
}
