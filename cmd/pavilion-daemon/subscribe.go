// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/pavilion-club/pavilion/chat"
	"github.com/pavilion-club/pavilion/lib/codec"
	"github.com/pavilion-club/pavilion/navigate"
	"github.com/pavilion-club/pavilion/push"
)

// subscriber is one connected subscribe stream. The channel receives
// frames from the broadcast hooks; the done channel is closed by the
// stream handler when the connection ends, and the next broadcast
// removes the subscriber from the registry.
type subscriber struct {
	channel chan coreFrame
	resync  atomic.Bool
	done    <-chan struct{}
}

// subscriberChannelSize is the buffer for each subscriber's frame
// channel. Frames are small and transitions are paced by network round
// trips, so this absorbs any realistic burst. On overflow the frame is
// dropped and the subscriber is marked for a snapshot resync.
const subscriberChannelSize = 64

// heartbeatInterval is the time between heartbeat frames on an
// otherwise idle stream. A client should consider the connection dead
// when no frame of any type arrives within twice this interval.
const heartbeatInterval = 30 * time.Second

// frameWriteTimeout is the per-frame write deadline. One stalled
// subscriber must not pin its handler goroutine past shutdown.
const frameWriteTimeout = 10 * time.Second

// coreFrame is a single CBOR value written on the subscribe stream.
// The Type field discriminates frame semantics:
//
//   - "state": a chat session transition (State, Reason, Error)
//   - "navigate": the shell must navigate to Target
//   - "banner": a foreground notification to present (Payload, and
//     Target when the payload is routable)
//   - "registration": results of a push registration round
//   - "heartbeat": connection liveness probe (no payload)
//
// CLI and TUI consumers keep a mirror of this struct; fields are
// additive only.
type coreFrame struct {
	Type string `cbor:"type"`

	State  string `cbor:"state,omitempty"`
	Reason string `cbor:"reason,omitempty"`
	Error  string `cbor:"error,omitempty"`

	Target  *navigate.Target  `cbor:"target,omitempty"`
	Payload *navigate.Payload `cbor:"payload,omitempty"`

	Registrations []registrationStatus `cbor:"registrations,omitempty"`
}

// broadcast dispatches a frame to every subscriber. Sends are
// non-blocking: a full channel drops the frame and marks the
// subscriber for resync, so a stalled consumer never blocks the
// manager observer or the router. Subscribers whose stream ended are
// removed along the way.
func (core *Core) broadcast(frame coreFrame) {
	core.mu.Lock()
	defer core.mu.Unlock()

	subscribers := core.subscribers
	// Iterate in reverse so removals don't shift unvisited elements.
	for i := len(subscribers) - 1; i >= 0; i-- {
		sub := subscribers[i]

		select {
		case <-sub.done:
			subscribers = append(subscribers[:i], subscribers[i+1:]...)
			continue
		default:
		}

		select {
		case sub.channel <- frame:
		default:
			sub.resync.Store(true)
		}
	}
	core.subscribers = subscribers
}

// broadcastState fans a session transition out to subscribers. It runs
// inside the manager's state observer, under the manager's lock, so it
// must not call back into the manager.
func (core *Core) broadcastState(change chat.StateChange) {
	frame := coreFrame{
		Type:   "state",
		State:  string(change.Current),
		Reason: change.Reason,
	}
	if change.Err != nil {
		frame.Error = change.Err.Error()
	}
	core.broadcast(frame)
}

// broadcastRegistrations fans a registration round's results out to
// subscribers. The orchestrator calls it after every evaluation round,
// outside its lock.
func (core *Core) broadcastRegistrations(results []push.Result) {
	core.broadcast(coreFrame{
		Type:          "registration",
		Registrations: registrationResults(results),
	})
}

// addSubscriber registers a subscriber for broadcast frames.
func (core *Core) addSubscriber(sub *subscriber) {
	core.mu.Lock()
	core.subscribers = append(core.subscribers, sub)
	core.mu.Unlock()
}

// removeSubscriber removes a subscriber from the registry.
func (core *Core) removeSubscriber(sub *subscriber) {
	core.mu.Lock()
	defer core.mu.Unlock()
	for i, existing := range core.subscribers {
		if existing == sub {
			core.subscribers = append(core.subscribers[:i], core.subscribers[i+1:]...)
			return
		}
	}
}

// frameWriter writes CBOR frames with a per-frame write deadline.
type frameWriter struct {
	conn    net.Conn
	encoder *codec.Encoder
}

func newFrameWriter(conn net.Conn) *frameWriter {
	return &frameWriter{conn: conn, encoder: codec.NewEncoder(conn)}
}

func (w *frameWriter) write(frame coreFrame) error {
	w.conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
	return w.encoder.Encode(frame)
}

// handleSubscribe is the stream handler for the "subscribe" action: it
// registers the connection as a subscriber, writes a snapshot of the
// current session and registration state, then forwards broadcast
// frames until the client disconnects or the daemon shuts down.
func (core *Core) handleSubscribe(ctx context.Context, raw []byte, conn net.Conn) {
	writer := newFrameWriter(conn)

	done := make(chan struct{})
	sub := &subscriber{
		channel: make(chan coreFrame, subscriberChannelSize),
		done:    done,
	}
	core.addSubscriber(sub)
	core.logger.Debug("subscribe stream started")

	defer func() {
		close(done)
		core.removeSubscriber(sub)
		core.logger.Debug("subscribe stream ended")
	}()

	// Registration happens before the snapshot, so a transition in the
	// gap shows up both in the snapshot and as a buffered frame. State
	// frames are idempotent; consumers just render the latest.
	if err := core.writeSnapshot(writer); err != nil {
		core.logger.Debug("subscribe snapshot write failed", "error", err)
		return
	}

	core.subscribeLoop(ctx, writer, sub)
}

// writeSnapshot sends the current session state and registration
// results, bringing a new or resyncing subscriber up to date.
func (core *Core) writeSnapshot(writer *frameWriter) error {
	if err := writer.write(coreFrame{
		Type:  "state",
		State: string(core.manager.State()),
	}); err != nil {
		return err
	}
	return writer.write(coreFrame{
		Type:          "registration",
		Registrations: registrationResults(core.orchestrator.Registrations()),
	})
}

// subscribeLoop forwards broadcast frames to the connection until the
// context is cancelled or a write fails. On channel overflow (resync
// flag set) it drains the stale frames and writes a fresh snapshot:
// dropped state and registration frames are recovered by the snapshot,
// dropped banners are transient by nature.
func (core *Core) subscribeLoop(ctx context.Context, writer *frameWriter, sub *subscriber) {
	heartbeat := core.clock.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-sub.channel:
			if sub.resync.CompareAndSwap(true, false) {
				for len(sub.channel) > 0 {
					<-sub.channel
				}
				if err := core.writeSnapshot(writer); err != nil {
					core.logger.Debug("subscribe resync write failed", "error", err)
					return
				}
				continue
			}

			if err := writer.write(frame); err != nil {
				core.logger.Debug("subscribe stream write failed", "error", err)
				return
			}

		case <-heartbeat.C:
			if err := writer.write(coreFrame{Type: "heartbeat"}); err != nil {
				core.logger.Debug("subscribe heartbeat write failed", "error", err)
				return
			}
		}
	}
}
