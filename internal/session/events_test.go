/*
 * relaycore: session core for multi-protocol terminal workstations
 * Copyright 2019-2024 Daniel Selifonov
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package session

import (
	"testing"
	"time"
)

func TestHubDeliversDurableAndLossyOnSeparateLanes(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer sub.Unsubscribe()

	h.Publish(Event{Kind: EventStateChanged, FromState: StateCreated, ToState: StateConnecting})
	h.Publish(Event{Kind: EventBytesIn, Bytes: []byte("hi")})

	select {
	case e := <-sub.Durable():
		if e.Kind != EventStateChanged {
			t.Fatalf("durable lane got %v, want EventStateChanged", e.Kind)
		}
	default:
		t.Fatal("expected a durable event to be waiting")
	}
	select {
	case e := <-sub.Lossy():
		if e.Kind != EventBytesIn {
			t.Fatalf("lossy lane got %v, want EventBytesIn", e.Kind)
		}
	default:
		t.Fatal("expected a lossy event to be waiting")
	}
}

func TestHubLossyLaneDropsOldestUnderPressure(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < lossyQueueDepth+10; i++ {
		h.Publish(Event{Kind: EventBytesIn, Bytes: []byte{byte(i)}})
	}

	// lane should be full but not have blocked the publisher, and a single
	// lag notice should have landed on the durable lane.
	count := 0
	for {
		select {
		case <-sub.Lossy():
			count++
		default:
			goto done
		}
	}
done:
	if count != lossyQueueDepth {
		t.Fatalf("drained %d lossy events, want exactly %d (queue depth)", count, lossyQueueDepth)
	}

	lagNotices := 0
	for {
		select {
		case e := <-sub.Durable():
			if e.Kind == EventError && e.Code == ErrSubscriberLag {
				lagNotices++
			}
		default:
			goto counted
		}
	}
counted:
	if lagNotices != 1 {
		t.Fatalf("got %d lag notices, want exactly 1 per lag episode", lagNotices)
	}
}

func TestHubDurableLaneDegradesThenDropsSubscriber(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < durableQueueDepth; i++ {
		h.Publish(Event{Kind: EventStateChanged})
	}
	// this publish finds the durable lane full: subscriber becomes degraded.
	h.Publish(Event{Kind: EventStateChanged})
	// this publish finds it still full and the subscriber already degraded:
	// it is dropped, and an ErrSubscriberDropped notice is appended if room.
	h.Publish(Event{Kind: EventStateChanged})

	h.mu.Lock()
	s := h.subs[sub.id]
	dropped := s.dropped
	h.mu.Unlock()
	if !dropped {
		t.Fatal("expected subscriber to be marked dropped after exceeding durable queue twice")
	}
}

func TestHubUnsubscribeClosesChannels(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()
	sub.Unsubscribe()

	select {
	case _, ok := <-sub.Durable():
		if ok {
			t.Fatal("expected durable channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for closed durable channel")
	}
}

func TestEventDurableClassification(t *testing.T) {
	if !(Event{Kind: EventStateChanged}).durable() {
		t.Error("StateChanged should be durable")
	}
	if !(Event{Kind: EventTriggerFired}).durable() {
		t.Error("TriggerFired should be durable")
	}
	if (Event{Kind: EventBytesIn}).durable() {
		t.Error("BytesIn should be lossy")
	}
}
