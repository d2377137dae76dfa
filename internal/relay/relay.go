// Package relay moves signaling messages between peers through the shared
// document store. The store is only a mailbox: a signal is appended by the
// sender, delivered to the one peer it is addressed to, and deleted by the
// receiver right after processing. Delivery is best effort; a signal lost
// with a crashed receiver is not replayed.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/store"
	"github.com/singstage/singstage/lib/logger/sl"
)

type Relay struct {
	store store.Store
	log   *slog.Logger
}

func New(st store.Store, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{store: st, log: log}
}

// Send appends a signal to the room's mailbox and returns its store key.
func (r *Relay) Send(ctx context.Context, roomID, from, to string, signalType domain.SignalType, payload json.RawMessage) (string, error) {
	sig := domain.NewSignal(from, to, signalType, payload)

	key, err := r.store.Append(ctx, store.SignalsPath(roomID), sig)
	if err != nil {
		return "", fmt.Errorf("send signal: %w", err)
	}
	return key, nil
}

// Subscribe watches the room's mailbox for signals addressed to listenerID.
// Each matching signal is handed to onSignal exactly once and then removed
// from the store. Signals already waiting when the watch starts are
// delivered first, in store order.
func (r *Relay) Subscribe(ctx context.Context, roomID, listenerID string, onSignal func(domain.Signal)) (store.UnsubscribeFunc, error) {
	const op = "relay.subscribe"
	log := r.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("listener_id", listenerID),
	)

	signalsPath := store.SignalsPath(roomID)

	unsubscribe, err := r.store.Subscribe(ctx, signalsPath, func(evt store.Event) {
		if evt.Value == nil || evt.Path == signalsPath {
			return
		}

		var sig domain.Signal
		if err := json.Unmarshal(evt.Value, &sig); err != nil {
			log.Warn("dropping malformed signal", sl.Err(err))
			return
		}
		if sig.To != listenerID {
			return
		}

		onSignal(sig)

		// Consume: a delivered signal must never be rendered again. The
		// delete runs on its own context; the subscriber's context may
		// already be canceled by the time a signal lands.
		if err := r.store.Remove(context.Background(), evt.Path); err != nil {
			log.Error("failed to remove processed signal", sl.Err(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe signals: %w", err)
	}
	return unsubscribe, nil
}
