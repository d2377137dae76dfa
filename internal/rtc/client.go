package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/singstage/singstage/internal/audio"
	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/relay"
	"github.com/singstage/singstage/internal/store"
	"github.com/singstage/singstage/lib/logger/sl"
)

// ErrMutedByHost rejects a microphone start while the admin's mute is in
// force. It is distinct from negotiation failures: no connection attempt
// is made at all.
var ErrMutedByHost = errors.New("you have been muted by the host and cannot turn on your microphone")

// Microphone bundles a phone user's capture feed: the pion track carrying
// the encoded audio, the raw PCM feed behind it, the encoder input the
// gated samples are pumped into, and a stop handle releasing the device.
// PCM and Sink come as a pair; both are nil when the capture pipeline
// gates and encodes upstream.
type Microphone struct {
	Track webrtc.TrackLocal
	PCM   audio.Track
	Sink  func(samples []float32) error
	Stop  func()
}

// ClientManager owns the single outbound connection from one phone user to
// the room's admin and drives the caller side of the signaling handshake.
type ClientManager struct {
	roomID  string
	userID  string
	relay   *relay.Relay
	store   store.Store
	newConn ConnFactory
	log     *slog.Logger

	mu          sync.Mutex
	conn        Conn
	mic         *Microphone
	gated       audio.Track
	stopPump    chan struct{}
	unsubscribe store.UnsubscribeFunc
	onMuted     func(muted bool)
}

func NewClientManager(roomID, userID string, rly *relay.Relay, st store.Store, newConn ConnFactory, log *slog.Logger) *ClientManager {
	if log == nil {
		log = slog.Default()
	}
	return &ClientManager{
		roomID:  roomID,
		userID:  userID,
		relay:   rly,
		store:   st,
		newConn: newConn,
		log: log.With(
			slog.String("room_id", roomID),
			slog.String("user_id", userID),
		),
	}
}

// SetOnMutedCallback registers the handler invoked when the admin mutes or
// unmutes this user. The unmute case never restarts capture on its own;
// the surrounding UI must ask the user to re-enable the microphone.
func (m *ClientManager) SetOnMutedCallback(fn func(muted bool)) {
	m.mu.Lock()
	m.onMuted = fn
	m.mu.Unlock()
}

// Initialize starts the microphone session: it refuses while muted by the
// admin, gates the PCM feed, attaches the track to a fresh connection,
// subscribes to signals, offers to the admin, and marks the mic on in the
// shared store. Calling it while a session is active closes the previous
// session first.
func (m *ClientManager) Initialize(ctx context.Context, mic *Microphone) error {
	const op = "rtc.client.initialize"
	log := m.log.With(slog.String("op", op))

	muted, err := m.isMutedByAdmin(ctx)
	if err != nil {
		return err
	}
	if muted {
		return ErrMutedByHost
	}

	m.mu.Lock()

	// Latest initialize wins: at most one non-closed connection at a time,
	// one signal subscription at a time.
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.teardownLocked()

	gated := audio.Process(mic.PCM, audio.Options{BufferSize: audio.MicBufferSize})

	conn, err := m.newConn()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("create connection: %w", err)
	}

	if mic.Track != nil {
		if err := conn.AddTrack(mic.Track); err != nil {
			m.mu.Unlock()
			conn.Close()
			return err
		}
	}

	conn.OnLocalCandidate(func(candidate webrtc.ICECandidateInit) {
		payload, err := json.Marshal(candidate)
		if err != nil {
			log.Error("marshal local candidate", sl.Err(err))
			return
		}
		if _, err := m.relay.Send(context.Background(), m.roomID, m.userID, domain.AdminID, domain.SignalTypeCandidate, payload); err != nil {
			log.Error("send local candidate", sl.Err(err))
		}
	})

	conn.OnStateChange(func(state webrtc.PeerConnectionState) {
		log.Info("connection state changed", slog.String("state", state.String()))
		if !isTerminal(state) {
			return
		}
		// Dropped mid-call: discard the session. Runs off the event
		// goroutine so a callback firing inside Close cannot deadlock.
		go func() {
			m.mu.Lock()
			if m.conn == conn {
				m.teardownLocked()
			}
			m.mu.Unlock()
		}()
	})

	// Publish the session before signaling starts: the admin's answer can
	// arrive while the offer send is still in flight and must find the
	// connection in place.
	m.conn = conn
	m.mic = mic
	m.gated = gated

	// The gate only matters if its output feeds the encoder: pump the
	// processed samples into the capture pipeline's sink.
	if gated != nil && mic.Sink != nil {
		stop := make(chan struct{})
		m.stopPump = stop
		go m.pump(gated, mic.Sink, stop, log)
	}
	m.mu.Unlock()

	unsubscribe, err := m.relay.Subscribe(ctx, m.roomID, m.userID, m.handleSignal)
	if err != nil {
		m.abortSession(conn)
		return err
	}
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	offer, err := conn.CreateOffer()
	if err != nil {
		m.abortSession(conn)
		return err
	}
	offerPayload, err := json.Marshal(offer)
	if err != nil {
		m.abortSession(conn)
		return err
	}
	if _, err := m.relay.Send(ctx, m.roomID, m.userID, domain.AdminID, domain.SignalTypeOffer, offerPayload); err != nil {
		m.abortSession(conn)
		return err
	}

	if err := m.setMicOn(ctx, true); err != nil {
		log.Error("update mic status", sl.Err(err))
	}
	return nil
}

// abortSession rolls a failed Initialize back, unless a newer session has
// already replaced conn.
func (m *ClientManager) abortSession(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != conn {
		return
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.teardownLocked()
}

// Close releases the session: signal subscription, connection, capture
// track, and the mic-on flag in the store. Safe to call repeatedly.
func (m *ClientManager) Close(ctx context.Context) error {
	m.mu.Lock()
	hadSession := m.conn != nil || m.unsubscribe != nil || m.mic != nil
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.teardownLocked()
	m.mu.Unlock()

	if !hadSession {
		return nil
	}
	return m.setMicOn(ctx, false)
}

func (m *ClientManager) handleSignal(sig domain.Signal) {
	const op = "rtc.client.signal"
	log := m.log.With(slog.String("op", op), slog.String("type", string(sig.Type)))

	switch sig.Type {
	case domain.SignalTypeAnswer:
		var answer webrtc.SessionDescription
		if err := json.Unmarshal(sig.Payload, &answer); err != nil {
			log.Warn("malformed answer payload", sl.Err(err))
			return
		}
		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()
		if conn == nil {
			// Teardown race: the session is gone, nothing to apply to.
			log.Debug("answer for closed connection dropped")
			return
		}
		if err := conn.AcceptAnswer(answer); err != nil {
			log.Error("accept answer", sl.Err(err))
		}

	case domain.SignalTypeCandidate:
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Payload, &candidate); err != nil {
			log.Warn("malformed candidate payload", sl.Err(err))
			return
		}
		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()
		if conn == nil {
			log.Debug("candidate for closed connection dropped")
			return
		}
		if err := conn.AddRemoteCandidate(candidate); err != nil {
			log.Warn("add remote candidate", sl.Err(err))
		}

	case domain.SignalTypeAdminMute:
		// Unconditional: the client cannot refuse a mute. Capture stops,
		// the connection closes, and the mic-on flag is cleared.
		m.mu.Lock()
		fn := m.onMuted
		m.teardownLocked()
		m.mu.Unlock()

		if fn != nil {
			fn(true)
		}
		if err := m.setMicOn(context.Background(), false); err != nil {
			log.Error("update mic status", sl.Err(err))
		}

	case domain.SignalTypeAdminUnmute:
		// Capture is not restarted here: turning the microphone back on
		// requires a fresh user action.
		m.mu.Lock()
		fn := m.onMuted
		m.mu.Unlock()
		if fn != nil {
			fn(false)
		}
	}
}

// pump moves gated PCM frames into the encoder input until the session
// ends or the feed runs dry.
func (m *ClientManager) pump(gated audio.Track, sink func([]float32) error, stop <-chan struct{}, log *slog.Logger) {
	buf := make([]float32, audio.MicBufferSize)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := gated.ReadSamples(buf)
		if n > 0 {
			if werr := sink(buf[:n]); werr != nil {
				log.Warn("audio sink rejected samples", sl.Err(werr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("microphone feed ended", sl.Err(err))
			}
			return
		}
	}
}

// teardownLocked stops capture and closes the connection. The signal
// subscription is left in place so a later admin-unmute still arrives.
func (m *ClientManager) teardownLocked() {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if m.stopPump != nil {
		close(m.stopPump)
		m.stopPump = nil
	}
	if m.gated != nil {
		m.gated.Close()
		m.gated = nil
	}
	if m.mic != nil {
		if m.mic.Stop != nil {
			m.mic.Stop()
		}
		m.mic = nil
	}
}

func (m *ClientManager) isMutedByAdmin(ctx context.Context) (bool, error) {
	raw, err := m.store.Get(ctx, store.UserPath(m.roomID, m.userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("read user state: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return false, fmt.Errorf("decode user state: %w", err)
	}
	return user.IsMutedByAdmin, nil
}

func (m *ClientManager) setMicOn(ctx context.Context, on bool) error {
	return m.store.Update(ctx, store.UserPath(m.roomID, m.userID), map[string]any{
		"isMicOn": on,
	})
}
