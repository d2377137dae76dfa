package rtc

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/relay"
	"github.com/singstage/singstage/internal/store"
	"github.com/singstage/singstage/lib/logger/sl"
)

// StreamEvent tells the surrounding UI what happened to a user's stream.
type StreamEvent string

const (
	StreamAdded   StreamEvent = "add"
	StreamRemoved StreamEvent = "remove"
)

// AudioSink is the playback capability the admin manager depends on. The
// concrete implementation (platform mixer, DOM element, native audio API)
// lives outside this package.
type AudioSink interface {
	Attach(userID string, track *webrtc.TrackRemote)
	Detach(userID string)
	// SetVolume adjusts local playback gain only; the user's transmitted
	// signal is untouched.
	SetVolume(userID string, level float64)
}

// StreamCallback is invoked when a user's inbound stream appears or goes
// away. The track is nil on remove.
type StreamCallback func(userID string, track *webrtc.TrackRemote, event StreamEvent)

// AdminManager owns one inbound connection per phone user: it answers
// their offers, plays their streams through the sink, and enforces
// per-user mute. Users are fully independent; one user's failure never
// touches another's connection.
type AdminManager struct {
	roomID  string
	relay   *relay.Relay
	store   store.Store
	newConn ConnFactory
	sink    AudioSink
	log     *slog.Logger

	mu           sync.Mutex
	conns        map[string]Conn
	streams      map[string]*webrtc.TrackRemote
	unsubscribe  store.UnsubscribeFunc
	onUserStream StreamCallback
}

func NewAdminManager(roomID string, rly *relay.Relay, st store.Store, newConn ConnFactory, sink AudioSink, log *slog.Logger) *AdminManager {
	if log == nil {
		log = slog.Default()
	}
	return &AdminManager{
		roomID:  roomID,
		relay:   rly,
		store:   st,
		newConn: newConn,
		sink:    sink,
		log:     log.With(slog.String("room_id", roomID)),
		conns:   make(map[string]Conn),
		streams: make(map[string]*webrtc.TrackRemote),
	}
}

// SetOnUserStreamCallback registers the stream lifecycle handler.
func (m *AdminManager) SetOnUserStreamCallback(fn StreamCallback) {
	m.mu.Lock()
	m.onUserStream = fn
	m.mu.Unlock()
}

// Initialize starts listening for signals addressed to the admin peer.
func (m *AdminManager) Initialize(ctx context.Context) error {
	unsubscribe, err := m.relay.Subscribe(ctx, m.roomID, domain.AdminID, m.handleSignal)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.unsubscribe = unsubscribe
	m.mu.Unlock()
	return nil
}

func (m *AdminManager) handleSignal(sig domain.Signal) {
	switch sig.Type {
	case domain.SignalTypeOffer:
		m.handleUserOffer(sig.From, sig.Payload)
	case domain.SignalTypeCandidate:
		m.handleUserCandidate(sig.From, sig.Payload)
	}
}

func (m *AdminManager) handleUserOffer(userID string, payload json.RawMessage) {
	const op = "rtc.admin.offer"
	log := m.log.With(slog.String("op", op), slog.String("user_id", userID))

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		log.Warn("malformed offer payload", sl.Err(err))
		return
	}

	m.mu.Lock()
	conn, ok := m.conns[userID]
	if !ok {
		created, err := m.newConn()
		if err != nil {
			m.mu.Unlock()
			log.Error("create connection", sl.Err(err))
			return
		}
		conn = created
		m.wireConn(userID, conn, log)
		m.conns[userID] = conn
	}
	m.mu.Unlock()

	// A repeated offer from the same user renegotiates on the existing
	// connection rather than creating a second one.
	answer, err := conn.AcceptOffer(offer)
	if err != nil {
		log.Error("accept offer", sl.Err(err))
		return
	}

	answerPayload, err := json.Marshal(answer)
	if err != nil {
		log.Error("marshal answer", sl.Err(err))
		return
	}
	if _, err := m.relay.Send(context.Background(), m.roomID, domain.AdminID, userID, domain.SignalTypeAnswer, answerPayload); err != nil {
		log.Error("send answer", sl.Err(err))
	}
}

// wireConn registers the per-connection event handlers. Called with m.mu
// held, before any negotiation step runs on conn.
func (m *AdminManager) wireConn(userID string, conn Conn, log *slog.Logger) {
	conn.OnLocalCandidate(func(candidate webrtc.ICECandidateInit) {
		payload, err := json.Marshal(candidate)
		if err != nil {
			log.Error("marshal local candidate", sl.Err(err))
			return
		}
		if _, err := m.relay.Send(context.Background(), m.roomID, domain.AdminID, userID, domain.SignalTypeCandidate, payload); err != nil {
			log.Error("send local candidate", sl.Err(err))
		}
	})

	conn.OnRemoteTrack(func(track *webrtc.TrackRemote) {
		m.mu.Lock()
		m.streams[userID] = track
		fn := m.onUserStream
		m.mu.Unlock()

		m.sink.Attach(userID, track)
		if fn != nil {
			fn(userID, track, StreamAdded)
		}
	})

	conn.OnStateChange(func(state webrtc.PeerConnectionState) {
		log.Info("connection state changed", slog.String("state", state.String()))
		if !isTerminal(state) {
			return
		}
		go m.removeUser(userID)
	})
}

func (m *AdminManager) handleUserCandidate(userID string, payload json.RawMessage) {
	const op = "rtc.admin.candidate"
	log := m.log.With(slog.String("op", op), slog.String("user_id", userID))

	m.mu.Lock()
	conn, ok := m.conns[userID]
	m.mu.Unlock()
	if !ok {
		// Expected race during teardown: no connection to apply it to.
		log.Debug("candidate for unknown user dropped")
		return
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		log.Warn("malformed candidate payload", sl.Err(err))
		return
	}
	if err := conn.AddRemoteCandidate(candidate); err != nil {
		log.Warn("add remote candidate", sl.Err(err))
	}
}

// MuteUser silences a user: a mute signal tells the client to stop
// capture, the store flags are flipped, and the local connection is torn
// down as well, without waiting for the client to comply.
func (m *AdminManager) MuteUser(ctx context.Context, userID string) error {
	const op = "rtc.admin.mute"
	log := m.log.With(slog.String("op", op), slog.String("user_id", userID))

	if _, err := m.relay.Send(ctx, m.roomID, domain.AdminID, userID, domain.SignalTypeAdminMute, json.RawMessage(`{}`)); err != nil {
		return err
	}

	if err := m.store.Update(ctx, store.UserPath(m.roomID, userID), map[string]any{
		"isMutedByAdmin": true,
		"isMicOn":        false,
	}); err != nil {
		log.Error("update muted status", sl.Err(err))
		return err
	}

	m.removeUser(userID)
	return nil
}

// UnmuteUser lifts the mute. The connection is not restored; the user has
// to re-initiate their microphone.
func (m *AdminManager) UnmuteUser(ctx context.Context, userID string) error {
	if _, err := m.relay.Send(ctx, m.roomID, domain.AdminID, userID, domain.SignalTypeAdminUnmute, json.RawMessage(`{}`)); err != nil {
		return err
	}

	return m.store.Update(ctx, store.UserPath(m.roomID, userID), map[string]any{
		"isMutedByAdmin": false,
	})
}

// SetUserVolume adjusts local playback gain for one user, clamped to 0..1.
func (m *AdminManager) SetUserVolume(userID string, level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	m.sink.SetVolume(userID, level)
}

// removeUser tears down one user's connection and stream without touching
// anyone else's.
func (m *AdminManager) removeUser(userID string) {
	m.mu.Lock()
	conn, hadConn := m.conns[userID]
	delete(m.conns, userID)
	_, hadStream := m.streams[userID]
	delete(m.streams, userID)
	fn := m.onUserStream
	m.mu.Unlock()

	if hadConn {
		conn.Close()
	}
	if hadStream {
		m.sink.Detach(userID)
		if fn != nil {
			fn(userID, nil, StreamRemoved)
		}
	}
}

// Close unsubscribes from signaling and tears down every connection and
// stream, notifying a remove for each user.
func (m *AdminManager) Close() {
	m.mu.Lock()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	conns := m.conns
	streams := m.streams
	fn := m.onUserStream
	m.conns = make(map[string]Conn)
	m.streams = make(map[string]*webrtc.TrackRemote)
	m.mu.Unlock()

	for userID, conn := range conns {
		conn.Close()
		if _, ok := streams[userID]; ok {
			m.sink.Detach(userID)
		}
		if fn != nil {
			fn(userID, nil, StreamRemoved)
		}
	}
}
