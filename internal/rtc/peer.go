// Package rtc implements the peer-to-peer microphone relay: a thin peer
// connection primitive over pion, a client-side manager driving the caller
// half of the handshake, and an admin-side manager multiplexing every
// phone microphone onto the room's playback surface. Signaling rides the
// relay mailbox; media flows directly between the peers once ICE settles.
package rtc

import (
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v3"

	"github.com/singstage/singstage/internal/audio"
	"github.com/singstage/singstage/lib/logger/sl"
)

// Conn is one transport session between exactly two endpoints. Signaling
// payloads pass through it unchanged; event handlers are registered once,
// right after construction, before any negotiation step runs.
type Conn interface {
	// CreateOffer generates a local offer and commits it as the local
	// description in one step.
	CreateOffer() (webrtc.SessionDescription, error)
	// AcceptOffer commits the remote offer, generates an answer and
	// commits it as the local description, then returns the answer.
	AcceptOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// AcceptAnswer commits the remote answer; media starts once ICE
	// completes.
	AcceptAnswer(answer webrtc.SessionDescription) error
	// AddRemoteCandidate feeds one ICE candidate. Duplicate and late
	// candidates are common; callers log failures and move on.
	AddRemoteCandidate(candidate webrtc.ICECandidateInit) error
	// AddTrack attaches the outbound local media track.
	AddTrack(track webrtc.TrackLocal) error
	OnLocalCandidate(fn func(webrtc.ICECandidateInit))
	OnStateChange(fn func(webrtc.PeerConnectionState))
	OnRemoteTrack(fn func(*webrtc.TrackRemote))
	Close() error
}

// ConnFactory builds a fresh Conn per negotiation.
type ConnFactory func() (Conn, error)

// PionConn implements Conn on a pion PeerConnection. Every session
// description, local or remote, is passed through the opus bias rewrite
// before being committed; if the rewrite has nothing to match, negotiation
// proceeds with default codec parameters.
type PionConn struct {
	pc  *webrtc.PeerConnection
	log *slog.Logger
}

// NewPionFactory returns a ConnFactory producing STUN-only connections.
// No TURN relay is configured; reachability behind symmetric NATs is a
// known limitation.
func NewPionFactory(stunServers []string, log *slog.Logger) ConnFactory {
	return func() (Conn, error) {
		return NewPionConn(stunServers, log)
	}
}

func NewPionConn(stunServers []string, log *slog.Logger) (*PionConn, error) {
	if log == nil {
		log = slog.Default()
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
		ICECandidatePoolSize: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	return &PionConn{pc: pc, log: log}, nil
}

func (c *PionConn) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	offer.SDP = audio.BiasSDP(offer.SDP)

	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local offer: %w", err)
	}
	return offer, nil
}

func (c *PionConn) AcceptOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	offer.SDP = audio.BiasSDP(offer.SDP)
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set remote offer: %w", err)
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	answer.SDP = audio.BiasSDP(answer.SDP)

	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local answer: %w", err)
	}
	return answer, nil
}

func (c *PionConn) AcceptAnswer(answer webrtc.SessionDescription) error {
	answer.SDP = audio.BiasSDP(answer.SDP)
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

func (c *PionConn) AddRemoteCandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *PionConn) AddTrack(track webrtc.TrackLocal) error {
	if _, err := c.pc.AddTrack(track); err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	return nil
}

func (c *PionConn) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (c *PionConn) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *PionConn) OnRemoteTrack(fn func(*webrtc.TrackRemote)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(track)
	})
}

func (c *PionConn) Close() error {
	if err := c.pc.Close(); err != nil {
		c.log.Warn("closing peer connection", sl.Err(err))
		return err
	}
	return nil
}

// isTerminal reports whether the connection can no longer carry media and
// should be torn down by its owner.
func isTerminal(state webrtc.PeerConnectionState) bool {
	switch state {
	case webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateClosed:
		return true
	default:
		return false
	}
}
