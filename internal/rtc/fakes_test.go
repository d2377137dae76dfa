package rtc

import (
	"sync"

	"github.com/pion/webrtc/v3"
)

// fakeConn records every interaction and lets tests fire connection events
// by hand.
type fakeConn struct {
	mu             sync.Mutex
	closed         bool
	tracks         []webrtc.TrackLocal
	acceptedOffers []webrtc.SessionDescription
	answers        []webrtc.SessionDescription
	candidates     []webrtc.ICECandidateInit
	offerErr       error

	onLocalCandidate func(webrtc.ICECandidateInit)
	onStateChange    func(webrtc.PeerConnectionState)
	onRemoteTrack    func(*webrtc.TrackRemote)
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	if c.offerErr != nil {
		return webrtc.SessionDescription{}, c.offerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}, nil
}

func (c *fakeConn) AcceptOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	c.mu.Lock()
	c.acceptedOffers = append(c.acceptedOffers, offer)
	c.mu.Unlock()
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}, nil
}

func (c *fakeConn) AcceptAnswer(answer webrtc.SessionDescription) error {
	c.mu.Lock()
	c.answers = append(c.answers, answer)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) AddRemoteCandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	c.candidates = append(c.candidates, candidate)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) AddTrack(track webrtc.TrackLocal) error {
	c.mu.Lock()
	c.tracks = append(c.tracks, track)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) OnLocalCandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onLocalCandidate = fn
	c.mu.Unlock()
}

func (c *fakeConn) OnStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onStateChange = fn
	c.mu.Unlock()
}

func (c *fakeConn) OnRemoteTrack(fn func(*webrtc.TrackRemote)) {
	c.mu.Lock()
	c.onRemoteTrack = fn
	c.mu.Unlock()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) answerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.answers)
}

func (c *fakeConn) acceptedOfferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acceptedOffers)
}

func (c *fakeConn) candidateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.candidates)
}

func (c *fakeConn) fireRemoteTrack(track *webrtc.TrackRemote) {
	c.mu.Lock()
	fn := c.onRemoteTrack
	c.mu.Unlock()
	if fn != nil {
		fn(track)
	}
}

func (c *fakeConn) fireStateChange(state webrtc.PeerConnectionState) {
	c.mu.Lock()
	fn := c.onStateChange
	c.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// fakeFactory hands out a fresh fakeConn per call and keeps them all.
type fakeFactory struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (f *fakeFactory) new() (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	conn := &fakeConn{}
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeFactory) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

// fakeSink records attach/detach/volume calls per user.
type fakeSink struct {
	mu       sync.Mutex
	attached map[string]*webrtc.TrackRemote
	detached []string
	volumes  map[string]float64
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		attached: make(map[string]*webrtc.TrackRemote),
		volumes:  make(map[string]float64),
	}
}

func (s *fakeSink) Attach(userID string, track *webrtc.TrackRemote) {
	s.mu.Lock()
	s.attached[userID] = track
	s.mu.Unlock()
}

func (s *fakeSink) Detach(userID string) {
	s.mu.Lock()
	s.detached = append(s.detached, userID)
	delete(s.attached, userID)
	s.mu.Unlock()
}

func (s *fakeSink) SetVolume(userID string, level float64) {
	s.mu.Lock()
	s.volumes[userID] = level
	s.mu.Unlock()
}

func (s *fakeSink) volume(userID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volumes[userID]
}

func (s *fakeSink) isAttached(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.attached[userID]
	return ok
}

func (s *fakeSink) detachedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.detached...)
}
