package rtc

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singstage/singstage/internal/domain"
	"github.com/singstage/singstage/internal/relay"
	"github.com/singstage/singstage/internal/store"
)

const (
	testRoom = "room1234"
	testUser = "user-1"
)

type clientFixture struct {
	store   *store.InMemoryStore
	relay   *relay.Relay
	factory *fakeFactory
	manager *ClientManager
}

func newClientFixture(t *testing.T) *clientFixture {
	t.Helper()
	st := store.NewInMemoryStore()
	rly := relay.New(st, nil)
	factory := &fakeFactory{}
	return &clientFixture{
		store:   st,
		relay:   rly,
		factory: factory,
		manager: NewClientManager(testRoom, testUser, rly, st, factory.new, nil),
	}
}

func (f *clientFixture) micOn(t *testing.T) bool {
	t.Helper()
	raw, err := f.store.Get(context.Background(), store.UserPath(testRoom, testUser))
	require.NoError(t, err)
	var user domain.User
	require.NoError(t, json.Unmarshal(raw, &user))
	return user.IsMicOn
}

func (f *clientFixture) adminSignals(t *testing.T) []domain.Signal {
	t.Helper()
	var signals []domain.Signal
	unsubscribe, err := f.relay.Subscribe(context.Background(), testRoom, domain.AdminID, func(sig domain.Signal) {
		signals = append(signals, sig)
	})
	require.NoError(t, err)
	unsubscribe()
	return signals
}

// pcmFeed serves a fixed capture buffer and counts how often the send
// path pulls from it.
type pcmFeed struct {
	mu      sync.Mutex
	samples []float32
	reads   int
}

func (f *pcmFeed) ReadSamples(dst []float32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.samples) == 0 {
		return 0, io.EOF
	}
	n := copy(dst, f.samples)
	f.samples = f.samples[n:]
	return n, nil
}

func (f *pcmFeed) SampleRate() int { return 48000 }

func (f *pcmFeed) Close() error { return nil }

func (f *pcmFeed) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func TestClientTransmitsGatedSamples(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	feed := &pcmFeed{samples: []float32{0.5, 0.005, -0.4, 0.0099}}

	var mu sync.Mutex
	var sent []float32
	sink := func(samples []float32) error {
		mu.Lock()
		sent = append(sent, samples...)
		mu.Unlock()
		return nil
	}

	require.NoError(t, f.manager.Initialize(ctx, &Microphone{PCM: feed, Sink: sink}))
	defer f.manager.Close(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sent) == 4
	}, time.Second, 5*time.Millisecond, "gated samples must reach the encoder input")

	mu.Lock()
	assert.Equal(t, []float32{0.5, 0, -0.4, 0}, sent, "quiet samples must arrive zeroed")
	mu.Unlock()
	assert.NotZero(t, feed.readCount(), "the send path must pull from the capture feed")
}

func TestClientInitializeOffersAndMarksMicOn(t *testing.T) {
	f := newClientFixture(t)

	stopped := false
	require.NoError(t, f.manager.Initialize(context.Background(), &Microphone{Stop: func() { stopped = true }}))

	signals := f.adminSignals(t)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SignalTypeOffer, signals[0].Type)
	assert.Equal(t, testUser, signals[0].From)

	assert.True(t, f.micOn(t))
	assert.False(t, stopped)
	assert.Equal(t, 1, f.factory.count())
}

func TestClientInitializeRefusedWhileMuted(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, store.UserPath(testRoom, testUser), domain.User{
		Name:           "alice",
		IsMutedByAdmin: true,
	}))

	err := f.manager.Initialize(ctx, &Microphone{})
	assert.ErrorIs(t, err, ErrMutedByHost)
	assert.Zero(t, f.factory.count(), "no connection attempt while muted")
	assert.Empty(t, f.adminSignals(t))
}

func TestClientReinitializeClosesPreviousSession(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	firstStopped := false
	require.NoError(t, f.manager.Initialize(ctx, &Microphone{Stop: func() { firstStopped = true }}))
	require.NoError(t, f.manager.Initialize(ctx, &Microphone{}))

	require.Equal(t, 2, f.factory.count())
	assert.True(t, f.factory.conn(0).isClosed(), "previous connection must be closed")
	assert.False(t, f.factory.conn(1).isClosed())
	assert.True(t, firstStopped, "previous capture must be released")
}

func TestClientAppliesAnswerAndCandidates(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.Initialize(ctx, &Microphone{}))
	conn := f.factory.conn(0)

	answer, err := json.Marshal(map[string]string{"type": "answer", "sdp": "v=0\r\n"})
	require.NoError(t, err)
	_, err = f.relay.Send(ctx, testRoom, domain.AdminID, testUser, domain.SignalTypeAnswer, answer)
	require.NoError(t, err)

	candidate, err := json.Marshal(map[string]string{"candidate": "candidate:1 1 udp 1 127.0.0.1 4242 typ host"})
	require.NoError(t, err)
	_, err = f.relay.Send(ctx, testRoom, domain.AdminID, testUser, domain.SignalTypeCandidate, candidate)
	require.NoError(t, err)

	assert.Equal(t, 1, conn.answerCount())
	assert.Equal(t, 1, conn.candidateCount())
}

func TestClientAdminMuteStopsSession(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	var muteEvents []bool
	f.manager.SetOnMutedCallback(func(muted bool) { muteEvents = append(muteEvents, muted) })

	stopped := false
	require.NoError(t, f.manager.Initialize(ctx, &Microphone{Stop: func() { stopped = true }}))

	_, err := f.relay.Send(ctx, testRoom, domain.AdminID, testUser, domain.SignalTypeAdminMute, json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.True(t, f.factory.conn(0).isClosed())
	assert.True(t, stopped)
	assert.False(t, f.micOn(t))
	assert.Equal(t, []bool{true}, muteEvents)

	// The signal subscription survives the mute so the unmute notification
	// still arrives. Capture must not restart on its own.
	_, err = f.relay.Send(ctx, testRoom, domain.AdminID, testUser, domain.SignalTypeAdminUnmute, json.RawMessage(`{}`))
	require.NoError(t, err)

	assert.Equal(t, []bool{true, false}, muteEvents)
	assert.False(t, f.micOn(t))
	assert.Equal(t, 1, f.factory.count(), "unmute must not reconnect")
}

func TestClientTerminalStateDiscardsSession(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	stopped := false
	require.NoError(t, f.manager.Initialize(ctx, &Microphone{Stop: func() { stopped = true }}))

	f.factory.conn(0).fireStateChange(webrtc.PeerConnectionStateFailed)

	require.Eventually(t, func() bool {
		return f.factory.conn(0).isClosed() && stopped
	}, time.Second, 5*time.Millisecond)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	f := newClientFixture(t)
	ctx := context.Background()

	var muteEvents []bool
	f.manager.SetOnMutedCallback(func(muted bool) { muteEvents = append(muteEvents, muted) })

	require.NoError(t, f.manager.Initialize(ctx, &Microphone{}))
	require.NoError(t, f.manager.Close(ctx))
	assert.True(t, f.factory.conn(0).isClosed())
	assert.False(t, f.micOn(t))

	require.NoError(t, f.manager.Close(ctx))

	// A signal landing after close must not reach the dead session.
	_, err := f.relay.Send(ctx, testRoom, domain.AdminID, testUser, domain.SignalTypeAdminMute, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Empty(t, muteEvents)
}

func TestClientCloseWithoutSession(t *testing.T) {
	f := newClientFixture(t)
	require.NoError(t, f.manager.Close(context.Background()))

	_, err := f.store.Get(context.Background(), store.UserPath(testRoom, testUser))
	assert.ErrorIs(t, err, store.ErrNotFound, "close without a session must not touch the store")
}
