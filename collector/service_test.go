package collector

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport implements Transport in memory
type fakeTransport struct {
	mu           sync.Mutex
	failConnect  bool
	connectErrs  []error
	connectCalls int
	subscribed   []string
	disconnects  int
	messages     chan Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{messages: make(chan Message, 16)}
}

func (t *fakeTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connectCalls++
	if t.failConnect {
		return errors.New("broker unreachable")
	}
	if len(t.connectErrs) > 0 {
		err := t.connectErrs[0]
		t.connectErrs = t.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *fakeTransport) Subscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribed = append(t.subscribed, topic)
	return nil
}

func (t *fakeTransport) Messages() <-chan Message {
	return t.messages
}

func (t *fakeTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects++
}

func (t *fakeTransport) subscriptions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.subscribed))
	copy(out, t.subscribed)
	return out
}

func (t *fakeTransport) connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectCalls
}

func newTestService(transport Transport, store *fakeStore) *Service {
	c := newTestCollector(store, Options{})
	return NewService(transport, c, "vbox/summary", 5*time.Millisecond)
}

func TestStartStopLifecycle(t *testing.T) {
	transport := newFakeTransport()
	svc := newTestService(transport, newFakeStore())

	require.True(t, svc.Start())
	assert.True(t, svc.IsRunning())
	assert.Equal(t, StateRunning, svc.State())

	// a second Start is a no-op, not a second loop
	assert.False(t, svc.Start())

	// wait until the loop holds a live subscription before stopping
	assert.Eventually(t, func() bool {
		return len(transport.subscriptions()) == 1
	}, time.Second, time.Millisecond)

	require.True(t, svc.Stop())
	assert.False(t, svc.IsRunning())
	assert.Equal(t, StateStopped, svc.State())

	// a second Stop is a no-op
	assert.False(t, svc.Stop())

	transport.mu.Lock()
	disconnects := transport.disconnects
	transport.mu.Unlock()
	assert.Equal(t, 1, disconnects, "stopping must release the transport session")
}

func TestStartTwiceLeavesOneLoop(t *testing.T) {
	transport := newFakeTransport()
	svc := newTestService(transport, newFakeStore())

	require.True(t, svc.Start())
	assert.False(t, svc.Start())

	assert.Eventually(t, func() bool {
		return len(transport.subscriptions()) == 1
	}, time.Second, time.Millisecond)

	// give a second loop, if one existed, the chance to subscribe too
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, transport.subscriptions(), 1)

	require.True(t, svc.Stop())
}

func TestServiceProcessesDeliveredMessages(t *testing.T) {
	transport := newFakeTransport()
	store := newFakeStore()
	store.addChannel(1, "temp", 5)
	svc := newTestService(transport, store)

	require.True(t, svc.Start())
	transport.messages <- Message{Topic: "vbox/summary", Payload: []byte(`{"device": 1, "temp": 20}`)}

	assert.Eventually(t, func() bool {
		return len(store.rows()) == 1
	}, time.Second, time.Millisecond)

	require.True(t, svc.Stop())
}

func TestConnectFailureRetriesWithBackoff(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErrs = []error{errors.New("broker down")}
	svc := newTestService(transport, newFakeStore())

	require.True(t, svc.Start())

	assert.Eventually(t, func() bool {
		return len(transport.subscriptions()) == 1
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, transport.connects(), 2)

	require.True(t, svc.Stop())
}

func TestStopInterruptsBackoff(t *testing.T) {
	transport := newFakeTransport()
	transport.failConnect = true
	svc := NewService(transport, newTestCollector(newFakeStore(), Options{}), "vbox/summary", time.Minute)
	require.True(t, svc.Start())

	// wait for the first failed connect so the loop is inside its backoff
	assert.Eventually(t, func() bool {
		return transport.connects() >= 1
	}, time.Second, time.Millisecond)

	done := make(chan bool, 1)
	go func() { done <- svc.Stop() }()

	select {
	case stopped := <-done:
		assert.True(t, stopped)
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the connect backoff")
	}
	assert.False(t, svc.IsRunning())
}
