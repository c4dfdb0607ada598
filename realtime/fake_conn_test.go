package realtime

import (
	"context"
	"errors"
	"sync"
)

var errFakeSend = errors.New("fake send failure")

// fakeConn records outbound messages and feeds inbound ones from a channel
type fakeConn struct {
	mu       sync.Mutex
	sent     []string
	failSend bool
	closed   bool
	code     int
	inbound  chan string
	done     chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan string, 16), done: make(chan struct{})}
}

func (f *fakeConn) Receive(ctx context.Context) (string, error) {
	select {
	case msg := <-f.inbound:
		return msg, nil
	case <-f.done:
		return "", errors.New("closed")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeConn) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend || f.closed {
		return errFakeSend
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConn) Close(code int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.code = code
		f.once.Do(func() { close(f.done) })
	}
	return nil
}

func (f *fakeConn) setFailing() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSend = true
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
