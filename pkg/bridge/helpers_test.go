package bridge

import (
	"context"
	"sync"

	"github.com/tinyland-inc/maibridge/pkg/platform"
)

// fakeSender captures frames that would have gone to the brain.
type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	sent   chan []byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan []byte, 10)}
}

func (f *fakeSender) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.frames = append(f.frames, cp)
	select {
	case f.sent <- cp:
	default:
	}
	return nil
}

func (f *fakeSender) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

type capturedSend struct {
	targetID string
	out      *platform.Outgoing
}

// fakeClient is an in-memory platform.Client.
type fakeClient struct {
	mu           sync.Mutex
	channelSends []capturedSend
	directSends  []capturedSend
	messages     map[string]*platform.Message
	fetchErr     error
	sendErr      error
}

func newFakeClient() *fakeClient {
	return &fakeClient{messages: make(map[string]*platform.Message)}
}

func (f *fakeClient) SendToChannel(_ context.Context, channelID string, out *platform.Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.channelSends = append(f.channelSends, capturedSend{channelID, out})
	return nil
}

func (f *fakeClient) SendDirect(_ context.Context, userID string, out *platform.Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.directSends = append(f.directSends, capturedSend{userID, out})
	return nil
}

func (f *fakeClient) ChannelName(_ context.Context, channelID string) (string, error) {
	return "chan-" + channelID, nil
}

func (f *fakeClient) FetchMessage(_ context.Context, _, messageID string) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if msg, ok := f.messages[messageID]; ok {
		return msg, nil
	}
	// Unknown ids behave like a deleted message.
	return &platform.Message{ID: messageID}, nil
}
