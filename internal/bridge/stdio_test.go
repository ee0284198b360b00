package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/nagctl/internal/domain"
)

// mockHandler answers every command with its name, optionally blocking.
type mockHandler struct {
	mu       sync.Mutex
	requests []domain.CommandRequest
	block    map[string]chan struct{}
	onHandle func(req domain.CommandRequest)
}

func (m *mockHandler) Handle(ctx context.Context, req domain.CommandRequest) domain.CommandResponse {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	wait := m.block[req.Command]
	m.mu.Unlock()

	if m.onHandle != nil {
		m.onHandle(req)
	}
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return domain.CommandResponse{ID: req.ID, Error: &domain.ResponseError{Kind: domain.KindCancelled, Message: "cancelled"}}
		}
	}
	return domain.CommandResponse{ID: req.ID, Success: true, Data: req.Command}
}

// lockedBuffer is a bytes.Buffer safe for concurrent use.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var responses []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var resp map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp), "line: %s", scanner.Text())
		responses = append(responses, resp)
	}
	return responses
}

func TestStdioServer_RoundTrip(t *testing.T) {
	in := strings.NewReader(`{"id":"1","command":"load-config"}
{"id":"2","command":"save-config","payload":{"quietStart":"22:00"}}
`)
	out := &lockedBuffer{}
	handler := &mockHandler{}

	err := NewStdioServer(handler, in, out, zap.NewNop()).Serve(context.Background())
	require.NoError(t, err)

	responses := decodeLines(t, out.String())
	require.Len(t, responses, 2)
	byID := map[string]any{}
	for _, r := range responses {
		assert.Equal(t, true, r["success"])
		byID[r["id"].(string)] = r["data"]
	}
	assert.Equal(t, "load-config", byID["1"])
	assert.Equal(t, "save-config", byID["2"])

	for _, req := range handler.requests {
		if req.ID == "2" {
			assert.JSONEq(t, `{"quietStart":"22:00"}`, string(req.Payload))
		}
	}
}

func TestStdioServer_AssignsMissingIDs(t *testing.T) {
	in := strings.NewReader(`{"command":"load-config"}` + "\n")
	out := &lockedBuffer{}

	require.NoError(t, NewStdioServer(&mockHandler{}, in, out, nil).Serve(context.Background()))

	responses := decodeLines(t, out.String())
	require.Len(t, responses, 1)
	id, _ := responses[0]["id"].(string)
	assert.Len(t, id, 36)
}

func TestStdioServer_MalformedLineAndBlankLines(t *testing.T) {
	in := strings.NewReader("\n   \n{not json}\n" + `{"id":"ok","command":"load-config"}` + "\n")
	out := &lockedBuffer{}

	require.NoError(t, NewStdioServer(&mockHandler{}, in, out, nil).Serve(context.Background()))

	responses := decodeLines(t, out.String())
	require.Len(t, responses, 2)

	var malformed, ok map[string]any
	for _, r := range responses {
		if r["id"] == "ok" {
			ok = r
		} else {
			malformed = r
		}
	}
	require.NotNil(t, ok)
	require.NotNil(t, malformed)
	assert.Equal(t, false, malformed["success"])
	errObj := malformed["error"].(map[string]any)
	assert.Equal(t, string(domain.KindBadPayload), errObj["kind"])
}

func TestStdioServer_SlowRequestDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	handler := &mockHandler{block: map[string]chan struct{}{"launch-worker": release}}
	// The fast request unblocks the slow one; sequential handling would hang.
	handler.onHandle = func(req domain.CommandRequest) {
		if req.Command == "load-config" {
			close(release)
		}
	}
	in := strings.NewReader(`{"id":"slow","command":"launch-worker"}
{"id":"fast","command":"load-config"}
`)
	out := &lockedBuffer{}

	done := make(chan error, 1)
	go func() { done <- NewStdioServer(handler, in, out, nil).Serve(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("slow request blocked the bridge")
	}
	assert.Len(t, decodeLines(t, out.String()), 2)
}

func TestStdioServer_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	out := &lockedBuffer{}
	handler := &mockHandler{block: map[string]chan struct{}{"launch-worker": make(chan struct{})}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewStdioServer(handler, pr, out, nil).Serve(ctx) }()

	_, err := pw.Write([]byte(`{"id":"held","command":"launch-worker"}` + "\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.requests) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	// The in-flight request still gets a response before Serve returns.
	responses := decodeLines(t, out.String())
	require.Len(t, responses, 1)
	assert.Equal(t, "held", responses[0]["id"])
}

func TestStdioServer_CancelLeavesReaderUntilInputCloses(t *testing.T) {
	pr, pw := io.Pipe()
	out := &lockedBuffer{}
	handler := &mockHandler{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewStdioServer(handler, pr, out, nil).Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	// The reader is still parked on the input; the next line is consumed but never handled.
	written := make(chan error, 1)
	go func() {
		_, err := pw.Write([]byte(`{"id":"late","command":"load-config"}` + "\n"))
		written <- err
	}()
	select {
	case err := <-written:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reader goroutine did not consume input after cancel")
	}
	require.NoError(t, pw.Close())

	handler.mu.Lock()
	defer handler.mu.Unlock()
	assert.Empty(t, handler.requests)
	assert.Empty(t, out.String())
}
