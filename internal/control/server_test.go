package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/mirror-viewer/internal/viewer"
)

type fakeViewer struct {
	mu       sync.Mutex
	ready    bool
	next     uint64
	requests []string
	listener func(viewer.Event)
}

func (f *fakeViewer) RequestTexture(ctx context.Context, path string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return 0, viewer.ErrTargetNotReady
	}
	f.next++
	f.requests = append(f.requests, path)
	return f.next, nil
}

func (f *fakeViewer) Status() viewer.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return viewer.Status{ModelLoaded: f.ready, TargetFound: f.ready, SwapPolicy: "latest"}
}

func (f *fakeViewer) Subscribe(fn func(viewer.Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = fn
	return func() {}
}

func (f *fakeViewer) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeViewer) emit(e viewer.Event) {
	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()
	fn(e)
}

func newTestServer(t *testing.T, ready bool) (*fakeViewer, *Server, *httptest.Server) {
	t.Helper()
	fv := &fakeViewer{ready: ready}
	srv := NewServer(fv)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Close()
		ts.Close()
	})
	return fv, srv, ts
}

func postTexture(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url+"/texture", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestPostTextureAccepted(t *testing.T) {
	fv, _, ts := newTestServer(t, true)

	resp, body := postTexture(t, ts.URL, `{"path":"thumbs/kyoka.png"}`)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, float64(1), body["token"])
	assert.Equal(t, []string{"thumbs/kyoka.png"}, fv.requested())
}

func TestPostTextureNotReady(t *testing.T) {
	_, _, ts := newTestServer(t, false)

	resp, body := postTexture(t, ts.URL, `{"path":"a.png"}`)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, viewer.ErrTargetNotReady.Error(), body["error"])
}

func TestPostTextureBadInput(t *testing.T) {
	_, _, ts := newTestServer(t, true)

	for _, body := range []string{`not json`, `{}`, `{"path":""}`} {
		resp, _ := postTexture(t, ts.URL, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestTextureRouteRejectsGet(t *testing.T) {
	_, _, ts := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/texture")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGetStatus(t *testing.T) {
	_, _, ts := newTestServer(t, true)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st viewer.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.True(t, st.ModelLoaded)
	assert.Equal(t, "latest", st.SwapPolicy)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(viewer.ErrStopped))
	assert.Equal(t, http.StatusBadRequest, statusFor(viewer.ErrEmptyPath))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestWebSocketChangeTexture(t *testing.T) {
	fv, _, ts := newTestServer(t, true)
	conn := dial(t, ts)

	hello := readMessage(t, conn)
	assert.Equal(t, TypeStatus, hello.Type)
	require.NotNil(t, hello.Status)
	assert.True(t, hello.Status.TargetFound)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeChangeTexture, Path: "b.png"}))
	ack := readMessage(t, conn)
	assert.Equal(t, TypeAccepted, ack.Type)
	assert.Equal(t, uint64(1), ack.Token)
	assert.Equal(t, "b.png", ack.Path)

	fv.emit(viewer.Event{Type: viewer.EventTextureUpdated, Path: "b.png", Token: 1})
	updated := readMessage(t, conn)
	assert.Equal(t, TypeTextureUpdated, updated.Type)
	assert.Equal(t, "b.png", updated.Path)
	assert.Equal(t, uint64(1), updated.Token)
}

func TestWebSocketErrors(t *testing.T) {
	fv, _, ts := newTestServer(t, false)
	conn := dial(t, ts)
	readMessage(t, conn) // status

	require.NoError(t, conn.WriteJSON(Message{Type: TypeChangeTexture, Path: "b.png"}))
	m := readMessage(t, conn)
	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, viewer.ErrTargetNotReady.Error(), m.Error)

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	m = readMessage(t, conn)
	assert.Equal(t, TypeError, m.Type)

	fv.emit(viewer.Event{Type: viewer.EventTextureFailed, Path: "x.png", Err: errors.New("decode failed")})
	m = readMessage(t, conn)
	assert.Equal(t, TypeError, m.Type)
	assert.Equal(t, "decode failed", m.Error)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	fv, srv, ts := newTestServer(t, true)
	a := dial(t, ts)
	b := dial(t, ts)
	readMessage(t, a)
	readMessage(t, b)

	require.Eventually(t, func() bool { return srv.Hub().Len() == 2 }, time.Second, 5*time.Millisecond)
	fv.emit(viewer.Event{Type: viewer.EventModelLoaded, Path: "mirror.glb"})

	for _, conn := range []*websocket.Conn{a, b} {
		m := readMessage(t, conn)
		assert.Equal(t, TypeModelLoaded, m.Type)
		assert.Equal(t, "mirror.glb", m.Path)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	fv := &fakeViewer{}
	srv := NewServer(fv)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, err == nil || errors.Is(err, http.ErrServerClosed), "unexpected error %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}


func TestEventMessage(t *testing.T) {
	tests := []struct {
		event viewer.Event
		want  Message
	}{
		{viewer.Event{Type: viewer.EventTextureUpdated, Path: "a.png", Token: 3}, Message{Type: TypeTextureUpdated, Path: "a.png", Token: 3}},
		{viewer.Event{Type: viewer.EventTextureDiscarded, Path: "b.png", Token: 1}, Message{Type: TypeTextureDiscarded, Path: "b.png", Token: 1}},
		{viewer.Event{Type: viewer.EventScreenshotSaved, Path: "shot.png"}, Message{Type: TypeScreenshotSaved, Path: "shot.png"}},
		{viewer.Event{Type: viewer.EventTextureFailed, Path: "c.png", Token: 2, Err: errors.New("boom")}, Message{Type: TypeError, Path: "c.png", Token: 2, Error: "boom"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, eventMessage(tt.event))
		})
	}
}
