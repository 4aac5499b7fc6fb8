package preview

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/coreman2200/funtimes-spectrum/internal/input"
)

func testImage() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 10, 2))
	img.SetBit(0, 0, image1bit.On)
	img.SetBit(9, 0, image1bit.On)
	img.SetBit(8, 1, image1bit.On)
	return img
}

func TestPackRows(t *testing.T) {
	img := testImage()
	got := Pack(img, img.Bounds(), image.Point{})
	assert.Equal(t, []byte{0x80, 0x40, 0x00, 0x80}, got)
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func waitClients(t *testing.T, h *Hub, n int) {
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == n
	}, time.Second, 5*time.Millisecond)
}

func TestFramesReachClients(t *testing.T) {
	h := NewHub(10, 2, zerolog.Nop())
	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := dial(t, srv, "/ws")
	waitClients(t, h, 1)

	img := testImage()
	require.NoError(t, h.Draw(img.Bounds(), img, image.Point{}))

	c.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, uint64(1), f.FrameID)
	assert.Equal(t, 10, f.W)
	assert.Equal(t, 2, f.H)
	assert.Equal(t, []byte{0x80, 0x40, 0x00, 0x80}, f.Bits)
}

func TestControlInjectsButtons(t *testing.T) {
	h := NewHub(8, 8, zerolog.Nop())
	got := make(chan input.Event, 4)
	h.Control = func(e input.Event) { got <- e }
	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := dial(t, srv, "/control")
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"button":"bogus","pressed":true}`)))
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"button":"up","pressed":true}`)))

	select {
	case e := <-got:
		assert.Equal(t, input.Up, e.ID)
		assert.True(t, e.Pressed)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	assert.Empty(t, got)
}

func TestHealthMergesExtraFields(t *testing.T) {
	h := NewHub(32, 16, zerolog.Nop())
	h.Health = func() map[string]any { return map[string]any{"mode": "LOG"} }

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "LOG", body["mode"])
	assert.Equal(t, float64(32), body["width"])
	assert.Equal(t, float64(0), body["frame_id"])
}
