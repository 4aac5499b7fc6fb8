// Package preview mirrors the dot-matrix to browsers over websockets and
// serves diagnostics, health and a remote button pad.
package preview

import (
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	diag "github.com/coreman2200/funtimes-spectrum/internal/diagnostics"
	"github.com/coreman2200/funtimes-spectrum/internal/input"
)

// Hub is a display.Drawer whose frames go to every connected /ws client.
type Hub struct {
	mu          sync.RWMutex
	bounds      image.Rectangle
	frameID     uint64
	last        []byte
	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	log         zerolog.Logger

	// Health adds fields to /health.
	Health func() map[string]any

	// Control receives button edges sent to /control.
	Control func(input.Event)
}

func NewHub(w, h int, log zerolog.Logger) *Hub {
	return &Hub{
		bounds:      image.Rect(0, 0, w, h),
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		log:         log,
	}
}

func (s *Hub) String() string          { return "preview-ws" }
func (s *Hub) Halt() error             { return nil }
func (s *Hub) ColorModel() color.Model { return image1bit.BitModel }
func (s *Hub) Bounds() image.Rectangle { return s.bounds }

// Draw packs src into rows of bits, most significant first, and broadcasts
// it.
func (s *Hub) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	bits := Pack(src, r, sp)
	s.mu.Lock()
	s.frameID++
	s.last = bits
	s.mu.Unlock()
	s.broadcastFrame(bits)
	return nil
}

// Pack converts the r-sized area of src starting at sp into row-major bits.
// Each row takes (width+7)/8 bytes.
func Pack(src image.Image, r image.Rectangle, sp image.Point) []byte {
	w, h := r.Dx(), r.Dy()
	stride := (w + 7) / 8
	out := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := image1bit.BitModel.Convert(src.At(sp.X+x, sp.Y+y)).(image1bit.Bit)
			if c {
				out[y*stride+x/8] |= 0x80 >> uint(x%8)
			}
		}
	}
	return out
}

type frame struct {
	T       int64  `json:"t"`
	FrameID uint64 `json:"frame_id"`
	W       int    `json:"w"`
	H       int    `json:"h"`
	Bits    []byte `json:"bits"`
}

func (s *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.RLock()
	last, id := s.last, s.frameID
	s.mu.RUnlock()
	if last != nil {
		b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: id, W: s.bounds.Dx(), H: s.bounds.Dy(), Bits: last})
		conn.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		_ = conn.WriteMessage(websocket.TextMessage, b)
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.diagClients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

type controlMsg struct {
	Button  string `json:"button"`
	Pressed bool   `json:"pressed"`
}

// HandleControlWS turns {"button":"up","pressed":true} messages into button
// events.
func (s *Hub) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.applyControl(msg)
	}
}

func (s *Hub) applyControl(msg controlMsg) {
	id, err := input.ParseButton(msg.Button)
	if err != nil {
		s.PushDiag(diag.Diagnostic{
			Severity: diag.Warn, Code: "control.unknown_button", Summary: "Unknown button name",
			Evidence: map[string]any{"button": msg.Button},
		})
		return
	}
	if s.Control != nil {
		s.Control(input.Event{ID: id, Pressed: msg.Pressed, At: time.Since(s.startTime)})
	}
}

func (s *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"width":    s.bounds.Dx(),
		"height":   s.bounds.Dy(),
	}
	s.mu.RUnlock()
	if s.Health != nil {
		for k, v := range s.Health() {
			resp[k] = v
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Routes mounts every handler on mux.
func (s *Hub) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
}

func (s *Hub) broadcastFrame(bits []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, _ := json.Marshal(frame{
		T:       time.Now().UnixNano(),
		FrameID: s.frameID,
		W:       s.bounds.Dx(),
		H:       s.bounds.Dy(),
		Bits:    bits,
	})
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug().Err(err).Msg("write frame")
		}
	}
}

// PushDiag sends d to every /diag client. It fits diagnostics.Board.Subscribe.
func (s *Hub) PushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}
