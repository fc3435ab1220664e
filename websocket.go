package aeris

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketState is one side's position in the CONNECTING → CONNECTED →
// DISCONNECTED state machine (spec.md §4.6). Client and application sides
// are tracked independently.
type WebSocketState int

const (
	WebSocketConnecting WebSocketState = iota
	WebSocketConnected
	WebSocketDisconnected
)

func (s WebSocketState) String() string {
	switch s {
	case WebSocketConnecting:
		return "CONNECTING"
	case WebSocketConnected:
		return "CONNECTED"
	case WebSocketDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// WebSocket is the application-side view of a WebSocket exchange. It tracks
// both the client's and the application's state independently, since the
// client transitions to CONNECTED on the incoming websocket.connect event
// while the application only reaches CONNECTED once it calls Accept.
type WebSocket struct {
	mu            sync.Mutex
	conn          *websocket.Conn
	clientState   WebSocketState
	appState      WebSocketState
	closeCode     int
	acceptHeaders Header
}

func newWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn, clientState: WebSocketConnecting, appState: WebSocketConnecting}
}

func (ws *WebSocket) requireAppState(party string, expected WebSocketState) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.appState != expected {
		return &InvalidWebSocketStateError{Party: party, Expected: expected, Current: ws.appState}
	}
	return nil
}

// Accept moves both the client and the application side to CONNECTED. It
// sends nothing itself: the upgrade handshake has already been completed,
// with no extra response headers, before the handler runs, so headers is
// only recorded on the WebSocket and is not sent to the client. It is only
// valid while the application side is still CONNECTING.
func (ws *WebSocket) Accept(headers Header) error {
	if err := ws.requireAppState("application", WebSocketConnecting); err != nil {
		return err
	}

	ws.mu.Lock()
	ws.clientState = WebSocketConnected
	ws.appState = WebSocketConnected
	ws.acceptHeaders = headers
	ws.mu.Unlock()

	return nil
}

// Close emits websocket.close with the given status code, moving both
// sides to DISCONNECTED.
func (ws *WebSocket) Close(code int) error {
	ws.mu.Lock()
	ws.clientState = WebSocketDisconnected
	ws.appState = WebSocketDisconnected
	ws.closeCode = code
	ws.mu.Unlock()

	return ws.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
	)
}

// Receive reads one message, returning its opcode and bytes. A
// websocket.disconnect event (a close frame, or a read error after one)
// moves both sides to DISCONNECTED and returns *WebSocketDisconnectError.
func (ws *WebSocket) Receive() (messageType int, data []byte, err error) {
	if err := ws.requireAppState("application", WebSocketConnected); err != nil {
		return 0, nil, err
	}

	messageType, data, err = ws.conn.ReadMessage()
	if err != nil {
		code := websocket.CloseNoStatusReceived
		if closeErr, ok := err.(*websocket.CloseError); ok {
			code = closeErr.Code
		}
		ws.mu.Lock()
		ws.clientState = WebSocketDisconnected
		ws.appState = WebSocketDisconnected
		ws.closeCode = code
		ws.mu.Unlock()
		return 0, nil, &WebSocketDisconnectError{Code: code}
	}
	return messageType, data, nil
}

// ReceiveText reads one text message.
func (ws *WebSocket) ReceiveText() (string, error) {
	_, data, err := ws.Receive()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReceiveBytes reads one binary message.
func (ws *WebSocket) ReceiveBytes() ([]byte, error) {
	_, data, err := ws.Receive()
	return data, err
}

// ReceiveJSON reads one message and unmarshals it into v.
func (ws *WebSocket) ReceiveJSON(v interface{}) error {
	_, data, err := ws.Receive()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SendText sends a text message. Valid only once the application side has
// accepted the connection.
func (ws *WebSocket) SendText(text string) error {
	if err := ws.requireAppState("application", WebSocketConnected); err != nil {
		return err
	}
	return ws.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// SendBytes sends a binary message.
func (ws *WebSocket) SendBytes(b []byte) error {
	if err := ws.requireAppState("application", WebSocketConnected); err != nil {
		return err
	}
	return ws.conn.WriteMessage(websocket.BinaryMessage, b)
}

// SendJSON marshals v and sends it as a text message.
func (ws *WebSocket) SendJSON(v interface{}) error {
	if err := ws.requireAppState("application", WebSocketConnected); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

// ClientState and AppState report each side's current position.
func (ws *WebSocket) ClientState() WebSocketState {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.clientState
}

func (ws *WebSocket) AppState() WebSocketState {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.appState
}

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
