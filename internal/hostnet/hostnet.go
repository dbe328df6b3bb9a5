// Package hostnet is a DOMAIN STACK bridge: it exposes WebSocket client
// connections to TinyScript scripts as native functions, adapted from the
// reference implementation's WebSocketConn/readMessages connect-then-drain-
// in-a-goroutine design, re-addressed through the VM's native-call
// mechanism and a uuid-keyed handle instead of a `network` module object.
package hostnet

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tinyscript/internal/value"
)

type conn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
	inbox  chan []byte
}

// Bridge owns a pool of open client connections, keyed by a host-generated
// handle string scripts pass back into subsequent calls.
type Bridge struct {
	mu    sync.Mutex
	conns map[string]*conn
}

// NewBridge returns an empty connection pool.
func NewBridge() *Bridge {
	return &Bridge{conns: make(map[string]*conn)}
}

// Register installs this bridge's native functions onto vm under the
// "Ws.*" qualified names a script reaches via the flattened "Ws_connect"
// etc. member-access convention (see DESIGN.md's native-dispatch decision).
func (b *Bridge) Register(register func(name string, fn func([]value.Value) (value.Value, error))) {
	register("Ws.connect", b.connect)
	register("Ws.send", b.send)
	register("Ws.receive", b.receive)
	register("Ws.close", b.close)
}

// connect implements Ws.connect(url) -> handle.
func (b *Bridge) connect(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("Ws.connect expects (url)")
	}
	url, ok := args[0].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Ws.connect: url must be a string")
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return value.Value{}, fmt.Errorf("websocket dial failed: %w", err)
	}

	c := &conn{ws: ws, inbox: make(chan []byte, 100)}
	go c.readLoop()

	handle := uuid.NewString()
	b.mu.Lock()
	b.conns[handle] = c
	b.mu.Unlock()
	return value.String(handle), nil
}

func (c *conn) readLoop() {
	defer close(c.inbox)
	for {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		select {
		case c.inbox <- data:
		default:
			<-c.inbox
			c.inbox <- data
		}
	}
}

func (b *Bridge) get(handle string) (*conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conns[handle]
	if !ok {
		return nil, fmt.Errorf("unknown websocket handle: %s", handle)
	}
	return c, nil
}

// send implements Ws.send(handle, message).
func (b *Bridge) send(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, fmt.Errorf("Ws.send expects (handle, message)")
	}
	handle, ok := args[0].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Ws.send: handle must be a string")
	}
	msg, ok := args[1].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Ws.send: message must be a string")
	}
	c, err := b.get(handle)
	if err != nil {
		return value.Value{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return value.Value{}, fmt.Errorf("websocket connection is closed")
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return value.Value{}, err
	}
	return value.Null, nil
}

// receive implements Ws.receive(handle, timeoutSeconds) -> message string,
// or a runtime error if the timeout elapses first.
func (b *Bridge) receive(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, fmt.Errorf("Ws.receive expects (handle, timeoutSeconds)")
	}
	handle, ok := args[0].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Ws.receive: handle must be a string")
	}
	c, err := b.get(handle)
	if err != nil {
		return value.Value{}, err
	}

	timeout := 10 * time.Second
	if secs, ok := args[1].AsInteger(); ok {
		timeout = time.Duration(secs) * time.Second
	} else if secs, ok := args[1].AsFloat(); ok {
		timeout = time.Duration(secs * float32(time.Second))
	}

	select {
	case msg, ok := <-c.inbox:
		if !ok {
			return value.Value{}, fmt.Errorf("websocket connection closed")
		}
		return value.String(string(msg)), nil
	case <-time.After(timeout):
		return value.Value{}, fmt.Errorf("websocket receive timeout")
	}
}

// close implements Ws.close(handle).
func (b *Bridge) close(args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, fmt.Errorf("Ws.close expects (handle)")
	}
	handle, ok := args[0].AsString()
	if !ok {
		return value.Value{}, fmt.Errorf("Ws.close: handle must be a string")
	}
	b.mu.Lock()
	c, ok := b.conns[handle]
	if ok {
		delete(b.conns, handle)
	}
	b.mu.Unlock()
	if !ok {
		return value.Value{}, fmt.Errorf("unknown websocket handle: %s", handle)
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return value.Null, c.ws.Close()
}

// CloseAll closes every open connection, for use at host shutdown.
func (b *Bridge) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for handle, c := range b.conns {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.ws.Close()
		delete(b.conns, handle)
	}
}
