package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketAdapter WebSocket集成适配器
// 四方法生命周期：未连接时 Send/Receive 直接失败
type WebSocketAdapter struct {
	name  string
	url   string
	conn  *websocket.Conn
	mutex sync.Mutex
}

// NewWebSocketAdapter 创建WebSocket适配器
func NewWebSocketAdapter(name, url string) *WebSocketAdapter {
	return &WebSocketAdapter{
		name: name,
		url:  url,
	}
}

// Name 适配器名称
func (a *WebSocketAdapter) Name() string {
	return a.name
}

// Connect 建立WebSocket连接，重复连接时先关闭旧连接
func (a *WebSocketAdapter) Connect(ctx context.Context) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.conn != nil {
		a.conn.Close()
		log.Printf("🔗 [WS适配器-%s] 旧连接已关闭，重新建立", a.name)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return fmt.Errorf("WebSocket连接失败 %s: %w", a.url, err)
	}

	a.conn = conn
	log.Printf("🔗 [WS适配器-%s] 已连接: %s", a.name, a.url)
	return nil
}

// Disconnect 发送关闭帧并断开连接
func (a *WebSocketAdapter) Disconnect() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.conn == nil {
		return nil
	}

	a.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := a.conn.Close()
	a.conn = nil

	log.Printf("🔗 [WS适配器-%s] 已断开", a.name)
	return err
}

// Send 发送JSON消息，未连接时失败
func (a *WebSocketAdapter) Send(ctx context.Context, payload interface{}) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.conn == nil {
		return fmt.Errorf("适配器 %s 未连接，无法发送", a.name)
	}

	if deadline, ok := ctx.Deadline(); ok {
		a.conn.SetWriteDeadline(deadline)
	}
	return a.conn.WriteJSON(payload)
}

// Receive 接收一条JSON消息，未连接时失败
func (a *WebSocketAdapter) Receive(ctx context.Context) (interface{}, error) {
	a.mutex.Lock()
	conn := a.conn
	a.mutex.Unlock()

	if conn == nil {
		return nil, fmt.Errorf("适配器 %s 未连接，无法接收", a.name)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}

	var payload interface{}
	if err := conn.ReadJSON(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// IsConnected 当前连接状态
func (a *WebSocketAdapter) IsConnected() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.conn != nil
}
