package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// HTTPAdapter HTTP集成适配器
// "连接"语义实现为对端点的一次可达性探测；Send为POST，Receive为GET
type HTTPAdapter struct {
	name      string
	endpoint  string
	client    *http.Client
	connected bool
	mutex     sync.Mutex
}

// NewHTTPAdapter 创建HTTP适配器
func NewHTTPAdapter(name, endpoint string) *HTTPAdapter {
	return &HTTPAdapter{
		name:     name,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name 适配器名称
func (a *HTTPAdapter) Name() string {
	return a.name
}

// Connect 探测端点可达性，成功后进入已连接状态
func (a *HTTPAdapter) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint, nil)
	if err != nil {
		return fmt.Errorf("构造探测请求失败: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("端点不可达 %s: %w", a.endpoint, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	a.mutex.Lock()
	a.connected = true
	a.mutex.Unlock()

	log.Printf("🔗 [HTTP适配器-%s] 已连接: %s (状态码: %d)", a.name, a.endpoint, resp.StatusCode)
	return nil
}

// Disconnect 退出已连接状态
func (a *HTTPAdapter) Disconnect() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.connected = false
	a.client.CloseIdleConnections()
	log.Printf("🔗 [HTTP适配器-%s] 已断开", a.name)
	return nil
}

// Send POST一条JSON消息到端点，未连接时失败
func (a *HTTPAdapter) Send(ctx context.Context, payload interface{}) error {
	if !a.IsConnected() {
		return fmt.Errorf("适配器 %s 未连接，无法发送", a.name)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("消息序列化失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("发送失败，端点返回状态码 %d", resp.StatusCode)
	}
	return nil
}

// Receive GET端点并解析JSON响应，未连接时失败
func (a *HTTPAdapter) Receive(ctx context.Context) (interface{}, error) {
	if !a.IsConnected() {
		return nil, fmt.Errorf("适配器 %s 未连接，无法接收", a.name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("响应解析失败: %w", err)
	}
	return payload, nil
}

// IsConnected 当前连接状态
func (a *HTTPAdapter) IsConnected() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.connected
}
