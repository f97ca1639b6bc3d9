package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/enhancekeeper/service/internal/interfaces"
)

// IntegrationManager 集成适配器管理器
// 按名称注册适配器；connectAll/disconnectAll 仅在全部适配器成功时才算成功
type IntegrationManager struct {
	adapters map[string]interfaces.IntegrationAdapter
	order    []string // 注册顺序，保证批量操作的确定性
	mutex    sync.RWMutex
}

// NewIntegrationManager 创建集成管理器
func NewIntegrationManager() *IntegrationManager {
	return &IntegrationManager{
		adapters: make(map[string]interfaces.IntegrationAdapter),
		order:    make([]string, 0),
	}
}

// Register 注册命名适配器，名称重复时报错
func (m *IntegrationManager) Register(adapter interfaces.IntegrationAdapter) error {
	if adapter == nil {
		return fmt.Errorf("适配器不能为空")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	name := adapter.Name()
	if _, exists := m.adapters[name]; exists {
		return fmt.Errorf("适配器已存在: %s", name)
	}

	m.adapters[name] = adapter
	m.order = append(m.order, name)

	log.Printf("🔌 [集成管理器] 适配器已注册: %s (当前总数: %d)", name, len(m.adapters))
	return nil
}

// Get 按名称获取适配器
func (m *IntegrationManager) Get(name string) (interfaces.IntegrationAdapter, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	adapter, exists := m.adapters[name]
	return adapter, exists
}

// Names 返回已注册适配器名称，按注册顺序
func (m *IntegrationManager) Names() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	names := make([]string, len(m.order))
	copy(names, m.order)
	return names
}

// ConnectAll 连接全部适配器
// 逐个尝试不提前中断，任何一个失败则整体失败并汇总错误
func (m *IntegrationManager) ConnectAll(ctx context.Context) error {
	m.mutex.RLock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	adapters := make(map[string]interfaces.IntegrationAdapter, len(m.adapters))
	for name, adapter := range m.adapters {
		adapters[name] = adapter
	}
	m.mutex.RUnlock()

	failures := make([]string, 0)
	for _, name := range names {
		if err := adapters[name].Connect(ctx); err != nil {
			log.Printf("🔌 [集成管理器] ❌ 适配器 %s 连接失败: %v", name, err)
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		} else {
			log.Printf("🔌 [集成管理器] ✅ 适配器 %s 连接成功", name)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("部分适配器连接失败: %s", strings.Join(failures, "; "))
	}
	return nil
}

// DisconnectAll 断开全部适配器，任何一个失败则整体失败
func (m *IntegrationManager) DisconnectAll() error {
	m.mutex.RLock()
	names := make([]string, len(m.order))
	copy(names, m.order)
	adapters := make(map[string]interfaces.IntegrationAdapter, len(m.adapters))
	for name, adapter := range m.adapters {
		adapters[name] = adapter
	}
	m.mutex.RUnlock()

	failures := make([]string, 0)
	for _, name := range names {
		if err := adapters[name].Disconnect(); err != nil {
			log.Printf("🔌 [集成管理器] ❌ 适配器 %s 断开失败: %v", name, err)
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("部分适配器断开失败: %s", strings.Join(failures, "; "))
	}
	return nil
}

// Status 返回各适配器的连接状态
func (m *IntegrationManager) Status() map[string]bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	status := make(map[string]bool, len(m.adapters))
	for name, adapter := range m.adapters {
		status[name] = adapter.IsConnected()
	}
	return status
}
