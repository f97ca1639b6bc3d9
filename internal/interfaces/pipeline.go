package interfaces

import (
	"context"

	"github.com/enhancekeeper/service/internal/models"
)

// 管道能力接口定义 ---------------------------------
// 策略与适配器均为运行时注册的插件表实现，不使用继承

// Operation 调用方提供的操作
// 既可同步返回，也可在内部挂起等待；唯一的挂起点由编排器负责 await
type Operation func(ctx context.Context) (interface{}, error)

// HealingStrategy 自愈策略能力接口（匹配/执行两段式）
type HealingStrategy interface {
	// ID 返回策略唯一标识
	ID() string

	// Name 返回策略名称，记录到自愈尝试中
	Name() string

	// Description 返回策略的可读描述
	Description() string

	// Priority 返回策略优先级，引擎按 critical→low 排序扫描
	Priority() models.Priority

	// Matches 判断该策略是否适用于给定的错误文本
	Matches(errorText string) bool

	// Heal 执行恢复动作，返回是否恢复成功
	// 内部的退避等待必须响应 ctx 取消
	Heal(ctx context.Context) (bool, error)
}

// IntegrationAdapter 集成适配器能力接口（四方法生命周期）
// 成功以 nil error 表示；未连接时 Send/Receive 必须失败
type IntegrationAdapter interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, payload interface{}) error
	Receive(ctx context.Context) (interface{}, error)
	IsConnected() bool
}

// Logger 日志协作方接口
// 日志失败绝不允许影响管道结果（即发即忘）
type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
}
