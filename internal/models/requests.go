package models

// API请求/响应模型 ---------------------------------

// ExecuteOperationRequest 执行操作请求
// API层根据该描述构造一个合成操作交给编排器执行
type ExecuteOperationRequest struct {
	Name         string      `json:"name"`
	Fail         bool        `json:"fail,omitempty"`         // 模拟操作失败
	ErrorMessage string      `json:"errorMessage,omitempty"` // 失败时的错误文本
	DelayMs      int         `json:"delayMs,omitempty"`      // 模拟操作耗时
	Payload      interface{} `json:"payload,omitempty"`      // 成功时返回的数据
}

// APIResponse 统一响应信封
// 处理器抛出的错误一律转换为 {success:false, error}，不向外传播
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// RecordPatternRequest 记录学习模式请求
type RecordPatternRequest struct {
	Pattern  string                 `json:"pattern"`
	Success  bool                   `json:"success"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RegisterAdapterRequest 注册集成适配器请求
type RegisterAdapterRequest struct {
	Name string `json:"name"`
	Type string `json:"type"` // websocket / http
	URL  string `json:"url"`
}
