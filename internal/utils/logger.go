package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TraceID 键名
const TraceIDKey = "traceId"

// InitLogSystem 初始化日志系统
// 标准log与logrus统一输出到标准输出，便于云端通过 docker logs 查看
func InitLogSystem() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
		DisableColors:   true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", f.File, f.Line)
		},
	})
	logrus.SetReportCaller(true)
	logrus.SetOutput(os.Stdout)

	log.Printf("日志系统初始化完成")
}

// GenerateTraceID 生成TraceID
func GenerateTraceID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return fmt.Sprintf("%x", bytes)
}

// PipelineLogger 管道日志协作方，logrus实现
// 日志调用即发即忘，任何内部异常都不会影响管道结果
type PipelineLogger struct {
	entry *logrus.Entry
}

// NewPipelineLogger 创建指定组件的日志实例
func NewPipelineLogger(component string) *PipelineLogger {
	return &PipelineLogger{
		entry: logrus.WithField("component", component),
	}
}

// Info 记录信息日志
func (l *PipelineLogger) Info(message string, fields map[string]interface{}) {
	defer swallowLogPanic()
	l.entry.WithFields(logrus.Fields(fields)).Info(message)
}

// Error 记录错误日志
func (l *PipelineLogger) Error(message string, fields map[string]interface{}) {
	defer swallowLogPanic()
	l.entry.WithFields(logrus.Fields(fields)).Error(message)
}

// 日志失败绝不外溢
func swallowLogPanic() {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "日志记录异常(已忽略): %v\n", r)
	}
}

// Gin中间件：TraceID处理
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头获取TraceID，没有则生成新的
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = GenerateTraceID()
		}

		c.Set(TraceIDKey, traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()
	}
}

// GetTraceIDFromGin 从Gin上下文获取TraceID
func GetTraceIDFromGin(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// WithTraceID 将TraceID放入标准context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceIDFromContext 从标准context获取TraceID
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
