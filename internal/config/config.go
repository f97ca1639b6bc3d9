package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// 配置取值范围
const (
	MinMonitoringInterval = 1 * time.Second
	MaxMonitoringInterval = 1 * time.Hour
	MinRecommendationCap  = 1
	MaxRecommendationCap  = 100
)

// Config 应用配置
type Config struct {
	// 服务配置
	ServiceName string
	Port        int
	Host        string
	Debug       bool
	GinMode     string

	// 管道配置
	MinEnhancementLevel         int           // 增强级别下限（API查询默认过滤线），默认110(enhanced)
	EnableSelfHealing           bool          // 自愈开关
	EnableSelfLearning          bool          // 自学习开关
	EnableContinuousImprovement bool          // 持续改进开关（控制增强与建议的产出）
	MonitoringInterval          time.Duration // 指标刷新间隔，[1s, 1h]
	MaxRecommendations          int           // 单次执行返回的建议数上限，[1, 100]

	// 集成适配器配置（可选，为空则不注册）
	WebSocketAdapterURL string
	HTTPAdapterURL      string
}

// Load 从环境变量加载配置
func Load() *Config {
	// 尝试加载.env文件，优先config目录，兼容根目录
	envPaths := []string{
		"config/.env",
		".env",
	}

	loaded := false
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				log.Printf("成功加载.env文件: %s", path)
				loaded = true
				break
			}
		}
	}

	if !loaded {
		log.Printf("警告: 未找到.env文件，使用系统环境变量")
	}

	config := &Config{
		// 服务配置默认值
		ServiceName: getEnv("SERVICE_NAME", "enhance-keeper"),
		Port:        getEnvAsInt("PORT", 8090),
		Host:        getEnv("HOST", "0.0.0.0"),
		Debug:       getEnvAsBool("DEBUG", false),
		GinMode:     getEnv("GIN_MODE", "release"),

		// 管道配置默认值
		MinEnhancementLevel:         getEnvAsInt("MIN_ENHANCEMENT_LEVEL", 110),
		EnableSelfHealing:           getEnvAsBool("ENABLE_SELF_HEALING", true),
		EnableSelfLearning:          getEnvAsBool("ENABLE_SELF_LEARNING", true),
		EnableContinuousImprovement: getEnvAsBool("ENABLE_CONTINUOUS_IMPROVEMENT", true),
		MonitoringInterval:          getEnvAsDuration("MONITORING_INTERVAL", 60*time.Second),
		MaxRecommendations:          getEnvAsInt("MAX_RECOMMENDATIONS", 50),

		// 集成适配器配置
		WebSocketAdapterURL: getEnv("WS_ADAPTER_URL", ""),
		HTTPAdapterURL:      getEnv("HTTP_ADAPTER_URL", ""),
	}

	config.clamp()
	return config
}

// clamp 将越界配置收敛到允许区间
func (c *Config) clamp() {
	if c.MonitoringInterval < MinMonitoringInterval {
		log.Printf("警告: MONITORING_INTERVAL %v 低于下限，已调整为 %v", c.MonitoringInterval, MinMonitoringInterval)
		c.MonitoringInterval = MinMonitoringInterval
	}
	if c.MonitoringInterval > MaxMonitoringInterval {
		log.Printf("警告: MONITORING_INTERVAL %v 超过上限，已调整为 %v", c.MonitoringInterval, MaxMonitoringInterval)
		c.MonitoringInterval = MaxMonitoringInterval
	}
	if c.MaxRecommendations < MinRecommendationCap {
		c.MaxRecommendations = MinRecommendationCap
	}
	if c.MaxRecommendations > MaxRecommendationCap {
		c.MaxRecommendations = MaxRecommendationCap
	}
}

// String 返回配置的字符串表示
func (c *Config) String() string {
	return fmt.Sprintf(
		"服务名称: %s, 端口: %d, 调试模式: %v, 自愈: %v, 自学习: %v, 持续改进: %v, "+
			"指标刷新间隔: %v, 建议数上限: %d, 增强级别下限: %d",
		c.ServiceName, c.Port, c.Debug, c.EnableSelfHealing, c.EnableSelfLearning,
		c.EnableContinuousImprovement, c.MonitoringInterval, c.MaxRecommendations,
		c.MinEnhancementLevel,
	)
}

// 从环境变量获取字符串值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// 从环境变量获取整数值
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取布尔值
func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return defaultValue
}

// 从环境变量获取时间值
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return defaultValue
}
