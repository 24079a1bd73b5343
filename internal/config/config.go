// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	GenAI     GenAIConfig     `mapstructure:"genai"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	FAQ       FAQConfig       `mapstructure:"faq"`
	Chat      ChatConfig      `mapstructure:"chat"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// GenAIConfig 存储文本生成服务相关的配置。
// Models 是按优先级排列的模型列表，网关按顺序逐个尝试。
type GenAIConfig struct {
	APIKey  string   `mapstructure:"api_key"`
	BaseURL string   `mapstructure:"base_url"`
	Models  []string `mapstructure:"models"`
	// AttemptTimeoutSeconds 是单个模型一次调用的超时上限，
	// 超时按配额耗尽处理（换下一个模型继续）。
	AttemptTimeoutSeconds int `mapstructure:"attempt_timeout_seconds"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// FAQConfig 存储 FAQ 匹配相关的配置。
type FAQConfig struct {
	// SimilarityThreshold 是命中 FAQ 的余弦相似度阈值。
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// ChatConfig 存储聊天编排相关的配置。
type ChatConfig struct {
	// HistoryTurns 是拼入 prompt 的最近历史轮数上限。
	HistoryTurns int `mapstructure:"history_turns"`
	// LogTTLHours 是 Redis 聊天记录的过期时间（小时）。
	LogTTLHours int `mapstructure:"log_ttl_hours"`
	// ContextTTLMinutes 是商品上下文的过期时间（分钟）。
	ContextTTLMinutes int `mapstructure:"context_ttl_minutes"`
	// SessionTTLMinutes 是用户信息缓存的过期时间（分钟）。
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults(&Conf)
}

// applyDefaults 为缺省项填入默认值，保证配置文件不完整时也能启动。
func applyDefaults(c *Config) {
	if c.GenAI.AttemptTimeoutSeconds <= 0 {
		c.GenAI.AttemptTimeoutSeconds = 30
	}
	if c.FAQ.SimilarityThreshold <= 0 {
		c.FAQ.SimilarityThreshold = 0.8
	}
	if c.Chat.HistoryTurns <= 0 {
		c.Chat.HistoryTurns = 5
	}
	if c.Chat.LogTTLHours <= 0 {
		c.Chat.LogTTLHours = 24
	}
	if c.Chat.ContextTTLMinutes <= 0 {
		c.Chat.ContextTTLMinutes = 60
	}
	if c.Chat.SessionTTLMinutes <= 0 {
		c.Chat.SessionTTLMinutes = 60
	}
}
