package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lingyuqian0301/ev-stage-2/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite, memory
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
}

// ChainConfig 结算付款所用的链配置
type ChainConfig struct {
	Enabled     bool   `mapstructure:"enabled"`      // 关闭时不做链上付款
	ChainId     int64  `mapstructure:"chain_id"`     // 链ID
	RpcUrl      string `mapstructure:"rpc_url"`      // RPC节点URL
	PrivateKey  string `mapstructure:"private_key"`  // 付款账户私钥
	AmountScale int64  `mapstructure:"amount_scale"` // 账本单位到 wei 的倍数
	GasLimit    uint64 `mapstructure:"gas_limit"`
}

type TaskConfig struct {
	Interval           int `mapstructure:"interval"`            // 过期扫描间隔，秒
	SettlementInterval int `mapstructure:"settlement_interval"` // 结算间隔，秒
	SettlementWorkers  int `mapstructure:"settlement_workers"`  // 结算协程池大小
	MaxAttempts        int `mapstructure:"max_attempts"`        // 单条结算最大尝试次数
}

type LogConfig struct {
	Level      string `mapstructure:"level"`       // 日志级别: debug, info, warn, error, fatal
	Output     string `mapstructure:"output"`      // 输出目标: stdout, stderr, file
	File       string `mapstructure:"file"`        // 日志文件路径（当output为file时使用）
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 单个文件上限
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// GetRotation 实现 logger.LogConfig 接口
func (l LogConfig) GetRotation() logger.Rotation {
	return logger.Rotation{
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "evfund")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/evfund.db")
	v.SetDefault("chain.enabled", false)
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.amount_scale", 1)
	v.SetDefault("chain.gas_limit", 21000)
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.settlement_interval", 30)
	v.SetDefault("task.settlement_workers", 4)
	v.SetDefault("task.max_attempts", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Task.Interval <= 0 || c.Task.SettlementInterval <= 0 {
		return errors.New("task intervals must be positive")
	}
	if c.Task.SettlementWorkers <= 0 {
		return errors.New("task.settlement_workers must be positive")
	}
	if c.Task.MaxAttempts <= 0 {
		return errors.New("task.max_attempts must be positive")
	}
	if c.Chain.Enabled {
		if c.Chain.RpcUrl == "" || c.Chain.PrivateKey == "" {
			return errors.New("chain.rpc_url and chain.private_key are required when chain is enabled")
		}
		if c.Chain.AmountScale <= 0 {
			return errors.New("chain.amount_scale must be positive")
		}
	}
	return nil
}

// LoadFile 从指定文件加载配置，path 为空时按默认路径查找 config.yaml
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/evfund")
	}

	setDefaults(v)

	// 环境变量覆盖，例如 EVFUND_DATABASE_DRIVER
	v.SetEnvPrefix("EVFUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func Load() *Config {
	config, err := LoadFile("")
	if err != nil {
		logger.Fatal("Unable to load config: %v", err)
	}
	return config
}
