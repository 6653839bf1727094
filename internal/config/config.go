package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	// DevToolsURL 浏览器调试端点
	DevToolsURL string `yaml:"devToolsURL"`

	// ProcessTimeoutMS 裁决落地（continue/fail/redirect）的超时时间
	ProcessTimeoutMS int `yaml:"processTimeoutMS"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{
		Version:          "1.0.0",
		DevToolsURL:      "http://127.0.0.1:9222",
		ProcessTimeoutMS: 3000,
	}
	c.Sqlite.Dsn = "db.sqlite3"
	c.Sqlite.Prefix = "cdprules_"
	c.Log.Level = "debug"
	c.Log.Writer = []string{"console", "file"}
	c.Log.File = "cdprules.log"
	return c
}

// Load 从 YAML 文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
