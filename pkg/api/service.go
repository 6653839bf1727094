package api

import (
	cdphost "cdprules/internal/cdp"
	"cdprules/internal/config"
	"cdprules/internal/logger"
	"cdprules/internal/service"
	"cdprules/internal/storage"
	"cdprules/pkg/domain"
)

// Service 服务接口
type Service interface {
	// Start 附加目标并启用拦截，target 为空时取第一个页面目标
	Start(target string) error

	// Stop 停止会话
	Stop() error

	// Reload 整体重新加载规则配置
	Reload() error

	// PutRule 写入规则
	PutRule(rule domain.Rule) error

	// DeleteRule 删除规则
	DeleteRule(id domain.RuleID) error

	// SetDisabled 切换全局开关
	SetDisabled(disabled bool) error

	// Records 查询标签页的记录序列，tab 为空时取当前标签页
	Records(tab domain.TabID) ([]domain.Record, bool)

	// ActiveTab 当前附加的标签页
	ActiveTab() domain.TabID

	// Events 订阅事件流
	Events() <-chan domain.Event
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger) (Service, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if l == nil {
		l = logger.NewNop()
	}
	store, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, l)
	if err != nil {
		return nil, err
	}
	host := cdphost.New(cfg.DevToolsURL, cfg.ProcessTimeoutMS, l)
	return service.New(host, store, l), nil
}
