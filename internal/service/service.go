package service

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"cdprules/internal/dispatch"
	"cdprules/internal/logger"
	"cdprules/internal/notify"
	"cdprules/internal/records"
	"cdprules/internal/registry"
	"cdprules/internal/rules"
	"cdprules/pkg/domain"
)

// Host 宿主端口：拦截钩子 + 标签页导航 + 目标生命周期
type Host interface {
	registry.Host
	dispatch.TabNavigator

	Attach(target string) error
	Detach() error
	EnableInterception() error
	DisableInterception() error
	SetCommitSink(fn func(domain.NavigationCommit))
	SetTabClosedSink(fn func(domain.TabID))
	Tab() domain.TabID
}

// ConfigSource 配置快照来源（持久化协作者），每次变更整体重新加载
type ConfigSource interface {
	Snapshot() (domain.Snapshot, error)
	Put(rule domain.Rule) error
	Delete(id domain.RuleID) error
	SetDisabled(disabled bool) error
}

// Service 进程级实例，持有全部可变状态并负责生命周期
type Service struct {
	mu  sync.Mutex
	id  domain.SessionID
	log logger.Logger

	host   Host
	source ConfigSource

	events     chan domain.Event
	notifier   notify.Notifier
	store      *records.Store
	engine     *rules.Engine
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	reconciler *records.Reconciler

	started bool
}

// New 创建服务实例并完成内部装配
func New(host Host, source ConfigSource, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	s := &Service{
		id:     domain.SessionID(uuid.NewString()),
		log:    l,
		host:   host,
		source: source,
		events: make(chan domain.Event, 256),
	}
	s.notifier = notify.NewEventNotifier(s.events, l)
	s.store = records.NewStore(l)
	s.engine = rules.NewEngine(l)
	s.dispatcher = dispatch.New(s.engine, s.store, s.notifier, host, l)
	s.registry = registry.New(host, s.engine, s.engine, s.notifier, s.dispatcher.Resolve, l)
	s.reconciler = records.NewReconciler(s.store, s.notifier, l)

	host.SetCommitSink(s.reconciler.OnCommit)
	host.SetTabClosedSink(s.onTabRemoved)
	return s
}

// Start 附加目标、启用拦截并加载配置
func (s *Service) Start(target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("already started")
	}
	if err := s.host.Attach(target); err != nil {
		return err
	}
	if err := s.host.EnableInterception(); err != nil {
		s.host.Detach()
		return err
	}
	s.started = true
	s.log.Info("会话已启动", "session", string(s.id), "tab", string(s.host.Tab()))
	return s.reloadLocked()
}

// Stop 拆除钩子并断开目标
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.registry.Uninstall()
	if err := s.host.DisableInterception(); err != nil {
		s.log.Warn("关闭拦截失败", "error", err.Error())
	}
	s.started = false
	s.log.Info("会话已停止", "session", string(s.id))
	return s.host.Detach()
}

// Reload 配置变更入口：整体拆除重建，无增量更新
func (s *Service) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *Service) reloadLocked() error {
	snap, err := s.source.Snapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.registry.Uninstall()
	s.engine.Reset()

	if snap.Disabled {
		all := s.store.Drain()
		s.notifier.DisabledState(all)
		s.log.Info("配置为禁用态，已清空历史", "tabs", len(all))
		return nil
	}

	n := s.registry.Install(snap.Rules)
	s.notifier.EnabledState()
	s.log.Info("配置已加载", "installed", n, "rules", len(snap.Rules))
	return nil
}

// PutRule 写入规则并触发整体重建
func (s *Service) PutRule(rule domain.Rule) error {
	if rule.ID == "" {
		rule.ID = rules.NewRuleID()
	}
	if err := s.source.Put(rule); err != nil {
		return err
	}
	return s.Reload()
}

// DeleteRule 删除规则并触发整体重建
func (s *Service) DeleteRule(id domain.RuleID) error {
	if err := s.source.Delete(id); err != nil {
		return err
	}
	return s.Reload()
}

// SetDisabled 切换全局开关并触发整体重建
func (s *Service) SetDisabled(disabled bool) error {
	if err := s.source.SetDisabled(disabled); err != nil {
		return err
	}
	return s.Reload()
}

// Records 查询标签页的记录序列；tab 为空时取当前附加标签页
func (s *Service) Records(tab domain.TabID) ([]domain.Record, bool) {
	if tab == "" {
		tab = s.host.Tab()
	}
	return s.store.Get(tab)
}

// ActiveTab 返回当前附加的标签页
func (s *Service) ActiveTab() domain.TabID {
	return s.host.Tab()
}

// Events 对外事件流
func (s *Service) Events() <-chan domain.Event {
	return s.events
}

// Installed 当前安装的规则钩子数
func (s *Service) Installed() int {
	return s.registry.Installed()
}

func (s *Service) onTabRemoved(tab domain.TabID) {
	s.store.Remove(tab)
	s.log.Info("标签页已关闭，历史已删除", "tab", string(tab))
}
