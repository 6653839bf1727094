package registry

import (
	"sync"

	"cdprules/internal/logger"
	"cdprules/internal/notify"
	"cdprules/pkg/domain"
)

// Host 宿主拦截端口，由 CDP 适配层实现
type Host interface {
	// AddMarkHook 安装单条规则的非阻塞标记钩子，按过滤器筛选请求
	AddMarkHook(f domain.Filter, fn func(domain.Request)) error
	// SetResolveHook 安装唯一的全量阻塞钩子，宿主在拿到裁决前不放行请求
	SetResolveHook(fn func(domain.Request) domain.Decision) error
	// ClearHooks 移除全部已安装钩子
	ClearHooks() error
	// InvalidateHandlerCache 使宿主的请求处理缓存失效，让新钩子对在途协商生效
	InvalidateHandlerCache() error
}

// Compiler 规则编译端口（外部协作者）
type Compiler interface {
	Compile(rule domain.Rule) (domain.Filter, error)
}

// Marker 挂起标记端口，归外部解析器所有
type Marker interface {
	Mark(requestID string, rule domain.Rule)
}

// Registry 规则监听注册表：配置加载时整体安装，变更时整体拆除重建
type Registry struct {
	mu       sync.Mutex
	host     Host
	compiler Compiler
	marker   Marker
	notifier notify.Notifier
	resolve  func(domain.Request) domain.Decision
	log      logger.Logger

	installed int
}

// New 创建注册表
func New(host Host, compiler Compiler, marker Marker, n notify.Notifier, resolve func(domain.Request) domain.Decision, l logger.Logger) *Registry {
	if l == nil {
		l = logger.NewNop()
	}
	return &Registry{
		host:     host,
		compiler: compiler,
		marker:   marker,
		notifier: n,
		resolve:  resolve,
		log:      l,
	}
}

// Install 为每条激活规则安装标记钩子，再装唯一的阻塞解析钩子。
// 单条规则编译失败只跳过该规则并上报错误，不影响其余规则。
// 返回成功安装的规则数。
func (r *Registry) Install(rules []domain.Rule) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for i := range rules {
		rule := rules[i]
		if !rule.Active {
			continue
		}
		filter, err := r.compiler.Compile(rule)
		if err != nil {
			r.log.Warn("规则编译失败，跳过", "rule", string(rule.ID), "error", err.Error())
			r.notifier.Error("", err.Error())
			continue
		}
		if err := r.host.AddMarkHook(filter, func(req domain.Request) {
			r.marker.Mark(req.ID, rule)
		}); err != nil {
			r.log.Warn("标记钩子安装失败，跳过", "rule", string(rule.ID), "error", err.Error())
			r.notifier.Error("", err.Error())
			continue
		}
		count++
	}

	if err := r.host.SetResolveHook(r.resolve); err != nil {
		r.log.Err(err, "阻塞钩子安装失败")
	}
	if err := r.host.InvalidateHandlerCache(); err != nil {
		r.log.Warn("刷新宿主处理缓存失败", "error", err.Error())
	}

	r.installed = count
	r.log.Info("规则监听已安装", "count", count, "total", len(rules))
	return count
}

// Uninstall 拆除全部钩子并清空登记，可重复调用
func (r *Registry) Uninstall() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.host.ClearHooks(); err != nil {
		r.log.Warn("拆除钩子失败", "error", err.Error())
	}
	if err := r.host.InvalidateHandlerCache(); err != nil {
		r.log.Warn("刷新宿主处理缓存失败", "error", err.Error())
	}
	if r.installed > 0 {
		r.log.Info("规则监听已拆除", "count", r.installed)
	}
	r.installed = 0
}

// Installed 返回当前安装的规则钩子数
func (r *Registry) Installed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installed
}
