package dispatch

import (
	"time"

	"cdprules/internal/logger"
	"cdprules/internal/notify"
	"cdprules/internal/records"
	"cdprules/pkg/domain"
)

// Resolver 外部解析端口：消费挂起标记给出动作。
// 宿主要求同步拿到裁决，实现必须只依赖已就绪的状态，不得做阻塞 I/O。
type Resolver interface {
	Resolve(req domain.Request) (domain.Outcome, bool)
}

// TabNavigator 标签页导航端口，updateTab 动作使用
type TabNavigator interface {
	NavigateTab(tab domain.TabID, url string) error
}

// Dispatcher 解析分发器：阻塞钩子回调入口，把解析结果落成记录与通知
type Dispatcher struct {
	resolver Resolver
	store    *records.Store
	notifier notify.Notifier
	nav      TabNavigator
	log      logger.Logger
}

// New 创建分发器
func New(resolver Resolver, store *records.Store, n notify.Notifier, nav TabNavigator, l logger.Logger) *Dispatcher {
	if l == nil {
		l = logger.NewNop()
	}
	return &Dispatcher{
		resolver: resolver,
		store:    store,
		notifier: n,
		nav:      nav,
		log:      l,
	}
}

// Resolve 对一次被拦截请求给出裁决。
// 无标记且无默认策略时请求原样放行，不产生记录。
func (d *Dispatcher) Resolve(req domain.Request) domain.Decision {
	out, ok := d.resolver.Resolve(req)
	if !ok {
		return domain.Decision{Kind: domain.DecidePass}
	}
	d.onResolved(req, out)
	return decisionFor(out)
}

func (d *Dispatcher) onResolved(req domain.Request, out domain.Outcome) {
	target := ""
	if out.Action.Type == domain.ActionRedirect {
		target = out.Action.To
	}
	rec := domain.Record{
		Tab:       req.Tab,
		Type:      req.Type,
		URL:       req.URL,
		Target:    target,
		Timestamp: time.Now().UnixMilli(),
		Rule:      out.Rule.ID,
	}
	count := d.store.Append(rec)
	d.notifier.Notify(req.Tab, out.Rule.ID, count)
	d.log.Debug("请求已解析", "tab", string(req.Tab), "rule", string(out.Rule.ID), "action", string(out.Action.Type), "url", req.URL)

	if out.Action.UpdateTab && target != "" && d.nav != nil {
		if err := d.nav.NavigateTab(req.Tab, target); err != nil {
			d.log.Warn("标签页导航失败", "tab", string(req.Tab), "url", target, "error", err.Error())
		}
	}
}

// decisionFor updateTab 跳转走标签页导航命令，请求本身放行
func decisionFor(out domain.Outcome) domain.Decision {
	switch out.Action.Type {
	case domain.ActionBlock:
		return domain.Decision{Kind: domain.DecideBlock}
	case domain.ActionRedirect:
		if out.Action.UpdateTab {
			return domain.Decision{Kind: domain.DecideAllow}
		}
		return domain.Decision{Kind: domain.DecideRedirect, RedirectURL: out.Action.To}
	default:
		return domain.Decision{Kind: domain.DecideAllow}
	}
}
