package notify

import (
	"time"

	"cdprules/internal/logger"
	"cdprules/pkg/domain"
)

// Notifier 通知端口，反映启停状态、每标签页计数与错误。
// 核心只保证调用顺序：Notify 总是在触发它的记录变更之后发出。
type Notifier interface {
	EnabledState()
	DisabledState(all map[domain.TabID][]domain.Record)
	Notify(tab domain.TabID, rule domain.RuleID, count int)
	Clear(tab domain.TabID)
	Error(tab domain.TabID, msg string)
}

// EventNotifier 默认实现：写事件通道并记录日志，通道满时丢弃
type EventNotifier struct {
	events chan<- domain.Event
	log    logger.Logger
}

// NewEventNotifier 创建事件通道通知器
func NewEventNotifier(events chan<- domain.Event, l logger.Logger) *EventNotifier {
	if l == nil {
		l = logger.NewNop()
	}
	return &EventNotifier{events: events, log: l}
}

func (n *EventNotifier) emit(evt domain.Event) {
	evt.Timestamp = time.Now().UnixMilli()
	if n.events == nil {
		return
	}
	select {
	case n.events <- evt:
	default:
	}
}

func (n *EventNotifier) EnabledState() {
	n.log.Info("拦截已启用")
	n.emit(domain.Event{Type: "enabled"})
}

func (n *EventNotifier) DisabledState(all map[domain.TabID][]domain.Record) {
	n.log.Info("拦截已禁用", "tabs", len(all))
	n.emit(domain.Event{Type: "disabled"})
}

func (n *EventNotifier) Notify(tab domain.TabID, rule domain.RuleID, count int) {
	n.log.Debug("规则命中", "tab", string(tab), "rule", string(rule), "count", count)
	n.emit(domain.Event{Type: "notify", Tab: tab, Rule: &rule, Count: count})
}

func (n *EventNotifier) Clear(tab domain.TabID) {
	n.log.Debug("清除标签页指示", "tab", string(tab))
	n.emit(domain.Event{Type: "clear", Tab: tab})
}

func (n *EventNotifier) Error(tab domain.TabID, msg string) {
	n.log.Warn("规则错误", "tab", string(tab), "message", msg)
	n.emit(domain.Event{Type: "error", Tab: tab, Message: msg})
}
