package records

import (
	"cdprules/internal/logger"
	"cdprules/internal/notify"
	"cdprules/pkg/domain"
)

// chainWindow 每趟回溯扫描的记录数上限。实际重定向链很短，
// 固定窗口让单次导航的对账成本有界，并避免旧历史无限滞留；
// 代价是窗口之外的深链记录会被放弃。
const chainWindow = 5

// Reconciler 导航提交时对账标签页历史：保留指向提交地址的因果链，丢弃其余
type Reconciler struct {
	store    *Store
	notifier notify.Notifier
	log      logger.Logger
}

// NewReconciler 创建对账器
func NewReconciler(store *Store, n notify.Notifier, l logger.Logger) *Reconciler {
	if l == nil {
		l = logger.NewNop()
	}
	return &Reconciler{store: store, notifier: n, log: l}
}

// OnCommit 处理一次导航提交事件，只对顶层帧生效
func (r *Reconciler) OnCommit(c domain.NavigationCommit) {
	if !c.TopLevel {
		return
	}
	seq, ok := r.store.Get(c.Tab)
	if !ok || len(seq) == 0 {
		return
	}

	keep := reconcile(seq, c.URL, c.ServerRedirect)
	if len(keep) == 0 {
		r.store.Remove(c.Tab)
		r.notifier.Clear(c.Tab)
		r.log.Debug("导航无可追溯来源，清空历史", "tab", string(c.Tab), "url", c.URL)
		return
	}

	r.store.Replace(c.Tab, keep)
	last := keep[len(keep)-1]
	r.notifier.Notify(c.Tab, last.Rule, len(keep))
	r.log.Debug("历史对账完成", "tab", string(c.Tab), "kept", len(keep), "url", c.URL)
}

// reconcile 在序列快照上做两趟有界回溯，返回重建后的链（旧→新），找不到锚点返回 nil
func reconcile(seq []domain.Record, committed string, serverRedirect bool) []domain.Record {
	n := len(seq)

	anchor := -1
	for i := n - 1; i >= 0 && i > n-1-chainWindow; i-- {
		rec := seq[i]
		if rec.Target == committed || (serverRedirect && rec.Target != "") {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return nil
	}

	keep := []domain.Record{seq[anchor]}
	last := seq[anchor]
	for i := anchor - 1; i >= 0 && i >= anchor-chainWindow; i-- {
		if seq[i].Target == last.URL {
			keep = append([]domain.Record{seq[i]}, keep...)
			last = seq[i]
		}
	}
	return keep
}
