package cdp

import (
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"

	"cdprules/pkg/domain"
)

// consumeFetch 持续接收拦截事件：先跑标记钩子，再以阻塞钩子的裁决落地
func (m *Manager) consumeFetch() {
	rp, err := m.client.Fetch.RequestPaused(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅拦截事件流失败", "tab", string(m.tab))
		m.streamClosed(err)
		return
	}
	defer rp.Close()

	m.log.Info("开始消费拦截事件流", "tab", string(m.tab))
	for {
		ev, err := rp.Recv()
		if err != nil {
			m.streamClosed(err)
			return
		}
		m.handlePaused(ev)
	}
}

func (m *Manager) handlePaused(ev *fetch.RequestPausedReply) {
	req := m.toRequest(ev)
	hooks, resolve := m.snapshotHooks()

	for i := range hooks {
		if hooks[i].filter.Match == nil || hooks[i].filter.Match(req) {
			hooks[i].fn(req)
		}
	}

	dec := domain.Decision{Kind: domain.DecidePass}
	if resolve != nil {
		dec = resolve(req)
	}
	m.apply(ev, dec)
}

func (m *Manager) apply(ev *fetch.RequestPausedReply, dec domain.Decision) {
	ctx, cancel := m.opCtx()
	defer cancel()

	switch dec.Kind {
	case domain.DecideBlock:
		err := m.client.Fetch.FailRequest(ctx, &fetch.FailRequestArgs{
			RequestID:   ev.RequestID,
			ErrorReason: network.ErrorReasonBlockedByClient,
		})
		if err != nil {
			m.log.Warn("阻断请求失败", "requestID", ev.RequestID, "error", err.Error())
		}
	case domain.DecideRedirect:
		args := &fetch.ContinueRequestArgs{RequestID: ev.RequestID}
		args.URL = &dec.RedirectURL
		if err := m.client.Fetch.ContinueRequest(ctx, args); err != nil {
			m.log.Warn("重定向请求失败", "requestID", ev.RequestID, "error", err.Error())
		}
	default:
		err := m.client.Fetch.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID})
		if err != nil {
			m.log.Warn("放行请求失败", "requestID", ev.RequestID, "error", err.Error())
		}
	}
}

// consumeNavigation 把顶层 frameNavigated 转成导航提交事件
func (m *Manager) consumeNavigation() {
	fn, err := m.client.Page.FrameNavigated(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅导航事件流失败", "tab", string(m.tab))
		return
	}
	defer fn.Close()

	for {
		ev, err := fn.Recv()
		if err != nil {
			return
		}
		if m.onCommit == nil {
			continue
		}

		m.mu.Lock()
		top := m.mainFrame == "" || ev.Frame.ID == m.mainFrame
		serverRedirect := top && m.pendingRedirectURL != "" && m.pendingRedirectURL == ev.Frame.URL
		if top {
			m.pendingRedirectURL = ""
		}
		m.mu.Unlock()

		m.onCommit(domain.NavigationCommit{
			Tab:            m.tab,
			URL:            ev.Frame.URL,
			TopLevel:       top,
			ServerRedirect: serverRedirect,
		})
	}
}

// consumeNetwork 记录带 redirectResponse 的文档请求，供导航提交判定 server redirect
func (m *Manager) consumeNetwork() {
	rws, err := m.client.Network.RequestWillBeSent(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅网络事件流失败", "tab", string(m.tab))
		return
	}
	defer rws.Close()

	for {
		ev, err := rws.Recv()
		if err != nil {
			return
		}
		// 文档主请求的 documentURL 与请求地址一致
		if ev.RedirectResponse != nil && ev.DocumentURL == ev.Request.URL {
			m.mu.Lock()
			m.pendingRedirectURL = ev.Request.URL
			m.mu.Unlock()
		}
	}
}

// streamClosed 拦截流终止：仍处于启用态时视为标签页关闭
func (m *Manager) streamClosed(err error) {
	m.mu.Lock()
	enabled := m.enabled
	m.enabled = false
	m.mu.Unlock()
	if !enabled {
		m.log.Info("拦截已禁用，停止事件消费", "tab", string(m.tab))
		return
	}
	m.log.Warn("拦截流被中断", "tab", string(m.tab), "error", err)
	if m.onTabClosed != nil {
		m.onTabClosed(m.tab)
	}
}
