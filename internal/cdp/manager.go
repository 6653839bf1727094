package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/rpcc"

	"cdprules/internal/logger"
	"cdprules/pkg/domain"
)

type markHook struct {
	filter domain.Filter
	fn     func(domain.Request)
}

// Manager CDP 宿主适配器：附加目标、安装拦截、派发导航与关闭事件
type Manager struct {
	devtoolsURL      string
	processTimeoutMS int
	log              logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	conn   *rpcc.Conn
	client *cdp.Client
	tab    domain.TabID

	mu        sync.Mutex
	hooks     []markHook
	resolve   func(domain.Request) domain.Decision
	enabled   bool
	mainFrame page.FrameID

	// pendingRedirectURL 最近一次带 redirectResponse 的文档请求地址，
	// 供下一次顶层导航提交判定 server redirect
	pendingRedirectURL string

	onCommit    func(domain.NavigationCommit)
	onTabClosed func(domain.TabID)
}

// New 创建适配器
func New(devtoolsURL string, processTimeoutMS int, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	if processTimeoutMS <= 0 {
		processTimeoutMS = 3000
	}
	return &Manager{
		devtoolsURL:      devtoolsURL,
		processTimeoutMS: processTimeoutMS,
		log:              l,
	}
}

// SetCommitSink 设置导航提交事件回调
func (m *Manager) SetCommitSink(fn func(domain.NavigationCommit)) { m.onCommit = fn }

// SetTabClosedSink 设置标签页关闭事件回调
func (m *Manager) SetTabClosedSink(fn func(domain.TabID)) { m.onTabClosed = fn }

// Tab 返回当前附加的标签页标识
func (m *Manager) Tab() domain.TabID { return m.tab }

// Attach 附加到调试目标；target 为空时取第一个 page 目标
func (m *Manager) Attach(target string) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx = ctx
	m.cancel = cancel

	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for i := range targets {
		if string(targets[i].ID) == target || (target == "" && targets[i].Type == devtool.Page) {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		cancel()
		return fmt.Errorf("no target")
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		cancel()
		return fmt.Errorf("dial target: %w", err)
	}
	m.conn = conn
	m.client = cdp.NewClient(conn)
	m.tab = domain.TabID(sel.ID)
	m.log.Info("已附加目标", "tab", string(m.tab), "url", sel.URL)
	return nil
}

// Detach 断开目标连接
func (m *Manager) Detach() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// EnableInterception 启用网络/页面域并开始消费事件流
func (m *Manager) EnableInterception() error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	if err := m.client.Network.Enable(m.ctx, nil); err != nil {
		return fmt.Errorf("network enable: %w", err)
	}
	if err := m.client.Page.Enable(m.ctx); err != nil {
		return fmt.Errorf("page enable: %w", err)
	}
	if tree, err := m.client.Page.GetFrameTree(m.ctx); err == nil {
		m.mu.Lock()
		m.mainFrame = tree.FrameTree.Frame.ID
		m.mu.Unlock()
	}
	if err := m.enableFetch(); err != nil {
		return err
	}
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()

	go m.consumeFetch()
	go m.consumeNavigation()
	go m.consumeNetwork()
	return nil
}

// DisableInterception 停止拦截
func (m *Manager) DisableInterception() error {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	return m.client.Fetch.Disable(m.ctx)
}

func (m *Manager) enableFetch() error {
	p := "*"
	patterns := []fetch.RequestPattern{
		{URLPattern: &p, RequestStage: fetch.RequestStageRequest},
	}
	if err := m.client.Fetch.Enable(m.ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		return fmt.Errorf("fetch enable: %w", err)
	}
	return nil
}

// AddMarkHook 安装单条规则的非阻塞标记钩子
func (m *Manager) AddMarkHook(f domain.Filter, fn func(domain.Request)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, markHook{filter: f, fn: fn})
	return nil
}

// SetResolveHook 安装唯一的全量阻塞钩子
func (m *Manager) SetResolveHook(fn func(domain.Request) domain.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolve = fn
	return nil
}

// ClearHooks 移除全部钩子
func (m *Manager) ClearHooks() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = nil
	m.resolve = nil
	return nil
}

// InvalidateHandlerCache 重新下发拦截配置，使新钩子对在途协商生效
func (m *Manager) InvalidateHandlerCache() error {
	m.mu.Lock()
	enabled := m.enabled
	m.mu.Unlock()
	if m.client == nil || !enabled {
		return nil
	}
	return m.enableFetch()
}

// NavigateTab 对当前标签页发起导航
func (m *Manager) NavigateTab(tab domain.TabID, url string) error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	ctx, cancel := m.opCtx()
	defer cancel()
	_, err := m.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	return err
}

func (m *Manager) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, time.Duration(m.processTimeoutMS)*time.Millisecond)
}

func (m *Manager) snapshotHooks() ([]markHook, func(domain.Request) domain.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hooks := make([]markHook, len(m.hooks))
	copy(hooks, m.hooks)
	return hooks, m.resolve
}
