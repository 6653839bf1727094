package domain

type SessionID string
type TabID string
type RuleID string

// ActionType 规则动作类型
type ActionType string

const (
	ActionAllow    ActionType = "allow"
	ActionBlock    ActionType = "block"
	ActionRedirect ActionType = "redirect"
)

// Action 规则命中后要执行的动作
type Action struct {
	Type ActionType `json:"type"`
	// To 重定向目标地址，仅 redirect 动作使用
	To string `json:"to,omitempty"`
	// UpdateTab 为 true 时通过标签页导航执行跳转，而不是依赖原生重定向
	UpdateTab bool `json:"updateTab,omitempty"`
}

// Rule 用户规则，核心只读消费
type Rule struct {
	ID        RuleID   `json:"id"`
	Name      string   `json:"name"`
	Pattern   string   `json:"pattern"`
	MatchMode string   `json:"matchMode,omitempty"` // glob(默认)/prefix/exact/regex
	Types     []string `json:"types,omitempty"`     // 为空表示匹配全部资源类型
	Action    Action   `json:"action"`
	Tag       string   `json:"tag,omitempty"`
	Active    bool     `json:"active"`
	Priority  int      `json:"priority,omitempty"`
}

// Snapshot 配置快照，每次变更整体重新加载
type Snapshot struct {
	Disabled bool   `json:"disabled"`
	Rules    []Rule `json:"rules"`
}

// Record 单次请求解析后的历史记录
type Record struct {
	Tab  TabID  `json:"tab"`
	Type string `json:"type"`
	URL  string `json:"url"`
	// Target 重定向目标，非重定向动作时为空
	Target    string `json:"target,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Rule      RuleID `json:"rule"`
}

// Request 中立的被拦截请求模型
type Request struct {
	ID      string
	Tab     TabID
	URL     string
	Method  string
	Type    string
	Headers map[string]string
}

// Filter 规则编译产物：宿主侧的 URL/类型过滤 + 进程内匹配谓词
type Filter struct {
	URLPatterns []string
	Types       []string
	Match       func(Request) bool
}

// DecisionKind 阻塞钩子对请求的裁决
type DecisionKind string

const (
	// DecidePass 无标记且无默认策略，请求原样放行且不产生记录
	DecidePass     DecisionKind = "pass"
	DecideAllow    DecisionKind = "allow"
	DecideBlock    DecisionKind = "block"
	DecideRedirect DecisionKind = "redirect"
)

// Decision 阻塞钩子的裁决结果
type Decision struct {
	Kind        DecisionKind
	RedirectURL string
}

// Outcome 外部解析器对一次请求的解析结果
type Outcome struct {
	Rule   Rule
	Action Action
}

// NavigationCommit 顶层导航提交事件
type NavigationCommit struct {
	Tab            TabID
	URL            string
	TopLevel       bool
	ServerRedirect bool
}

// Event 对外事件流
type Event struct {
	Type      string    `json:"type"`
	Session   SessionID `json:"session,omitempty"`
	Tab       TabID     `json:"tab,omitempty"`
	Rule      *RuleID   `json:"rule,omitempty"`
	URL       string    `json:"url,omitempty"`
	Count     int       `json:"count,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
