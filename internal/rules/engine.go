package rules

import (
	"fmt"
	"strings"
	"sync"

	"cdprules/internal/logger"
	"cdprules/pkg/domain"
)

// Engine 默认的规则编译与解析实现。
// 编译把规则的模式/类型变成可匹配的 Filter；解析消费挂起标记得出动作。
type Engine struct {
	mu    sync.Mutex
	marks map[string]domain.Rule
	log   logger.Logger
}

// NewEngine 创建规则引擎
func NewEngine(l logger.Logger) *Engine {
	if l == nil {
		l = logger.NewNop()
	}
	return &Engine{
		marks: make(map[string]domain.Rule),
		log:   l,
	}
}

// Compile 把单条规则编译为 Filter，模式或动作非法时返回错误
func (e *Engine) Compile(rule domain.Rule) (domain.Filter, error) {
	if rule.Pattern == "" {
		return domain.Filter{}, fmt.Errorf("rule %s: empty pattern", rule.ID)
	}
	switch rule.Action.Type {
	case domain.ActionAllow, domain.ActionBlock:
	case domain.ActionRedirect:
		if rule.Action.To == "" {
			return domain.Filter{}, fmt.Errorf("rule %s: redirect without target", rule.ID)
		}
	default:
		return domain.Filter{}, fmt.Errorf("rule %s: unknown action %q", rule.ID, rule.Action.Type)
	}

	match, err := compileURLMatch(rule.MatchMode, rule.Pattern)
	if err != nil {
		return domain.Filter{}, fmt.Errorf("rule %s: %w", rule.ID, err)
	}

	types := make(map[string]struct{}, len(rule.Types))
	for _, t := range rule.Types {
		types[strings.ToLower(t)] = struct{}{}
	}

	return domain.Filter{
		URLPatterns: urlPatterns(rule.MatchMode, rule.Pattern),
		Types:       append([]string(nil), rule.Types...),
		Match: func(req domain.Request) bool {
			if len(types) > 0 {
				if _, ok := types[strings.ToLower(req.Type)]; !ok {
					return false
				}
			}
			return match(req.URL)
		},
	}, nil
}

// Mark 为在途请求挂上选中的规则，存活期到该请求被解析为止
func (e *Engine) Mark(requestID string, rule domain.Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ok := e.marks[requestID]
	if ok && cur.Priority >= rule.Priority {
		return
	}
	e.marks[requestID] = rule
}

// Resolve 消费挂起标记并给出动作；无标记时返回 false（无默认策略）
func (e *Engine) Resolve(req domain.Request) (domain.Outcome, bool) {
	e.mu.Lock()
	rule, ok := e.marks[req.ID]
	if ok {
		delete(e.marks, req.ID)
	}
	e.mu.Unlock()
	if !ok {
		return domain.Outcome{}, false
	}
	return domain.Outcome{Rule: rule, Action: rule.Action}, true
}

// Reset 丢弃全部挂起标记
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.marks = make(map[string]domain.Rule)
}

func compileURLMatch(mode, pattern string) (func(string) bool, error) {
	switch mode {
	case "prefix":
		return func(s string) bool { return strings.HasPrefix(s, pattern) }, nil
	case "exact":
		return func(s string) bool { return s == pattern }, nil
	case "regex":
		re, err := regexCache.Get(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad regex %q: %w", pattern, err)
		}
		return re.MatchString, nil
	case "", "glob":
		return func(s string) bool { return glob(s, pattern) }, nil
	default:
		return nil, fmt.Errorf("unknown match mode %q", mode)
	}
}

// urlPatterns 给宿主侧过滤用的 URL 通配模式，非 glob 模式退化为全量
func urlPatterns(mode, pattern string) []string {
	switch mode {
	case "", "glob":
		return []string{pattern}
	case "prefix":
		return []string{pattern + "*"}
	case "exact":
		return []string{pattern}
	default:
		return []string{"*"}
	}
}

func glob(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(s, strings.TrimPrefix(pattern, "*")) {
		return true
	}
	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(s, strings.TrimSuffix(pattern, "*")) {
		return true
	}
	if i := strings.Index(pattern, "*"); i > 0 && i < len(pattern)-1 {
		return strings.HasPrefix(s, pattern[:i]) && strings.HasSuffix(s, pattern[i+1:])
	}
	return s == pattern
}
