package cdp

import (
	"encoding/json"

	"github.com/mafredri/cdp/protocol/fetch"

	"cdprules/pkg/domain"
)

// toRequest 将 CDP 拦截事件转换为中立请求模型
func (m *Manager) toRequest(ev *fetch.RequestPausedReply) domain.Request {
	req := domain.Request{
		ID:      string(ev.RequestID),
		Tab:     m.tab,
		URL:     ev.Request.URL,
		Method:  ev.Request.Method,
		Type:    string(ev.ResourceType),
		Headers: make(map[string]string),
	}
	if len(ev.Request.Headers) > 0 {
		_ = json.Unmarshal(ev.Request.Headers, &req.Headers)
	}
	return req
}
