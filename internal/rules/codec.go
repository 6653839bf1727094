package rules

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"cdprules/pkg/domain"
)

// NewRuleID 生成规则标识
func NewRuleID() domain.RuleID {
	return domain.RuleID(uuid.NewString())
}

// ParseRule 从 JSON 文档解析单条规则
func ParseRule(body string) (domain.Rule, error) {
	if !gjson.Valid(body) {
		return domain.Rule{}, fmt.Errorf("invalid rule document")
	}
	doc := gjson.Parse(body)

	rule := domain.Rule{
		ID:        domain.RuleID(doc.Get("id").String()),
		Name:      doc.Get("name").String(),
		Pattern:   doc.Get("pattern").String(),
		MatchMode: doc.Get("matchMode").String(),
		Tag:       doc.Get("tag").String(),
		Active:    doc.Get("active").Bool(),
		Priority:  int(doc.Get("priority").Int()),
		Action: domain.Action{
			Type:      domain.ActionType(doc.Get("action.type").String()),
			To:        doc.Get("action.to").String(),
			UpdateTab: doc.Get("action.updateTab").Bool(),
		},
	}
	for _, t := range doc.Get("types").Array() {
		rule.Types = append(rule.Types, t.String())
	}
	if rule.ID == "" {
		rule.ID = NewRuleID()
	}
	if rule.Pattern == "" {
		return domain.Rule{}, fmt.Errorf("rule %s: missing pattern", rule.ID)
	}
	if rule.Action.Type == "" {
		return domain.Rule{}, fmt.Errorf("rule %s: missing action", rule.ID)
	}
	return rule, nil
}

// EncodeRule 把规则编码为 JSON 文档
func EncodeRule(rule domain.Rule) (string, error) {
	if rule.ID == "" {
		rule.ID = NewRuleID()
	}
	body := "{}"
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		body, err = sjson.Set(body, path, v)
	}
	set("id", string(rule.ID))
	set("name", rule.Name)
	set("pattern", rule.Pattern)
	if rule.MatchMode != "" {
		set("matchMode", rule.MatchMode)
	}
	if len(rule.Types) > 0 {
		set("types", rule.Types)
	}
	set("action.type", string(rule.Action.Type))
	if rule.Action.To != "" {
		set("action.to", rule.Action.To)
	}
	if rule.Action.UpdateTab {
		set("action.updateTab", true)
	}
	if rule.Tag != "" {
		set("tag", rule.Tag)
	}
	set("active", rule.Active)
	if rule.Priority != 0 {
		set("priority", rule.Priority)
	}
	if err != nil {
		return "", fmt.Errorf("encode rule %s: %w", rule.ID, err)
	}
	return body, nil
}
