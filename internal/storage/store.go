package storage

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"cdprules/internal/logger"
	"cdprules/internal/rules"
	"cdprules/pkg/domain"
)

const settingDisabled = "disabled"

// RuleRow 规则持久化模型，Body 为 JSON 规则文档
type RuleRow struct {
	UUID      string `gorm:"primaryKey;column:uuid"`
	Name      string `gorm:"column:name"`
	Body      string `gorm:"column:body"`
	Active    bool   `gorm:"column:active"`
	UpdatedAt int64  `gorm:"column:updated_at;autoUpdateTime:milli"`
}

// SettingRow 键值设置
type SettingRow struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

// Store 规则配置存储（配置持久化协作者，核心只通过 Snapshot 消费）
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开 sqlite 规则库并自动迁移
func Open(dsn, prefix string, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open rule store: %w", err)
	}
	if err := db.AutoMigrate(&RuleRow{}, &SettingRow{}); err != nil {
		return nil, fmt.Errorf("migrate rule store: %w", err)
	}
	return &Store{db: db, log: l}, nil
}

// Put 写入或更新一条规则
func (s *Store) Put(rule domain.Rule) error {
	body, err := rules.EncodeRule(rule)
	if err != nil {
		return err
	}
	row := RuleRow{
		UUID:   string(rule.ID),
		Name:   rule.Name,
		Body:   body,
		Active: rule.Active,
	}
	return s.db.Save(&row).Error
}

// Delete 删除规则，不存在时为空操作
func (s *Store) Delete(id domain.RuleID) error {
	return s.db.Delete(&RuleRow{}, "uuid = ?", string(id)).Error
}

// List 返回全部规则行
func (s *Store) List() ([]RuleRow, error) {
	var out []RuleRow
	if err := s.db.Order("updated_at").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SetDisabled 写入全局禁用开关
func (s *Store) SetDisabled(disabled bool) error {
	v := "0"
	if disabled {
		v = "1"
	}
	return s.db.Save(&SettingRow{Key: settingDisabled, Value: v}).Error
}

// Snapshot 整体加载配置快照；解析失败的规则行跳过并记日志
func (s *Store) Snapshot() (domain.Snapshot, error) {
	snap := domain.Snapshot{}

	var setting SettingRow
	err := s.db.First(&setting, "key = ?", settingDisabled).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return snap, fmt.Errorf("load settings: %w", err)
	}
	snap.Disabled = setting.Value == "1"

	rows, err := s.List()
	if err != nil {
		return snap, fmt.Errorf("load rules: %w", err)
	}
	for _, row := range rows {
		rule, err := rules.ParseRule(row.Body)
		if err != nil {
			s.log.Warn("规则文档解析失败，跳过", "uuid", row.UUID, "error", err.Error())
			continue
		}
		rule.Active = row.Active
		snap.Rules = append(snap.Rules, rule)
	}
	return snap, nil
}
