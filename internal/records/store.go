package records

import (
	"sync"

	"cdprules/internal/logger"
	"cdprules/pkg/domain"
)

// Store 每标签页历史记录容器，按标签页隔离，首条记录时惰性建序列
type Store struct {
	mu   sync.RWMutex
	tabs map[domain.TabID][]domain.Record
	log  logger.Logger
}

// NewStore 创建记录容器
func NewStore(l logger.Logger) *Store {
	if l == nil {
		l = logger.NewNop()
	}
	return &Store{
		tabs: make(map[domain.TabID][]domain.Record),
		log:  l,
	}
}

// Append 追加一条记录并返回该标签页的最新记录数。
// 与尾部记录 (url, target, timestamp) 完全相同的重复投递被吞掉。
func (s *Store) Append(rec domain.Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.tabs[rec.Tab]
	if n := len(seq); n > 0 {
		last := seq[n-1]
		if last.URL == rec.URL && last.Target == rec.Target && last.Timestamp == rec.Timestamp {
			return n
		}
	}
	seq = append(seq, rec)
	s.tabs[rec.Tab] = seq
	return len(seq)
}

// Get 返回标签页记录序列的副本
func (s *Store) Get(tab domain.TabID) ([]domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq, ok := s.tabs[tab]
	if !ok {
		return nil, false
	}
	out := make([]domain.Record, len(seq))
	copy(out, seq)
	return out, true
}

// Replace 整体替换标签页的记录序列，空序列等价于 Remove。
// 序列已不存在时不做任何事，避免把中途被关掉的标签页复活。
func (s *Store) Replace(tab domain.TabID, seq []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[tab]; !ok {
		return
	}
	if len(seq) == 0 {
		delete(s.tabs, tab)
		return
	}
	cp := make([]domain.Record, len(seq))
	copy(cp, seq)
	s.tabs[tab] = cp
}

// Remove 删除标签页的记录序列，不存在时为空操作
func (s *Store) Remove(tab domain.TabID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tabs, tab)
}

// Drain 取出全部记录并清空容器
func (s *Store) Drain() map[domain.TabID][]domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.tabs
	s.tabs = make(map[domain.TabID][]domain.Record)
	return all
}
