package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AttributionState 访客归因快照
// expires_at 为 Unix 秒时间戳，读取时显式校验，过期即视为不存在
type AttributionState struct {
	AffiliateCode string `json:"affiliate_code"`
	Campaign      string `json:"campaign"`
	ClickID       string `json:"click_id"`
	CapturedAt    int64  `json:"captured_at"`
	ExpiresAt     int64  `json:"expires_at"`
}

// Expired 判断归因是否已过期
func (s *AttributionState) Expired(now time.Time) bool {
	return s == nil || s.ExpiresAt <= now.Unix()
}

// StagedDiscount 已暂存的结算折扣
type StagedDiscount struct {
	AffiliateCode   string  `json:"affiliate_code"`
	DiscountPercent float64 `json:"discount_percent"`
	StagedAt        int64   `json:"staged_at"`
	ExpiresAt       int64   `json:"expires_at"`
}

// AttributionStore 归因状态存储
// Redis 可用时走 Redis，否则退化为进程内存储（单实例部署与测试）
type AttributionStore interface {
	GetAttribution(ctx context.Context, visitorKey string) (*AttributionState, error)
	SetAttribution(ctx context.Context, visitorKey string, state *AttributionState, ttl time.Duration) error
	DelAttribution(ctx context.Context, visitorKey string) error
	GetStagedDiscount(ctx context.Context, visitorKey string) (*StagedDiscount, error)
	SetStagedDiscount(ctx context.Context, visitorKey string, discount *StagedDiscount, ttl time.Duration) error
	DelStagedDiscount(ctx context.Context, visitorKey string) error
}

// NewAttributionStore 按缓存可用性选择归因存储实现
func NewAttributionStore() AttributionStore {
	if Enabled() {
		return &redisAttributionStore{}
	}
	return NewMemoryAttributionStore()
}

func attributionKey(visitorKey string) string {
	return fmt.Sprintf("affiliate:attribution:%s", visitorKey)
}

func stagedDiscountKey(visitorKey string) string {
	return fmt.Sprintf("affiliate:staged_discount:%s", visitorKey)
}

type redisAttributionStore struct{}

// GetAttribution 获取访客归因，过期视为不存在
func (s *redisAttributionStore) GetAttribution(ctx context.Context, visitorKey string) (*AttributionState, error) {
	if visitorKey == "" {
		return nil, nil
	}
	var state AttributionState
	hit, err := GetJSON(ctx, attributionKey(visitorKey), &state)
	if err != nil || !hit {
		return nil, err
	}
	if state.Expired(time.Now()) {
		return nil, nil
	}
	return &state, nil
}

// SetAttribution 写入访客归因
func (s *redisAttributionStore) SetAttribution(ctx context.Context, visitorKey string, state *AttributionState, ttl time.Duration) error {
	if visitorKey == "" || state == nil {
		return nil
	}
	return SetJSON(ctx, attributionKey(visitorKey), state, ttl)
}

// DelAttribution 删除访客归因
func (s *redisAttributionStore) DelAttribution(ctx context.Context, visitorKey string) error {
	if visitorKey == "" {
		return nil
	}
	return Del(ctx, attributionKey(visitorKey))
}

// GetStagedDiscount 获取已暂存折扣，过期视为不存在
func (s *redisAttributionStore) GetStagedDiscount(ctx context.Context, visitorKey string) (*StagedDiscount, error) {
	if visitorKey == "" {
		return nil, nil
	}
	var discount StagedDiscount
	hit, err := GetJSON(ctx, stagedDiscountKey(visitorKey), &discount)
	if err != nil || !hit {
		return nil, err
	}
	if discount.ExpiresAt <= time.Now().Unix() {
		return nil, nil
	}
	return &discount, nil
}

// SetStagedDiscount 写入暂存折扣
func (s *redisAttributionStore) SetStagedDiscount(ctx context.Context, visitorKey string, discount *StagedDiscount, ttl time.Duration) error {
	if visitorKey == "" || discount == nil {
		return nil
	}
	return SetJSON(ctx, stagedDiscountKey(visitorKey), discount, ttl)
}

// DelStagedDiscount 删除暂存折扣
func (s *redisAttributionStore) DelStagedDiscount(ctx context.Context, visitorKey string) error {
	if visitorKey == "" {
		return nil
	}
	return Del(ctx, stagedDiscountKey(visitorKey))
}

// MemoryAttributionStore 进程内归因存储
type MemoryAttributionStore struct {
	mu        sync.RWMutex
	states    map[string]*AttributionState
	discounts map[string]*StagedDiscount
}

// NewMemoryAttributionStore 创建进程内归因存储
func NewMemoryAttributionStore() *MemoryAttributionStore {
	return &MemoryAttributionStore{
		states:    make(map[string]*AttributionState),
		discounts: make(map[string]*StagedDiscount),
	}
}

// GetAttribution 获取访客归因，惰性清理过期项
func (s *MemoryAttributionStore) GetAttribution(ctx context.Context, visitorKey string) (*AttributionState, error) {
	if visitorKey == "" {
		return nil, nil
	}
	s.mu.RLock()
	state, ok := s.states[visitorKey]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if state.Expired(time.Now()) {
		s.mu.Lock()
		delete(s.states, visitorKey)
		s.mu.Unlock()
		return nil, nil
	}
	cloned := *state
	return &cloned, nil
}

// SetAttribution 写入访客归因
func (s *MemoryAttributionStore) SetAttribution(ctx context.Context, visitorKey string, state *AttributionState, ttl time.Duration) error {
	if visitorKey == "" || state == nil {
		return nil
	}
	cloned := *state
	s.mu.Lock()
	s.states[visitorKey] = &cloned
	s.mu.Unlock()
	return nil
}

// DelAttribution 删除访客归因
func (s *MemoryAttributionStore) DelAttribution(ctx context.Context, visitorKey string) error {
	if visitorKey == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.states, visitorKey)
	s.mu.Unlock()
	return nil
}

// GetStagedDiscount 获取已暂存折扣
func (s *MemoryAttributionStore) GetStagedDiscount(ctx context.Context, visitorKey string) (*StagedDiscount, error) {
	if visitorKey == "" {
		return nil, nil
	}
	s.mu.RLock()
	discount, ok := s.discounts[visitorKey]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if discount.ExpiresAt <= time.Now().Unix() {
		s.mu.Lock()
		delete(s.discounts, visitorKey)
		s.mu.Unlock()
		return nil, nil
	}
	cloned := *discount
	return &cloned, nil
}

// SetStagedDiscount 写入暂存折扣
func (s *MemoryAttributionStore) SetStagedDiscount(ctx context.Context, visitorKey string, discount *StagedDiscount, ttl time.Duration) error {
	if visitorKey == "" || discount == nil {
		return nil
	}
	cloned := *discount
	s.mu.Lock()
	s.discounts[visitorKey] = &cloned
	s.mu.Unlock()
	return nil
}

// DelStagedDiscount 删除暂存折扣
func (s *MemoryAttributionStore) DelStagedDiscount(ctx context.Context, visitorKey string) error {
	if visitorKey == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.discounts, visitorKey)
	s.mu.Unlock()
	return nil
}
