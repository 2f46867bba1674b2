package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"
	"github.com/google/uuid"
)

// AttributionService 访客归因服务
// 负责推广码捕获（last-ref-wins）、折扣暂存与点击流水
type AttributionService struct {
	repo         repository.AffiliateRepository
	affiliateSvc *AffiliateService
	settingSvc   *SettingService
	store        cache.AttributionStore
	queueClient  *queue.Client
}

// NewAttributionService 创建归因服务
func NewAttributionService(
	repo repository.AffiliateRepository,
	affiliateSvc *AffiliateService,
	settingSvc *SettingService,
	store cache.AttributionStore,
	queueClient *queue.Client,
) *AttributionService {
	return &AttributionService{
		repo:         repo,
		affiliateSvc: affiliateSvc,
		settingSvc:   settingSvc,
		store:        store,
		queueClient:  queueClient,
	}
}

// CaptureInput 归因捕获入参
type CaptureInput struct {
	VisitorKey  string
	Code        string
	Campaign    string
	LandingPath string
	Referrer    string
	ClientIP    string
	UserAgent   string
}

// AttributionView 归因读取结果
type AttributionView struct {
	State          *cache.AttributionState `json:"state"`
	StagedDiscount *cache.StagedDiscount   `json:"staged_discount,omitempty"`
}

// Capture 捕获推广码归因。
// 同一访客再次携带不同推广码时覆盖旧归因并作废已暂存折扣；
// 相同推广码刷新归因窗口并保留暂存折扣。
// 点击流水即发即忘，失败只记日志，不影响捕获结果。
func (s *AttributionService) Capture(ctx context.Context, input CaptureInput) (*cache.AttributionState, error) {
	if s == nil || s.store == nil {
		return nil, ErrInvalidInput
	}
	visitorKey := strings.TrimSpace(input.VisitorKey)
	if visitorKey == "" {
		return nil, fmt.Errorf("%w: visitor key is required", ErrInvalidInput)
	}

	setting, err := s.settingSvc.GetAffiliateSetting()
	if err != nil {
		return nil, err
	}
	if !setting.Enabled {
		return nil, ErrAffiliateProgramDisabled
	}

	affiliate, err := s.affiliateSvc.ResolveActiveByCode(input.Code)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetAttribution(ctx, visitorKey)
	if err != nil {
		return nil, err
	}
	// 推广码变更时作废已暂存折扣，折扣只对当前归因有效
	if current != nil && current.AffiliateCode != affiliate.AffiliateCode {
		if err := s.store.DelStagedDiscount(ctx, visitorKey); err != nil {
			logger.Warnw("attribution_evict_staged_discount_failed", "visitor_key", visitorKey, "error", err)
		}
	}

	now := time.Now()
	ttl := time.Duration(setting.AttributionDays) * 24 * time.Hour
	state := &cache.AttributionState{
		AffiliateCode: affiliate.AffiliateCode,
		Campaign:      strings.TrimSpace(input.Campaign),
		ClickID:       uuid.NewString(),
		CapturedAt:    now.Unix(),
		ExpiresAt:     now.Add(ttl).Unix(),
	}
	if err := s.store.SetAttribution(ctx, visitorKey, state, ttl); err != nil {
		return nil, err
	}

	s.dispatchClick(queue.AffiliateClickPayload{
		ClickID:       state.ClickID,
		AffiliateID:   affiliate.ID,
		AffiliateCode: affiliate.AffiliateCode,
		Campaign:      state.Campaign,
		VisitorKey:    visitorKey,
		LandingPath:   strings.TrimSpace(input.LandingPath),
		Referrer:      strings.TrimSpace(input.Referrer),
		ClientIP:      strings.TrimSpace(input.ClientIP),
		UserAgent:     strings.TrimSpace(input.UserAgent),
	})

	return state, nil
}

// dispatchClick 分发点击流水：队列可用走异步任务，否则同步落库
func (s *AttributionService) dispatchClick(payload queue.AffiliateClickPayload) {
	if s.queueClient.Enabled() {
		if err := s.queueClient.EnqueueAffiliateClick(payload); err != nil {
			logger.Warnw("attribution_enqueue_click_failed", "click_id", payload.ClickID, "error", err)
		}
		return
	}
	if err := s.RecordClick(payload); err != nil {
		logger.Warnw("attribution_record_click_failed", "click_id", payload.ClickID, "error", err)
	}
}

// RecordClick 落库点击流水并累加点击统计。
// click_id 唯一约束保证任务重复投递时只落一条。
func (s *AttributionService) RecordClick(payload queue.AffiliateClickPayload) error {
	if s == nil || s.repo == nil {
		return ErrInvalidInput
	}
	if strings.TrimSpace(payload.ClickID) == "" || payload.AffiliateID == 0 {
		return fmt.Errorf("%w: click id and affiliate id are required", ErrInvalidInput)
	}

	click := &models.AffiliateClick{
		ClickID:       payload.ClickID,
		AffiliateID:   payload.AffiliateID,
		AffiliateCode: payload.AffiliateCode,
		Campaign:      payload.Campaign,
		VisitorKey:    payload.VisitorKey,
		LandingPath:   payload.LandingPath,
		Referrer:      payload.Referrer,
		ClientIP:      payload.ClientIP,
		UserAgent:     payload.UserAgent,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.CreateClick(click); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return s.repo.IncrementClicks(payload.AffiliateID, 1)
}

// GetAttribution 读取访客当前归因与暂存折扣，过期归因视为不存在
func (s *AttributionService) GetAttribution(ctx context.Context, visitorKey string) (*AttributionView, error) {
	if s == nil || s.store == nil {
		return nil, ErrInvalidInput
	}
	trimmed := strings.TrimSpace(visitorKey)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: visitor key is required", ErrInvalidInput)
	}

	state, err := s.store.GetAttribution(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &AttributionView{}, nil
	}

	discount, err := s.store.GetStagedDiscount(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	// 暂存折扣必须归属当前归因的推广码
	if discount != nil && discount.AffiliateCode != state.AffiliateCode {
		discount = nil
	}
	return &AttributionView{State: state, StagedDiscount: discount}, nil
}

// StageDiscount 为访客当前归因暂存结算折扣
func (s *AttributionService) StageDiscount(ctx context.Context, visitorKey string) (*cache.StagedDiscount, error) {
	if s == nil || s.store == nil {
		return nil, ErrInvalidInput
	}
	trimmed := strings.TrimSpace(visitorKey)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: visitor key is required", ErrInvalidInput)
	}

	state, err := s.store.GetAttribution(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNotFound
	}

	affiliate, err := s.affiliateSvc.ResolveActiveByCode(state.AffiliateCode)
	if err != nil {
		return nil, err
	}
	percent, err := s.affiliateSvc.EffectiveCheckoutDiscount(affiliate)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	discount := &cache.StagedDiscount{
		AffiliateCode:   state.AffiliateCode,
		DiscountPercent: percent,
		StagedAt:        now.Unix(),
		ExpiresAt:       state.ExpiresAt,
	}
	ttl := time.Until(time.Unix(state.ExpiresAt, 0))
	if ttl <= 0 {
		return nil, ErrNotFound
	}
	if err := s.store.SetStagedDiscount(ctx, trimmed, discount, ttl); err != nil {
		return nil, err
	}
	return discount, nil
}
