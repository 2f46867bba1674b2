package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/provider"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskAffiliateClick, c.handleAffiliateClick)
	mux.HandleFunc(queue.TaskOrderConversion, c.handleOrderConversion)
	mux.HandleFunc(queue.TaskReconciliationSweep, c.handleReconciliationSweep)
}

func (c *Consumer) handleAffiliateClick(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_affiliate_click_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AffiliateClickPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_affiliate_click_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.ClickID) == "" || payload.AffiliateID == 0 {
		logger.Debugw("worker_affiliate_click_skip_invalid_payload", "click_id", payload.ClickID)
		return nil
	}
	if c.AttributionService == nil {
		logger.Warnw("worker_affiliate_click_skip_service_nil", "click_id", payload.ClickID)
		return nil
	}
	if err := c.AttributionService.RecordClick(payload); err != nil {
		logger.Warnw("worker_affiliate_click_failed", "click_id", payload.ClickID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderConversion(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_conversion_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderConversionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_conversion_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.OrderNo) == "" {
		logger.Debugw("worker_order_conversion_skip_invalid_payload", "order_no", payload.OrderNo)
		return nil
	}
	if c.ConversionService == nil {
		logger.Warnw("worker_order_conversion_skip_service_nil", "order_no", payload.OrderNo)
		return nil
	}
	_, err := c.ConversionService.ProcessConversion(payload.OrderNo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_order_conversion_skip_order_not_found", "order_no", payload.OrderNo)
			return nil
		case errors.Is(err, service.ErrOrderStatusInvalid):
			// 状态尚未推进到完成，交给 asynq 重试
			logger.Warnw("worker_order_conversion_status_not_ready", "order_no", payload.OrderNo, "error", err)
			return err
		case errors.Is(err, service.ErrConflict):
			logger.Warnw("worker_order_conversion_conflict_retry", "order_no", payload.OrderNo, "error", err)
			return err
		default:
			logger.Warnw("worker_order_conversion_failed", "order_no", payload.OrderNo, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleReconciliationSweep(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_reconciliation_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	if c.ReconciliationService == nil {
		logger.Warnw("worker_reconciliation_sweep_skip_service_nil")
		return nil
	}
	return runReconciliationSweep(c.ReconciliationService)
}

// runReconciliationSweep 全量对账，仅告警不自愈
func runReconciliationSweep(svc *service.ReconciliationService) error {
	reports, err := svc.ReconcileAll()
	if err != nil {
		logger.Warnw("worker_reconciliation_sweep_failed", "error", err)
		return err
	}
	dirty := 0
	for _, report := range reports {
		if report.Clean {
			continue
		}
		dirty++
		logger.Warnw("worker_reconciliation_drift_detected",
			"affiliate_id", report.AffiliateID,
			"affiliate_code", report.AffiliateCode,
			"unprocessed_orders", len(report.UnprocessedOrders),
		)
	}
	logger.Infow("worker_reconciliation_sweep_done", "affiliates", len(reports), "dirty", dirty)
	return nil
}
