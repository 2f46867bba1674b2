package queue

import (
	"encoding/json"

	"github.com/fenxiao-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskAffiliateClick 点击流水落库任务
	TaskAffiliateClick = constants.TaskAffiliateClick
	// TaskOrderConversion 订单转化处理任务
	TaskOrderConversion = constants.TaskOrderConversion
	// TaskReconciliationSweep 全量对账巡检任务
	TaskReconciliationSweep = constants.TaskReconciliationSweep
)

// AffiliateClickPayload 点击流水任务载荷
type AffiliateClickPayload struct {
	ClickID       string `json:"click_id"`
	AffiliateID   uint   `json:"affiliate_id"`
	AffiliateCode string `json:"affiliate_code"`
	Campaign      string `json:"campaign"`
	VisitorKey    string `json:"visitor_key"`
	LandingPath   string `json:"landing_path"`
	Referrer      string `json:"referrer"`
	ClientIP      string `json:"client_ip"`
	UserAgent     string `json:"user_agent"`
}

// OrderConversionPayload 订单转化任务载荷
type OrderConversionPayload struct {
	OrderNo string `json:"order_no"`
}

// NewAffiliateClickTask 创建点击流水任务
func NewAffiliateClickTask(payload AffiliateClickPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAffiliateClick, body), nil
}

// NewOrderConversionTask 创建订单转化任务
func NewOrderConversionTask(payload OrderConversionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderConversion, body), nil
}
