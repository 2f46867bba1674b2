package main

import (
	"time"

	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 写入默认推广结算设置
	setting := service.AffiliateDefaultSetting()
	var existingSetting models.Setting
	if err := models.DB.Where("key = ?", constants.SettingKeyAffiliateConfig).First(&existingSetting).Error; err != nil {
		record := models.Setting{
			Key:       constants.SettingKeyAffiliateConfig,
			ValueJSON: models.JSON(service.AffiliateSettingToMap(setting)),
		}
		if err := models.DB.Create(&record).Error; err != nil {
			stdLog.Printf("Failed to create affiliate setting: %v", err)
		} else {
			stdLog.Printf("Created affiliate setting")
		}
	} else {
		stdLog.Printf("Affiliate setting already exists")
	}

	overrideRate := 20.0

	// 演示推广伙伴
	affiliates := []models.Affiliate{
		{
			Name:          "Nordic Deals Blog",
			Email:         "hello@nordicdeals.example",
			Website:       "https://nordicdeals.example",
			AffiliateCode: "NORDIC-001",
			Status:        constants.AffiliateStatusActive,
		},
		{
			Name:           "Tech Review SE",
			Email:          "contact@techreview.example",
			Website:        "https://techreview.example",
			AffiliateCode:  "TECHSE-002",
			Status:         constants.AffiliateStatusActive,
			CommissionRate: &overrideRate,
		},
		{
			Name:          "Sleepy Coupons",
			Email:         "admin@sleepycoupons.example",
			AffiliateCode: "SLEEPY-003",
			Status:        constants.AffiliateStatusDisabled,
		},
	}

	for _, affiliate := range affiliates {
		var existing models.Affiliate
		if err := models.DB.Where("affiliate_code = ?", affiliate.AffiliateCode).First(&existing).Error; err != nil {
			if err := models.DB.Create(&affiliate).Error; err != nil {
				stdLog.Printf("Failed to create affiliate %s: %v", affiliate.AffiliateCode, err)
			} else {
				stdLog.Printf("Created affiliate: %s", affiliate.AffiliateCode)
			}
		} else {
			stdLog.Printf("Affiliate already exists: %s", affiliate.AffiliateCode)
		}
	}

	// 演示入驻申请（待审核）
	applications := []models.AffiliateApplication{
		{
			Name:             "Budget Hunter",
			Email:            "apply@budgethunter.example",
			Website:          "https://budgethunter.example",
			PromotionChannel: "价格比较站，月均 5 万 UV",
			Status:           constants.AffiliateApplicationStatusPending,
		},
	}
	for _, application := range applications {
		var existing models.AffiliateApplication
		if err := models.DB.
			Where("email = ? AND status = ?", application.Email, constants.AffiliateApplicationStatusPending).
			First(&existing).Error; err != nil {
			if err := models.DB.Create(&application).Error; err != nil {
				stdLog.Printf("Failed to create application %s: %v", application.Email, err)
			} else {
				stdLog.Printf("Created application: %s", application.Email)
			}
		} else {
			stdLog.Printf("Application already exists: %s", application.Email)
		}
	}

	// 演示订单快照（一笔已完成待转化，一笔已取消）
	var nordic models.Affiliate
	if err := models.DB.Where("affiliate_code = ?", "NORDIC-001").First(&nordic).Error; err == nil {
		completedAt := time.Now().Add(-2 * time.Hour)
		canceledAt := time.Now().Add(-1 * time.Hour)
		orders := []models.Order{
			{
				OrderNo:        "FX-DEMO-1001",
				Status:         constants.OrderStatusCompleted,
				Currency:       constants.SiteCurrencyDefault,
				TotalAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(1250)),
				ShippingAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(49)),
				AffiliateCode:  nordic.AffiliateCode,
				AffiliateID:    &nordic.ID,
				CompletedAt:    &completedAt,
			},
			{
				OrderNo:        "FX-DEMO-1002",
				Status:         constants.OrderStatusCanceled,
				Currency:       constants.SiteCurrencyDefault,
				TotalAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(400)),
				ShippingAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(0)),
				AffiliateCode:  nordic.AffiliateCode,
				AffiliateID:    &nordic.ID,
				CanceledAt:     &canceledAt,
			},
		}
		for _, order := range orders {
			var existing models.Order
			if err := models.DB.Where("order_no = ?", order.OrderNo).First(&existing).Error; err != nil {
				if err := models.DB.Create(&order).Error; err != nil {
					stdLog.Printf("Failed to create order %s: %v", order.OrderNo, err)
				} else {
					stdLog.Printf("Created order: %s", order.OrderNo)
				}
			} else {
				stdLog.Printf("Order already exists: %s", order.OrderNo)
			}
		}
	}

	stdLog.Printf("Seed finished")
}
