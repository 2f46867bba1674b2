package provider

import (
	"github.com/fenxiao-next/internal/authz"
	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/config"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/models"
	"github.com/fenxiao-next/internal/queue"
	"github.com/fenxiao-next/internal/repository"
	"github.com/fenxiao-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo         repository.AdminRepository
	SettingRepo       repository.SettingRepository
	AffiliateRepo     repository.AffiliateRepository
	OrderRepo         repository.OrderRepository
	PayoutRepo        repository.PayoutRepository
	AuthzAuditLogRepo repository.AuthzAuditLogRepository

	// Services
	AuthzService          *authz.Service
	AuthService           *service.AuthService
	SettingService        *service.SettingService
	AffiliateService      *service.AffiliateService
	AttributionService    *service.AttributionService
	ConversionService     *service.ConversionService
	PayoutService         *service.PayoutService
	ReconciliationService *service.ReconciliationService
	AuthzAuditService     *service.AuthzAuditService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
	c.AffiliateRepo = repository.NewAffiliateRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PayoutRepo = repository.NewPayoutRepository(db)
	c.AuthzAuditLogRepo = repository.NewAuthzAuditLogRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	c.SettingService = service.NewSettingService(c.SettingRepo)
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.AffiliateService = service.NewAffiliateService(c.AffiliateRepo, c.SettingService)

	attributionStore := cache.NewAttributionStore()
	c.AttributionService = service.NewAttributionService(c.AffiliateRepo, c.AffiliateService, c.SettingService, attributionStore, c.QueueClient)
	c.ConversionService = service.NewConversionService(c.OrderRepo, c.AffiliateRepo, c.AffiliateService, c.SettingService, c.AttributionService, c.QueueClient)
	c.PayoutService = service.NewPayoutService(c.AffiliateRepo, c.PayoutRepo)
	c.ReconciliationService = service.NewReconciliationService(c.AffiliateRepo, c.OrderRepo, c.PayoutRepo)
	c.AuthzAuditService = service.NewAuthzAuditService(c.AuthzAuditLogRepo)
}
