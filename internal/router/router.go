package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fenxiao-next/internal/authz"
	"github.com/fenxiao-next/internal/cache"
	"github.com/fenxiao-next/internal/config"
	adminhandlers "github.com/fenxiao-next/internal/http/handlers/admin"
	publichandlers "github.com/fenxiao-next/internal/http/handlers/public"
	"github.com/fenxiao-next/internal/http/response"
	"github.com/fenxiao-next/internal/logger"
	"github.com/fenxiao-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fx"
	}
	redisClient := cache.Client()
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "too many login attempts",
	}
	referralRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:referral", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts * 10,
		Message:       "too many requests",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.POST("/referrals", RateLimitMiddleware(redisClient, referralRule, KeyByIP), publicHandler.CaptureReferral)
			public.GET("/referrals/attribution", publicHandler.GetReferralAttribution)
			public.POST("/referrals/discount", publicHandler.StageReferralDiscount)
			public.POST("/affiliate-applications", publicHandler.SubmitAffiliateApplication)
		}

		// 商城订单回调接口（由上游商城服务调用）
		hooks := apiV1.Group("/hooks")
		{
			hooks.POST("/orders", publicHandler.RegisterOrderHook)
			hooks.POST("/orders/completed", publicHandler.OrderCompletedHook)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
			{
				authorized.PUT("/password", adminHandler.UpdateAdminPassword) // 修改密码

				// 入驻申请管理
				authorized.GET("/affiliate-applications", adminHandler.ListAffiliateApplications)
				authorized.POST("/affiliate-applications/:id/approve", adminHandler.ApproveAffiliateApplication)
				authorized.POST("/affiliate-applications/:id/reject", adminHandler.RejectAffiliateApplication)

				// 推广伙伴管理
				authorized.GET("/affiliates", adminHandler.ListAffiliates)
				authorized.GET("/affiliates/:id", adminHandler.GetAffiliate)
				authorized.PUT("/affiliates/:id", adminHandler.UpdateAffiliate)
				authorized.PATCH("/affiliates/:id/status", adminHandler.UpdateAffiliateStatus)
				authorized.GET("/affiliate-clicks", adminHandler.ListAffiliateClicks)

				// 结算打款
				authorized.POST("/affiliates/:id/payouts", adminHandler.CreateAffiliatePayout)
				authorized.GET("/payouts", adminHandler.ListPayouts)
				authorized.GET("/payouts/:id", adminHandler.GetPayout)

				// 对账
				authorized.GET("/reconciliation", adminHandler.ReconcileAllAffiliates)
				authorized.GET("/affiliates/:id/reconciliation", adminHandler.ReconcileAffiliate)

				// 订单快照
				authorized.GET("/orders", adminHandler.ListOrders)
				authorized.GET("/orders/:order_no", adminHandler.GetOrder)

				// 设置管理
				authorized.GET("/settings/affiliate", adminHandler.GetAffiliateSetting)
				authorized.PUT("/settings/affiliate", adminHandler.UpdateAffiliateSetting)

				// 权限管理
				authorized.GET("/authz/me", adminHandler.GetAuthzMe)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/admins", adminHandler.ListAuthzAdmins)
				authorized.GET("/authz/audit-logs", adminHandler.ListAuthzAuditLogs)
				authorized.POST("/authz/admins", adminHandler.CreateAuthzAdmin)
				authorized.PUT("/authz/admins/:id", adminHandler.UpdateAuthzAdmin)
				authorized.DELETE("/authz/admins/:id", adminHandler.DeleteAuthzAdmin)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
				authorized.POST("/authz/roles", adminHandler.CreateAuthzRole)
				authorized.DELETE("/authz/roles/:role", adminHandler.DeleteAuthzRole)
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				authorized.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == "/api/v1/admin/login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
