// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"shop-assist-go/internal/config"
	"shop-assist-go/internal/handler"
	"shop-assist-go/internal/middleware"
	"shop-assist-go/internal/model"
	"shop-assist-go/internal/repository"
	"shop-assist-go/internal/service"
	"shop-assist-go/pkg/database"
	"shop-assist-go/pkg/embedding"
	"shop-assist-go/pkg/genai"
	"shop-assist-go/pkg/kafka"
	"shop-assist-go/pkg/log"
	"shop-assist-go/pkg/token"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.Order{},
		&model.Product{},
		&model.Case{},
		&model.CaseResponse{},
		&model.FAQ{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	orderRepo := repository.NewOrderRepository(database.DB)
	caseRepo := repository.NewCaseRepository(database.DB)
	faqRepo := repository.NewFAQRepository(database.DB)
	contextRepo := repository.NewContextRepository(database.RDB, time.Duration(cfg.Chat.ContextTTLMinutes)*time.Minute)
	chatLogRepo := repository.NewChatLogRepository(database.RDB, time.Duration(cfg.Chat.LogTTLHours)*time.Hour)
	sessionRepo := repository.NewSessionRepository(database.RDB, time.Duration(cfg.Chat.SessionTTLMinutes)*time.Minute)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	genClient := genai.NewClient(cfg.GenAI)
	userService := service.NewUserService(userRepo, sessionRepo, contextRepo, chatLogRepo, jwtManager)
	orderService := service.NewOrderService(orderRepo)
	faqService := service.NewFAQService(faqRepo, embeddingClient, cfg.FAQ.SimilarityThreshold)
	caseService := service.NewCaseService(caseRepo, orderRepo, producer)
	chatService := service.NewChatService(
		contextRepo,
		chatLogRepo,
		orderRepo,
		userRepo,
		sessionRepo,
		faqService,
		genClient,
		caseService,
		cfg.Chat.HistoryTurns,
	)

	// 6. 启动后台 Kafka 消费者，把工单事件交给通知器处理
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, service.NewCaseNotifier())

	// 6.1 幂等导入内置 FAQ 条目，失败不阻塞启动
	go func() {
		seedCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := faqService.Seed(seedCtx, defaultFAQs()); err != nil {
			log.Warnf("FAQ 种子数据导入失败: %v", err)
		}
	}()

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Order 路由组，需要认证
		orders := apiV1.Group("/orders")
		orders.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			orders.GET("", handler.NewOrderHandler(orderService).ListOrders)
		}

		// Chat 路由组，需要认证
		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chat.POST("", handler.NewChatHandler(chatService).Chat)
			chat.POST("/select", handler.NewChatHandler(chatService).SelectProduct)
			chat.DELETE("/select", handler.NewChatHandler(chatService).ClearSelection)
			chat.GET("/history", handler.NewChatHandler(chatService).History)
		}

		// Case 路由组，需要认证
		cases := apiV1.Group("/cases")
		cases.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			cases.GET("", handler.NewCaseHandler(caseService).ListMine)
			cases.POST("", handler.NewCaseHandler(caseService).Create)
			cases.POST("/:caseId/responses", handler.NewCaseHandler(caseService).AddResponse)
		}

		admin := apiV1.Group("/admin")
		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin.Use(middleware.AuthMiddleware(jwtManager, userService), middleware.AdminAuthMiddleware())
		{
			admin.GET("/users/list", handler.NewAdminHandler(userService, caseService).ListUsers)

			adminCases := admin.Group("/cases")
			{
				adminCases.GET("", handler.NewAdminHandler(userService, caseService).ListCases)
				adminCases.GET("/:caseId", handler.NewAdminHandler(userService, caseService).GetCase)
				adminCases.PUT("/:caseId/status", handler.NewAdminHandler(userService, caseService).UpdateStatus)
				adminCases.PUT("/:caseId/priority", handler.NewAdminHandler(userService, caseService).UpdatePriority)
				adminCases.POST("/:caseId/responses", handler.NewAdminHandler(userService, caseService).AddResponse)
				adminCases.PUT("/:caseId/product", handler.NewAdminHandler(userService, caseService).ApplyProductChange)
			}
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已退出")
}

// defaultFAQs 返回内置的 FAQ 种子条目。
func defaultFAQs() []model.FAQ {
	return []model.FAQ{
		{
			Question: "How do I track my order?",
			Answer:   "You can view the status and expected delivery date of every order on the Orders page after logging in.",
			Domain:   model.DomainOther,
		},
		{
			Question: "What is your return policy?",
			Answer:   "Most items can be returned within 30 days of delivery. Start a return from the order details page and we will arrange a pickup.",
			Domain:   model.DomainOther,
		},
		{
			Question: "How long does a refund take?",
			Answer:   "Refunds are issued to the original payment method within 5 to 7 business days after we receive the returned item.",
			Domain:   model.DomainOther,
		},
		{
			Question: "My electronic device will not turn on, what should I do?",
			Answer:   "Charge the device for at least 30 minutes with the supplied cable, then hold the power button for 10 seconds. If it still will not start, open a support case and we will arrange a replacement.",
			Domain:   model.DomainElectronics,
		},
		{
			Question: "Can I change the delivery address of an order?",
			Answer:   "The delivery address can be changed until the order is shipped. Contact support with your order id to update it.",
			Domain:   model.DomainOther,
		},
	}
}
