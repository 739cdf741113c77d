package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"apex-http-service/internal/app/middleware"
	"apex-http-service/internal/app/routes"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/internal/infrastructure/database"
	Logger "apex-http-service/pkg/logger"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var servePort string

// serveCmd 启动HTTP服务和实时推送中心
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the live monitoring hub",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port, overrides SERVER_PORT")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := bootstrap("apex-http-service")
	if err != nil {
		return err
	}
	defer Logger.Sync()

	if servePort != "" {
		cfg.ServerPort = servePort
	}

	pool, err := openDatabase(cfg, cfg.DBMigrationMode)
	if err != nil {
		return err
	}
	defer pool.Close()

	c := container.NewServiceContainer(pool, cfg)
	defer c.Close()

	if err := seedAdmin(cmd.Context(), c); err != nil {
		return err
	}

	limiter, closeStore, err := newRateLimiter(cfg, c)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           routes.SetupRouter(c, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printSystemInfo(pool)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.LiveHub().Run(gctx)
	})
	g.Go(func() error {
		// 注意监听所有接口(0.0.0.0)而不是只监听localhost
		Logger.Info("服务器启动在: http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		Logger.Info("正在关闭服务器...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		Logger.Error("服务器异常退出: %v", err)
		return err
	}
	Logger.Info("服务器已停止")
	return nil
}

// openDatabase 打开连接池并按模式迁移
func openDatabase(cfg *config.Config, mode string) (*database.ConnectionPool, error) {
	pool, err := database.NewConnectionPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("无法创建数据库连接池: %w", err)
	}
	if err := database.Migrate(pool.GetDB(), mode); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}
	return pool, nil
}

// seedAdmin 确保系统中有管理员账户
func seedAdmin(ctx context.Context, c *container.ServiceContainer) error {
	created, err := c.GetService("user").(services.InterfaceUserService).EnsureAdminExists(ctx)
	if err != nil {
		return fmt.Errorf("创建默认管理员失败: %w", err)
	}
	if created {
		Logger.Info("已创建默认管理员账户 %s", c.Config().DefaultAdminEmail)
	}
	return nil
}

// newRateLimiter 按配置选择计数存储并加载策略文件，返回的函数用于停止内存存储的清理协程
func newRateLimiter(cfg *config.Config, c *container.ServiceContainer) (*middleware.RateLimiter, func(), error) {
	policies, err := middleware.LoadPolicies(cfg.RateLimitConfigPath)
	if err != nil {
		return nil, nil, err
	}

	if redisService, ok := c.GetService("redis").(services.InterfaceRedisService); ok && redisService != nil && cfg.RateLimitStore == "redis" {
		Logger.Info("限流计数使用Redis存储")
		return middleware.NewRateLimiter(middleware.NewRedisStore(redisService.GetClient()), policies), func() {}, nil
	}

	store := middleware.NewMemoryStore(time.Minute)
	return middleware.NewRateLimiter(store, policies), func() { _ = store.Close() }, nil
}
