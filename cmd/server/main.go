// @title           Apex HTTP Service API
// @version         1.0
// @description     Security operations backend: incidents, guard dispatch, SOPs, contact lists and reporting
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.email  support@apex.local

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/internal/v1

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Enter the token with the `Bearer ` prefix
package main

import (
	"fmt"
	"os"
	"runtime"

	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/internal/infrastructure/database"
	Logger "apex-http-service/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd 不带子命令时等同于 serve
var rootCmd = &cobra.Command{
	Use:   "apex-server",
	Short: "Apex security operations HTTP service",
	Long: `Apex HTTP service: incidents, guard dispatch, SOPs and reporting.

Available subcommands:
  serve       - Run the HTTP API and the live monitoring hub (default)
  migrate     - Run database migrations
  seed-admin  - Create the default super administrator if none exists
  healthcheck - Query /health/status of a running instance`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedAdminCmd, healthcheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载 .env 和配置并初始化日志
func bootstrap(service string) (*config.Config, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	if err := Logger.SetupLogger(Logger.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Dir:         cfg.LogDir,
		ServiceName: service,
	}); err != nil {
		return nil, fmt.Errorf("初始化日志配置失败: %w", err)
	}

	// 即使加载失败也继续执行，可能环境变量已经通过其他方式设置
	if envErr != nil {
		Logger.Warning("无法加载.env文件: %v", envErr)
	}
	if cfg.JWTSecretGenerated {
		Logger.Warning("未配置 JWT_SECRET，已生成随机密钥，重启后所有令牌失效")
	} else if cfg.WeakJWTSecret() {
		Logger.Warning("JWT_SECRET 长度不足32字节")
	}
	return cfg, nil
}

// printSystemInfo 打印系统信息
func printSystemInfo(pool *database.ConnectionPool) {
	// 打印数据库连接池信息
	if stats, err := pool.Stats(); err == nil {
		Logger.Info("数据库连接池状态: %+v", stats)
	}

	// 打印系统资源信息
	Logger.Info("系统CPU核心数: %d", runtime.NumCPU())
	Logger.Info("当前Go协程数: %d", runtime.NumGoroutine())

	// 打印内存信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	Logger.Info("系统内存使用: Alloc=%v MiB, TotalAlloc=%v MiB, Sys=%v MiB",
		m.Alloc/1024/1024, m.TotalAlloc/1024/1024, m.Sys/1024/1024)
}
