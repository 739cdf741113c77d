package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"apex-http-service/internal/app/routes"
	"apex-http-service/pkg/apiclient"

	"github.com/spf13/cobra"
)

var (
	healthcheckURL     string
	healthcheckTimeout time.Duration
)

// healthcheckCmd 供容器健康检查调用，服务不健康时返回非零退出码
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Query /health/status of a running instance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), healthcheckTimeout)
		defer cancel()

		client := apiclient.New(strings.TrimRight(healthcheckURL, "/")+routes.APIPrefix, apiclient.WithTimeout(healthcheckTimeout))
		status, err := client.Health(ctx)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		out, _ := json.MarshalIndent(status, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "http://localhost:8080", "base URL of the running service")
	healthcheckCmd.Flags().DurationVar(&healthcheckTimeout, "timeout", 5*time.Second, "request timeout")
}
