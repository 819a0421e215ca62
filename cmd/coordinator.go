package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yqhp/matmul-engine/internal/coordinator"
)

var (
	// coordinator start 命令的 flags
	coordID           string
	coordGRPCAddress  string
	coordHTTPAddress  string
	coordLocalWorkers int
	coordBackend      string
	coordRedisAddr    string
)

// coordinatorCmd 是 coordinator 子命令
var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "管理协调者节点",
	Long:  `协调者节点负责集群成员管理、存活检测和状态查询 API。`,
}

// coordinatorStartCmd 是 coordinator start 子命令
var coordinatorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动协调者节点",
	Long: `启动协调者节点，接受工作节点的注册、心跳和离开请求。

协调者节点负责：
  - 管理工作节点注册和心跳
  - 驱逐超过存活超时的节点
  - 通过 REST API 提供集群状态`,
	Example: `  # 使用默认配置启动
  matmul coordinator start

  # 指定监听地址
  matmul coordinator start --grpc-address :9090 --http-address :8080

  # 使用 Redis 保存成员
  matmul coordinator start --backend redis --redis-addr localhost:6379`,
	RunE: runCoordinatorStart,
}

func init() {
	rootCmd.AddCommand(coordinatorCmd)
	coordinatorCmd.AddCommand(coordinatorStartCmd)

	coordinatorStartCmd.Flags().StringVar(&coordID, "id", "", "协调者 ID（不指定则自动生成）")
	coordinatorStartCmd.Flags().StringVar(&coordGRPCAddress, "grpc-address", ":9090", "gRPC 监听地址")
	coordinatorStartCmd.Flags().StringVar(&coordHTTPAddress, "http-address", ":8080", "REST API 监听地址")
	coordinatorStartCmd.Flags().IntVar(&coordLocalWorkers, "local-workers", 0, "进程内工作节点数")
	coordinatorStartCmd.Flags().StringVar(&coordBackend, "backend", "memory", "成员存储 (memory, redis)")
	coordinatorStartCmd.Flags().StringVar(&coordRedisAddr, "redis-addr", "localhost:6379", "Redis 地址")
}

func runCoordinatorStart(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	flags := cmd.Flags()
	if flags.Changed("id") {
		cfg.Coordinator.ID = coordID
	}
	if flags.Changed("grpc-address") {
		cfg.Coordinator.GRPCAddress = coordGRPCAddress
	}
	if flags.Changed("http-address") {
		cfg.Coordinator.HTTPAddress = coordHTTPAddress
	}
	if flags.Changed("local-workers") {
		cfg.Coordinator.LocalWorkers = coordLocalWorkers
	}
	if flags.Changed("backend") {
		cfg.Membership.Backend = coordBackend
	}
	if flags.Changed("redis-addr") {
		cfg.Membership.Redis.Addr = coordRedisAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	membership, closeMembership, err := coordinator.BuildMembership(ctx, cfg.MembershipBackend())
	if err != nil {
		return fmt.Errorf("创建成员存储失败: %w", err)
	}
	defer closeMembership()

	nodeCfg := cfg.CoordinatorNodeConfig()
	node, err := coordinator.NewNode(nodeCfg, membership)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), Banner, Version)
		fmt.Fprintln(cmd.OutOrStdout())
		printf(cmd, "  正在启动协调者节点...\n")
		printf(cmd, "  ID: %s\n", nodeCfg.ID)
		printf(cmd, "  gRPC 地址: %s\n", cfg.Coordinator.GRPCAddress)
		if nodeCfg.REST != nil {
			printf(cmd, "  REST 地址: %s\n", cfg.Coordinator.HTTPAddress)
		}
		printf(cmd, "  成员存储: %s\n", cfg.Membership.Backend)
		printf(cmd, "  进程内工作节点: %d\n", cfg.Coordinator.LocalWorkers)
		printf(cmd, "\n")
	}

	if err := node.Start(ctx); err != nil {
		return fmt.Errorf("启动协调者失败: %w", err)
	}
	printf(cmd, "协调者节点已启动。按 Ctrl+C 停止。\n")

	var serveErr error
	select {
	case <-ctx.Done():
		printf(cmd, "\n正在关闭协调者...\n")
	case serveErr = <-node.RESTErrors():
	}

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := node.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("停止协调者失败: %w", err)
	}
	if serveErr != nil {
		return fmt.Errorf("REST 服务异常退出: %w", serveErr)
	}

	printf(cmd, "协调者节点已停止。\n")
	return nil
}
