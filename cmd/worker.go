package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	grpcclient "yqhp/matmul-engine/api/grpc/client"
	"yqhp/matmul-engine/internal/worker"
)

var (
	// worker start 命令的 flags
	workerID          string
	workerAddress     string
	workerAdvertise   string
	workerCoordinator string
	workerLabels      string
)

// workerCmd 是 worker 子命令
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "管理工作节点",
	Long:  `工作节点负责计算协调者分发的行任务。`,
}

// workerStartCmd 是 worker start 子命令
var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动工作节点",
	Long:  `启动工作节点，注册到协调者并按心跳间隔上报存活，退出时离开集群。`,
	Example: `  # 使用默认配置启动
  matmul worker start

  # 指定协调者地址
  matmul worker start --coordinator localhost:9090

  # 指定 ID、监听地址和对外地址
  matmul worker start --id worker-1 --address :9091 --advertise 10.0.0.5:9091

  # 添加标签
  matmul worker start --labels zone=a,rack=7`,
	RunE: runWorkerStart,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().StringVar(&workerID, "id", "", "工作节点 ID（不指定则自动生成）")
	workerStartCmd.Flags().StringVar(&workerAddress, "address", ":9091", "gRPC 监听地址")
	workerStartCmd.Flags().StringVar(&workerAdvertise, "advertise", "", "注册到集群的地址，默认使用监听地址")
	workerStartCmd.Flags().StringVar(&workerCoordinator, "coordinator", "localhost:9090", "协调者地址")
	workerStartCmd.Flags().StringVar(&workerLabels, "labels", "", "标签，key=value 格式，逗号分隔")
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	flags := cmd.Flags()
	if flags.Changed("id") {
		cfg.Worker.ID = workerID
	}
	if flags.Changed("address") {
		cfg.Worker.Address = workerAddress
	}
	if flags.Changed("advertise") {
		cfg.Worker.AdvertiseAddress = workerAdvertise
	}
	if flags.Changed("coordinator") {
		cfg.Worker.CoordinatorAddr = workerCoordinator
	}
	if flags.Changed("labels") {
		cfg.Worker.Labels = parseLabels(workerLabels)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := grpcclient.NewCoordinatorClient(cfg.Worker.CoordinatorAddr, cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("连接协调者失败: %w", err)
	}
	defer client.Close()

	node := worker.NewNode(cfg.WorkerNodeConfig(), client)

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), Banner, Version)
		fmt.Fprintln(cmd.OutOrStdout())
		printf(cmd, "  正在启动工作节点...\n")
		printf(cmd, "  ID: %s\n", node.ID())
		printf(cmd, "  地址: %s\n", cfg.Worker.Address)
		printf(cmd, "  协调者: %s\n", cfg.Worker.CoordinatorAddr)
		if len(cfg.Worker.Labels) > 0 {
			printf(cmd, "  标签: %v\n", cfg.Worker.Labels)
		}
		printf(cmd, "\n")
	}

	if err := node.Start(ctx); err != nil {
		return fmt.Errorf("启动工作节点失败: %w", err)
	}
	printf(cmd, "工作节点已注册为 %s。按 Ctrl+C 停止。\n", node.Info().Address)

	<-ctx.Done()
	printf(cmd, "\n正在关闭工作节点...\n")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := node.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("停止工作节点失败: %w", err)
	}

	printf(cmd, "工作节点已停止，共计算 %d 行。\n", node.Served())
	return nil
}

func parseLabels(s string) map[string]string {
	result := make(map[string]string)
	if s == "" {
		return result
	}
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return result
}
