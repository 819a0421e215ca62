package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	grpcclient "yqhp/matmul-engine/api/grpc/client"
	"yqhp/matmul-engine/internal/benchmark"
	"yqhp/matmul-engine/internal/cluster"
	"yqhp/matmul-engine/internal/config"
	"yqhp/matmul-engine/internal/coordinator"
	"yqhp/matmul-engine/internal/distributed"
	"yqhp/matmul-engine/internal/executor"
	"yqhp/matmul-engine/internal/reporter"
	"yqhp/matmul-engine/pkg/logger"
	"yqhp/matmul-engine/pkg/types"
)

var (
	// bench 命令的 flags
	benchSizes        []int
	benchStrategies   []string
	benchCoordinator  string
	benchOutput       string
	benchLocalWorkers int
	benchSeed         int64
	benchVerify       bool
	benchServe        bool
)

// benchCmd 是 bench 子命令
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "运行矩阵乘法基准测试",
	Long: `对每个矩阵规模生成两个随机方阵，依次用各策略相乘并记录耗时、内存、CPU 和节点数。

默认以独立模式运行：本进程同时充当协调者，并启动 local_workers 个进程内工作节点。
指定 --coordinator 时，分布式策略使用远程协调者的集群成员。`,
	Example: `  # 使用默认规模运行全部策略
  matmul bench

  # 指定规模和策略
  matmul bench --sizes 50,100 --strategies sequential,parallel

  # 使用远程集群
  matmul bench --coordinator localhost:9090

  # 校验结果并写入指定文件
  matmul bench --verify --output results/run1.csv`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", nil, "矩阵规模列表，逗号分隔")
	benchCmd.Flags().StringSliceVar(&benchStrategies, "strategies", nil, "策略列表 (sequential, parallel, distributed)")
	benchCmd.Flags().StringVar(&benchCoordinator, "coordinator", "", "远程协调者地址，为空时以独立模式运行")
	benchCmd.Flags().StringVarP(&benchOutput, "output", "o", "", "CSV 结果文件路径")
	benchCmd.Flags().IntVar(&benchLocalWorkers, "local-workers", 0, "独立模式下的进程内工作节点数")
	benchCmd.Flags().Int64Var(&benchSeed, "seed", 0, "随机数种子，0 表示使用当前时间")
	benchCmd.Flags().BoolVar(&benchVerify, "verify", false, "与顺序策略的结果比对")
	benchCmd.Flags().BoolVar(&benchServe, "serve", false, "独立模式下同时开放协调者 gRPC 和 REST 服务，允许远程工作节点加入")
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	applyBenchFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strategies, cleanup, err := buildStrategies(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	manager, err := buildReporters(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(context.Background()); err != nil {
			logger.Error("failed to close reporters", zap.Error(err))
		}
	}()

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), Banner, Version)
		fmt.Fprintln(cmd.OutOrStdout())
		printf(cmd, "  规模: %v\n", cfg.Benchmark.Sizes)
		printf(cmd, "  策略: %v\n", cfg.Benchmark.Strategies)
		if cfg.Benchmark.CoordinatorAddr != "" {
			printf(cmd, "  协调者: %s\n", cfg.Benchmark.CoordinatorAddr)
		} else {
			printf(cmd, "  进程内工作节点: %d\n", cfg.Coordinator.LocalWorkers)
		}
		printf(cmd, "\n")
	}

	start := time.Now()
	records, runErr := benchmark.NewHarness(cfg.HarnessConfig(), strategies, manager).Run(ctx)
	if err := manager.Flush(ctx); err != nil {
		logger.Error("failed to flush reporters", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("基准测试失败: %w", runErr)
	}

	printf(cmd, "\n完成 %d 条记录，用时 %s\n", len(records), time.Since(start).Round(time.Millisecond))
	return nil
}

// applyBenchFlags 将显式指定的命令行参数写入配置
func applyBenchFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("sizes") {
		cfg.Benchmark.Sizes = benchSizes
	}
	if flags.Changed("strategies") {
		cfg.Benchmark.Strategies = benchStrategies
	}
	if flags.Changed("coordinator") {
		cfg.Benchmark.CoordinatorAddr = benchCoordinator
	}
	if flags.Changed("local-workers") {
		cfg.Coordinator.LocalWorkers = benchLocalWorkers
	}
	if flags.Changed("seed") {
		cfg.Benchmark.Seed = benchSeed
	}
	if flags.Changed("verify") {
		cfg.Benchmark.Verify = benchVerify
	}
	if flags.Changed("output") {
		setCSVPath(cfg, benchOutput)
	}
}

// setCSVPath 修改 CSV 报告器的输出路径，没有 CSV 报告器时添加一个
func setCSVPath(cfg *config.Config, path string) {
	for i, r := range cfg.Output.Reporters {
		if r.Type == reporter.ReporterTypeCSV {
			if r.Config == nil {
				r.Config = map[string]any{}
			}
			r.Config["file_path"] = path
			r.Enabled = true
			cfg.Output.Reporters[i] = r
			return
		}
	}
	cfg.Output.Reporters = append(cfg.Output.Reporters, reporter.ReporterConfig{
		Type:    reporter.ReporterTypeCSV,
		Enabled: true,
		Config:  map[string]any{"file_path": path},
	})
}

func buildReporters(ctx context.Context, cfg *config.Config) (*reporter.Manager, error) {
	registry := reporter.NewRegistry()
	if err := reporter.RegisterBuiltinReporters(registry); err != nil {
		return nil, err
	}
	manager := reporter.NewManager(registry)
	for _, rc := range cfg.Output.Reporters {
		if quiet && rc.Type == reporter.ReporterTypeConsole {
			continue
		}
		if err := manager.AddReporterFromConfig(ctx, rc); err != nil {
			_ = manager.Close(ctx)
			return nil, err
		}
	}
	return manager, nil
}

// buildStrategies 按配置顺序创建策略，返回的 cleanup 释放分布式执行器及其依赖
func buildStrategies(ctx context.Context, cfg *config.Config) ([]executor.Multiplier, func(), error) {
	var (
		strategies []executor.Multiplier
		cleanups   []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	for _, name := range cfg.Benchmark.Strategies {
		switch name {
		case config.StrategySequential:
			strategies = append(strategies, executor.NewSequential())
		case config.StrategyParallel:
			strategies = append(strategies, executor.NewParallel(cfg.ParallelConfig()))
		case config.StrategyDistributed:
			var (
				exec *distributed.Executor
				done func()
				err  error
			)
			if cfg.Benchmark.CoordinatorAddr != "" {
				exec, done, err = remoteExecutor(cfg)
			} else {
				exec, done, err = standaloneExecutor(ctx, cfg)
			}
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			cleanups = append(cleanups, done)
			strategies = append(strategies, exec)
		default:
			cleanup()
			return nil, nil, fmt.Errorf("未知的策略: %s", name)
		}
	}
	return strategies, cleanup, nil
}

// standaloneExecutor 在本进程内启动协调者
func standaloneExecutor(ctx context.Context, cfg *config.Config) (*distributed.Executor, func(), error) {
	nodeCfg := cfg.CoordinatorNodeConfig()
	if !benchServe {
		nodeCfg.GRPC = nil
		nodeCfg.REST = nil
		if nodeCfg.LocalWorkers == 0 {
			return nil, nil, errors.New("独立模式下 local_workers 必须大于 0，或使用 --serve 允许远程工作节点加入")
		}
	}

	membership, closeMembership, err := coordinator.BuildMembership(ctx, cfg.MembershipBackend())
	if err != nil {
		return nil, nil, err
	}
	node, err := coordinator.NewNode(nodeCfg, membership)
	if err != nil {
		_ = closeMembership()
		return nil, nil, err
	}
	if err := node.Start(ctx); err != nil {
		_ = closeMembership()
		return nil, nil, fmt.Errorf("启动协调者失败: %w", err)
	}

	done := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Executor.ShutdownTimeout+time.Second)
		defer cancel()
		if err := node.Stop(stopCtx); err != nil {
			logger.Warn("failed to stop coordinator", zap.Error(err))
		}
		if err := closeMembership(); err != nil {
			logger.Warn("failed to close membership", zap.Error(err))
		}
	}
	return node.Executor(), done, nil
}

// remoteExecutor 使用远程协调者的成员视图，直接向远程工作节点分发行任务。
// 远程协调者的进程内成员在本进程不可达，因此被过滤掉。
func remoteExecutor(cfg *config.Config) (*distributed.Executor, func(), error) {
	client, err := grpcclient.NewCoordinatorClient(cfg.Benchmark.CoordinatorAddr, cfg.ClientConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("连接协调者失败: %w", err)
	}
	membership := cluster.Filter(client, func(m *types.MemberInfo) bool {
		return !distributed.IsLocal(m.Address)
	})
	exec, err := distributed.New(membership, grpcclient.NewWorkerTransport(cfg.ClientConfig()), cfg.DistributedOptions())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	done := func() {
		if err := exec.Shutdown(); err != nil {
			logger.Warn("failed to shut down executor", zap.Error(err))
		}
		_ = client.Close()
	}
	return exec, done, nil
}
