// Package cmd 提供 matmul CLI 的命令实现
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"yqhp/matmul-engine/internal/config"
	"yqhp/matmul-engine/pkg/logger"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
	// Banner 是启动时显示的 ASCII 艺术
	Banner = `
   __  ___      __  __  ___      __
  /  |/  /___ _/ /_/  |/  /_  __/ /
 / /|_/ / __ '/ __/ /|_/ / / / / /    MatMul Engine %s
/ /  / / /_/ / /_/ /  / / /_/ / /
/_/  /_/\__,_/\__/_/  /_/\__,_/_/
`
)

var (
	// 全局配置
	cfgFile   string
	debug     bool
	quiet     bool
	overrides map[string]string

	// appConfig 在 PersistentPreRunE 中加载
	appConfig *config.Config
)

// rootCmd 是根命令
var rootCmd = &cobra.Command{
	Use:   "matmul",
	Short: "分布式矩阵乘法基准测试引擎",
	Long: `matmul 对比顺序、共享内存并行和基于 gRPC 的分布式三种矩阵乘法策略，
记录每种策略在不同矩阵规模下的耗时和资源使用。`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appConfig = cfg
		initLogger(cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func init() {
	// 全局 flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "静默模式")
	rootCmd.PersistentFlags().StringToStringVar(&overrides, "set", nil, "覆盖配置项，例如 --set executor.retries=1")

	// 禁用默认的 completion 命令
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// 自定义版本模板
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig 按 默认值 < 配置文件 < 环境变量 < --set 的顺序加载配置
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader = loader.WithConfigPath(cfgFile)
	}
	if len(overrides) > 0 {
		loader = loader.WithCmdArgs(overrides)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) {
	logCfg := cfg.Logging
	switch {
	case debug:
		logCfg.Level = "debug"
	case quiet:
		logCfg.Level = "error"
	}
	logger.Init(&logCfg)
}

// printf 在非静默模式下输出
func printf(cmd *cobra.Command, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}
