package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// configCmd 是 config 子命令
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "查看和校验配置",
}

// configShowCmd 输出合并后的生效配置
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "输出生效配置（默认值 < 配置文件 < 环境变量 < --set）",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := appConfig.Serialize()
		if err != nil {
			return fmt.Errorf("序列化配置失败: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// configValidateCmd 校验生效配置
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "校验生效配置",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appConfig.Validate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "配置有效")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)
}
