package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	restclient "yqhp/matmul-engine/api/rest/client"
)

var (
	clusterAddress string
	clusterTimeout time.Duration
)

// clusterCmd 是 cluster 子命令
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "查看集群状态",
}

// clusterStatusCmd 是 cluster status 子命令
var clusterStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示协调者健康状态、成员列表和执行统计",
	Example: `  # 查询本地协调者
  matmul cluster status

  # 查询指定协调者
  matmul cluster status --address http://10.0.0.1:8080`,
	RunE: runClusterStatus,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.AddCommand(clusterStatusCmd)

	clusterStatusCmd.Flags().StringVar(&clusterAddress, "address", "", "协调者 REST 地址（默认由 coordinator.http_address 推导）")
	clusterStatusCmd.Flags().DurationVar(&clusterTimeout, "timeout", 5*time.Second, "请求超时")
}

func runClusterStatus(cmd *cobra.Command, args []string) error {
	baseURL := clusterAddress
	if baseURL == "" {
		baseURL = appConfig.RESTBaseURL()
	} else if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	client := restclient.NewClient(&restclient.Config{BaseURL: baseURL, Timeout: clusterTimeout})

	health, err := client.Health()
	if err != nil {
		return fmt.Errorf("协调者不可达: %w", err)
	}
	members, err := client.Members()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "协调者: %s (%s)\n", baseURL, health.Status)
	fmt.Fprintf(out, "成员数: %d\n\n", members.Total)

	sort.Slice(members.Members, func(i, j int) bool {
		return members.Members[i].ID < members.Members[j].ID
	})
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tADDRESS\tJOINED\tLABELS")
	for _, m := range members.Members {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Address, m.JoinedAt.Format(time.RFC3339), formatLabels(m.Labels))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// 协调者未挂载执行器时 stats 返回 404
	stats, err := client.Stats()
	if err != nil {
		return nil
	}
	fmt.Fprintf(out, "\n执行中的任务: %d\n", stats.Running)
	l := stats.Latency
	fmt.Fprintf(out, "任务延迟: count=%d mean=%s p50=%s p95=%s p99=%s max=%s\n",
		l.Count, l.Mean, l.P50, l.P95, l.P99, l.Max)
	return nil
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+labels[k])
	}
	return strings.Join(pairs, ",")
}
