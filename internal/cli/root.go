// Package cli 实现了运维命令行工具 docqactl。
package cli

import (
	"docqa-go/internal/config"
	"docqa-go/pkg/log"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "docqactl",
	Short:         "Operate the document question answering service",
	Long:          `Administrative commands for the docqa service: schema migration, credentials, document ingestion and event inspection.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to the config file (env DOCQA_CONFIG)")
}

// Execute 运行根命令。
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig 读取配置并按配置初始化日志。
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Init(cfg.Log.Level, "console", cfg.Log.OutputPath)
	return cfg, nil
}
