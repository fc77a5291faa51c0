// Package main 是运维命令行工具 docqactl 的入口。
package main

import (
	"os"

	"docqa-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
