package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"docqa-go/internal/bootstrap"
	"docqa-go/internal/service"
	"docqa-go/pkg/extract"
	"docqa-go/pkg/log"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Pre-ingest local files or directories",
	Long: `Walks the given files and directories and ingests every supported document,
so later questions about the same content hit the cache. Already ingested content is skipped.`,
	Args: cobra.ArbitraryArgs,
	RunE: runIngest,
}

var ingestURLs []string

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestURLs, "url", nil, "document URL to ingest, repeatable")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && len(ingestURLs) == 0 {
		return fmt.Errorf("nothing to ingest: pass paths or --url")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	var failed int
	for _, u := range ingestURLs {
		if err := ingestOne(cmd, app.QAService, service.RunInput{DocumentURL: u}, u, out); err != nil {
			failed++
		}
	}
	for _, root := range args {
		walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				log.Warnf("[Ingest] 访问路径失败: %s, err=%v", path, err)
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if extract.DetectFormat(info.Name()) == extract.FormatUnknown {
				log.Infof("[Ingest] 跳过不支持的文件: %s", path)
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				log.Warnf("[Ingest] 读取文件失败: %s, err=%v", path, err)
				failed++
				return nil
			}
			if len(content) == 0 {
				log.Infof("[Ingest] 空文件跳过: %s", path)
				return nil
			}
			if err := ingestOne(cmd, app.QAService, service.RunInput{FileName: info.Name(), Content: content}, path, out); err != nil {
				failed++
			}
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d document(s) failed to ingest", failed)
	}
	return nil
}

func ingestOne(cmd *cobra.Command, qa service.QAService, in service.RunInput, label string, out io.Writer) error {
	doc, err := qa.Ingest(cmd.Context(), in)
	if err != nil {
		log.Errorf("[Ingest] 入库失败: %s, err=%v", label, err)
		fmt.Fprintf(out, "FAIL  %s: %v\n", label, err)
		return err
	}
	fmt.Fprintf(out, "OK    %s  id=%d namespace=%s chunks=%d\n", label, doc.ID, doc.Namespace, doc.ChunkCount)
	return nil
}
