package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"docqa-go/pkg/events"
	"docqa-go/pkg/kafka"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect published service events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print events from the Kafka topic until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runEventsTail,
}

var (
	tailGroup string
	tailRaw   bool
)

func init() {
	eventsTailCmd.Flags().StringVar(&tailGroup, "group", "", "consumer group, defaults to kafka.group_id")
	eventsTailCmd.Flags().BoolVar(&tailRaw, "raw", false, "print the raw JSON envelope")
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsTail(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Kafka.Brokers == "" {
		return fmt.Errorf("kafka.brokers is not configured")
	}
	kafkaCfg := cfg.Kafka
	if tailGroup != "" {
		kafkaCfg.GroupID = tailGroup
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	return kafka.Consume(ctx, kafkaCfg, func(_ context.Context, msg kafkago.Message) error {
		return printEvent(out, msg.Value, tailRaw)
	})
}

// printEvent 以单行文本输出一条事件，无法解析的消息原样输出。
func printEvent(w io.Writer, value []byte, raw bool) error {
	if raw {
		_, err := fmt.Fprintln(w, string(value))
		return err
	}
	env, err := events.Decode(value)
	if err != nil {
		_, werr := fmt.Fprintf(w, "undecodable event: %s\n", value)
		return werr
	}
	_, err = fmt.Fprintf(w, "%s  %-18s  %s  %s\n",
		env.OccurredAt.Format("2006-01-02 15:04:05"), env.Type, env.ID, env.Payload)
	return err
}
