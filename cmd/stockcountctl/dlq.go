package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/maninjwa/stock-count-backend/internal/config"
	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/worker"
)

var queues = []string{worker.QueueReconcile, worker.QueueNotify}

func dlqCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and requeue dead-lettered jobs",
	}

	var limit int64
	list := &cobra.Command{
		Use:   "list [queue]",
		Short: "Show the oldest dead-lettered jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rdb, err := openRedis(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer rdb.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tTYPE\tATTEMPTS\tFAILED AT\tREASON\tPAYLOAD")
			for _, q := range selectQueues(args) {
				entries, err := worker.ListDLQ(ctx, rdb, q, limit)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", e.OriginalQueue, e.JobType, e.Attempts, e.FailedAt, e.Reason, e.Payload)
				}
			}
			return w.Flush()
		},
	}
	list.Flags().Int64Var(&limit, "limit", 20, "entries per queue")

	var n int
	requeue := &cobra.Command{
		Use:   "requeue [queue]",
		Short: "Move dead-lettered jobs back to their queue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			rdb, err := openRedis(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer rdb.Close()

			for _, q := range selectQueues(args) {
				moved, err := worker.RequeueDLQ(ctx, rdb, q, n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d requeued\n", q, moved)
			}
			return nil
		},
	}
	requeue.Flags().IntVar(&n, "count", 100, "maximum jobs per queue")

	cmd.AddCommand(list, requeue)
	return cmd
}

func selectQueues(args []string) []string {
	if len(args) == 1 {
		return args
	}
	return queues
}

func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is not set")
	}
	return infra.NewRedis(ctx, cfg.RedisURL)
}
