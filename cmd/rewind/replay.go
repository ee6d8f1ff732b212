package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"rewind/internal/fetch"
	"rewind/internal/replay"
)

// runReplay assembles the replay config from flags and runs the job.
func runReplay(ctx context.Context, cmd *cobra.Command, opener fetch.Opener, logger *slog.Logger) error {
	topic, _ := cmd.Flags().GetString("topic")
	partition, _ := cmd.Flags().GetInt32("partition")
	prefix, _ := cmd.Flags().GetString("prefix")
	keys, _ := cmd.Flags().GetBool("keys")
	workers, _ := cmd.Flags().GetInt("workers")
	brokers, _ := cmd.Flags().GetStringSlice("brokers")
	tls, _ := cmd.Flags().GetBool("tls")

	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	var sasl *replay.SASLConfig
	if mech, _ := cmd.Flags().GetString("sasl-mechanism"); mech != "" {
		user, _ := cmd.Flags().GetString("sasl-user")
		password, _ := cmd.Flags().GetString("sasl-password")
		sasl = &replay.SASLConfig{
			Mechanism: strings.ToLower(mech),
			User:      user,
			Password:  password,
		}
	}

	return replay.New(opener, replay.Config{
		Brokers:      brokers,
		Topic:        topic,
		Partition:    partition,
		Prefix:       prefix,
		IncludesKeys: keys,
		Workers:      workers,
		TLS:          tls,
		SASL:         sasl,
		Logger:       logger,
	}).Run(ctx)
}
