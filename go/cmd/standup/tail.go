package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/standup/go/internal/meeting/events"
	"github.com/mcdev12/standup/go/internal/meeting/publisher"
	"github.com/spf13/cobra"
)

func newTailCmd(deps *dependencies) *cobra.Command {
	var consumerName string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow meeting events published to NATS JetStream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumerConfig := publisher.DefaultConsumerConfig()
			consumerConfig.URL = deps.config.NATS.URL
			if deps.config.NATS.StreamName != "" {
				consumerConfig.StreamName = deps.config.NATS.StreamName
			}
			if deps.config.NATS.SubjectPrefix != "" {
				consumerConfig.SubjectPrefix = deps.config.NATS.SubjectPrefix
			}
			if consumerName != "" {
				consumerConfig.ConsumerName = consumerName
			}

			consumer, err := publisher.NewEventConsumer(ctx, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create event consumer: %w", err)
			}
			defer consumer.Close()

			out := cmd.OutOrStdout()
			return consumer.Run(ctx, func(ctx context.Context, event events.Event) error {
				return printEvent(out, event)
			})
		},
	}

	cmd.Flags().StringVar(&consumerName, "consumer", "", "durable consumer name")

	return cmd
}

func printEvent(out io.Writer, event events.Event) error {
	line, err := formatEvent(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, line)
	return err
}

func formatEvent(event events.Event) (string, error) {
	payload, err := events.ParsePayload(event)
	if err != nil {
		return "", err
	}

	at := event.Timestamp.Format("15:04:05")
	switch p := payload.(type) {
	case *events.MeetingStartedPayload:
		return fmt.Sprintf("%s started %q: %d speakers, %s each", at, p.Title, len(p.Speakers), formatSeconds(p.SecondsPerSpeaker)), nil
	case *events.SpeakerChangedPayload:
		if p.Completed {
			return fmt.Sprintf("%s last speaker finished", at), nil
		}
		return fmt.Sprintf("%s now speaking: %s (%s left)", at, p.ActiveSpeaker, formatSeconds(p.SecondsRemaining)), nil
	case *events.MeetingCompletedPayload:
		return fmt.Sprintf("%s meeting complete after %d speakers", at, p.TotalSpeakers), nil
	case *events.MeetingStoppedPayload:
		return fmt.Sprintf("%s meeting stopped with %s left", at, formatSeconds(p.SecondsRemaining)), nil
	case *events.MeetingResetPayload:
		return fmt.Sprintf("%s meeting reset: %d minutes, %d speakers", at, p.LengthInMinutes, len(p.Speakers)), nil
	default:
		return fmt.Sprintf("%s %s", at, event.Type), nil
	}
}
