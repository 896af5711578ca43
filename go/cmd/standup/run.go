package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/standup/go/internal/meeting"
	"github.com/mcdev12/standup/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRunCmd(deps *dependencies) *cobra.Command {
	var (
		minutes   int
		attendees []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a meeting in the terminal",
		Long:  "Runs a meeting in the terminal. Press Enter to skip to the next speaker and Ctrl-C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("minutes") {
				deps.config.Meeting.LengthInMinutes = minutes
			}
			if cmd.Flags().Changed("attendee") {
				deps.config.Meeting.Attendees = attendees
			}
			if deps.config.Meeting.LengthInMinutes < 0 {
				return fmt.Errorf("meeting length must not be negative, got %d", deps.config.Meeting.LengthInMinutes)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine := meeting.New(deps.config.Meeting.LengthInMinutes, deps.config.Meeting.Attendees,
				meeting.WithFrequency(deps.config.Timer.Frequency))
			defer engine.Close()

			go skipOnEnter(cmd.InOrStdin(), engine)

			return runMeeting(ctx, engine, deps.config.Meeting.Title, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&minutes, "minutes", "m", 0, "meeting length in minutes")
	cmd.Flags().StringArrayVarP(&attendees, "attendee", "a", nil, "attendee name, repeat for each speaker")

	return cmd
}

// runMeeting starts engine and writes a line per progress update until the
// meeting completes or ctx is cancelled.
func runMeeting(ctx context.Context, engine *meeting.Engine, title string, out io.Writer) error {
	updates := engine.Subscribe(64)

	if title != "" {
		fmt.Fprintln(out, title)
	}
	if err := engine.Start(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			engine.Stop()
			fmt.Fprintln(out, formatProgress(engine.Snapshot()))
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			fmt.Fprintln(out, formatProgress(snap))
			if snap.Status == models.MeetingStatusCompleted {
				return nil
			}
		}
	}
}

func skipOnEnter(in io.Reader, engine *meeting.Engine) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := engine.Skip(); err != nil {
			log.Debug().Err(err).Msg("skip ignored")
			return
		}
	}
}

func formatProgress(snap meeting.Snapshot) string {
	switch snap.Status {
	case models.MeetingStatusCompleted:
		return "Meeting complete"
	case models.MeetingStatusStopped:
		return fmt.Sprintf("Meeting stopped during %s", snap.ActiveSpeaker)
	case models.MeetingStatusNotStarted:
		return "Meeting not started"
	}

	return fmt.Sprintf("%s  %s elapsed  %s left in meeting",
		snap.ActiveSpeaker, formatSeconds(snap.SecondsElapsed), formatSeconds(snap.SecondsRemaining))
}

func formatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
