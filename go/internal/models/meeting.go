package models

// MeetingStatus defines where a meeting is in its timer lifecycle.
type MeetingStatus string

const (
	MeetingStatusNotStarted MeetingStatus = "NOT_STARTED"
	MeetingStatusRunning    MeetingStatus = "RUNNING"
	MeetingStatusStopped    MeetingStatus = "STOPPED"
	MeetingStatusCompleted  MeetingStatus = "COMPLETED"
)

// MeetingConfig is the resolved configuration handed to the timer.
type MeetingConfig struct {
	Title           string   `json:"title" yaml:"title"`
	LengthInMinutes int      `json:"length_in_minutes" yaml:"length_in_minutes"`
	Attendees       []string `json:"attendees" yaml:"attendees"`
}
