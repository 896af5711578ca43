package meeting

import (
	"github.com/google/uuid"
	"github.com/mcdev12/standup/go/internal/models"
)

// DefaultSpeakerName is used when a meeting has no attendees.
const DefaultSpeakerName = "Speaker 1"

// BuildRoster derives the ordered speakers for a meeting. Every call assigns fresh
// identities; an empty attendee list yields a single DefaultSpeakerName speaker.
func BuildRoster(attendees []string) []models.Speaker {
	if len(attendees) == 0 {
		return []models.Speaker{{ID: uuid.New(), Name: DefaultSpeakerName}}
	}

	speakers := make([]models.Speaker, len(attendees))
	for i, name := range attendees {
		speakers[i] = models.Speaker{
			ID:   uuid.New(),
			Name: name,
		}
	}
	return speakers
}

func copySpeakers(speakers []models.Speaker) []models.Speaker {
	out := make([]models.Speaker, len(speakers))
	copy(out, speakers)
	return out
}
