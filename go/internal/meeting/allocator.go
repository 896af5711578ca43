package meeting

// TotalSeconds converts a meeting length to seconds. Negative lengths count as zero.
func TotalSeconds(minutes int) int {
	if minutes < 0 {
		return 0
	}
	return minutes * 60
}

// SecondsPerSpeaker is the floor share of the meeting each speaker gets.
func SecondsPerSpeaker(minutes, speakerCount int) int {
	return NewAllocation(TotalSeconds(minutes), speakerCount).SecondsPerSpeaker
}

// Allocation splits a total number of seconds among speakers. The remainder of the
// division is never assigned to anyone.
type Allocation struct {
	TotalSeconds      int
	SpeakerCount      int
	SecondsPerSpeaker int
}

// NewAllocation builds an Allocation. speakerCount below one is treated as one,
// which the roster guarantees anyway.
func NewAllocation(totalSeconds, speakerCount int) Allocation {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	if speakerCount < 1 {
		speakerCount = 1
	}
	return Allocation{
		TotalSeconds:      totalSeconds,
		SpeakerCount:      speakerCount,
		SecondsPerSpeaker: totalSeconds / speakerCount,
	}
}

// Unallotted returns the seconds lost to floor division.
func (a Allocation) Unallotted() int {
	return a.TotalSeconds - a.SecondsPerSpeaker*a.SpeakerCount
}

// ElapsedAt returns the meeting-wide elapsed seconds when the speaker at index has
// used elapsedForSpeaker seconds.
func (a Allocation) ElapsedAt(index, elapsedForSpeaker int) int {
	return a.SecondsPerSpeaker*index + elapsedForSpeaker
}

// RemainingAfter returns the seconds left once completed speakers used their full share.
func (a Allocation) RemainingAfter(completed int) int {
	return a.remaining(a.ElapsedAt(completed, 0))
}

func (a Allocation) remaining(elapsed int) int {
	return max(a.TotalSeconds-elapsed, 0)
}
