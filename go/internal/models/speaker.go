package models

import (
	"github.com/google/uuid"
)

// Speaker is one participant entitled to a slice of meeting time.
type Speaker struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	IsCompleted bool      `json:"is_completed"`
}
