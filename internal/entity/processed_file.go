package entity

import "time"

// ProcessedFile is the ledger marker proving a source image was committed.
type ProcessedFile struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	ProcessedAt time.Time `json:"processed_at"`
}
