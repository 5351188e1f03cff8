package entity

import "time"

// RunRecord is one persisted terminal batch run.
type RunRecord struct {
	ID         string    `json:"id"`
	FinishedAt time.Time `json:"finished_at"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	Stopped    int       `json:"stopped"`
	Cancelled  bool      `json:"cancelled"`
}
