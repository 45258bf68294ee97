package model

import "time"

// JobRun is one execution of the background classification pass.
type JobRun struct {
	StartedAt  time.Time
	FinishedAt *time.Time
	ID         string
	Error      string
	Processed  int
	Failed     int
}
