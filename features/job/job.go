package job

import (
	"encoding/json"
	"time"
)

// Job is a queue message that exhausted its delivery attempts.
type Job struct {
	ID        string          `json:"id"`
	BatchID   string          `json:"batch_id"`
	Handler   string          `json:"handler"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
