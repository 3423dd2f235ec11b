package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockProcessDay advances every open ledger by one day.
	TaskStockProcessDay = "stock:process_day"
)

// ProcessDayPayload carries the batch date. A zero Date means "today in UTC",
// resolved when the task runs rather than when it was enqueued.
type ProcessDayPayload struct {
	Date time.Time `json:"date"`
}

// NewProcessDayTask constructs an Asynq task for the daily stock batch.
func NewProcessDayTask(date time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ProcessDayPayload{Date: date})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockProcessDay, body, asynq.Queue(QueueDefault)), nil
}
