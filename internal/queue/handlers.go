package queue

import (
	"github.com/hibiken/asynq"
)

// NewUsageMux routes usage:record tasks to w. Unknown task types are
// rejected by the mux.
func NewUsageMux(w *UsageWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeUsageRecord, w)
	return mux
}
