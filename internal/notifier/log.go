package notifier

import (
	"io"
	"log/slog"
	"time"

	"github.com/limbopet/brain/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes runner events to the given logger as structured records.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each event via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) JobDone(job model.Job) {
	n.logger.Info("job done", "job_id", job.ID, "job_type", job.JobType)
}

func (n *LogNotifier) JobFailed(job model.Job, err error) {
	n.logger.Error("job failed", "job_id", job.ID, "job_type", job.JobType, "error", err)
}

func (n *LogNotifier) PullFailed(err error, retryIn time.Duration) {
	if retryIn <= 0 {
		n.logger.Warn("pull failed", "error", err)
		return
	}
	n.logger.Warn("pull failed", "error", err, "retry_in", retryIn.String())
}

func (n *LogNotifier) SubmitFailed(job model.Job, err error) {
	n.logger.Error("failure report not delivered", "job_id", job.ID, "job_type", job.JobType, "error", err)
}

// New picks the notifier for a notification.type value. Unknown types fall
// back to the console.
func New(kind string, console io.Writer, logger *slog.Logger) model.Notifier {
	if kind == "log" {
		return NewLogNotifier(logger)
	}
	return NewConsoleNotifier(console)
}
