package notifier

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/limbopet/brain/internal/model"
)

var _ model.Notifier = (*ConsoleNotifier)(nil)

// ConsoleNotifier prints one short glyph-prefixed line per runner event.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier returns a notifier writing to w, usually os.Stdout.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

func (n *ConsoleNotifier) JobDone(job model.Job) {
	n.printf("✅ done %s %s\n", job.JobType, job.ID)
}

func (n *ConsoleNotifier) JobFailed(job model.Job, err error) {
	n.printf("❌ failed %s %s: %v\n", job.JobType, job.ID, err)
}

// PullFailed reports the wait in whole seconds. A zero wait means no retry
// follows.
func (n *ConsoleNotifier) PullFailed(err error, retryIn time.Duration) {
	if retryIn <= 0 {
		n.printf("⚠️ pull_job failed: %v\n", err)
		return
	}
	n.printf("⚠️ pull_job failed: %v, retry in %.0fs\n", err, retryIn.Seconds())
}

func (n *ConsoleNotifier) SubmitFailed(_ model.Job, err error) {
	n.printf("⚠️ submit_job(failed) also failed: %v\n", err)
}

func (n *ConsoleNotifier) printf(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, format, args...)
}
