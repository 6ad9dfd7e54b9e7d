package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OverdueJobName is the name of the job flagging unpaid documents past their due date
const OverdueJobName = "mark_overdue"

// OverdueMarker moves open documents whose due date has passed to overdue
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// OverdueJob flags overdue documents
type OverdueJob struct {
	documents OverdueMarker
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewOverdueJob creates the job. timeout bounds a single run.
func NewOverdueJob(documents OverdueMarker, logger *zap.Logger, timeout time.Duration) *OverdueJob {
	return &OverdueJob{documents: documents, logger: logger, timeout: timeout, now: time.Now}
}

// Run marks every document overdue as of now
func (j *OverdueJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	marked, err := j.documents.MarkOverdue(ctx, j.now().UTC())
	if err != nil {
		j.logger.Error("overdue run failed",
			zap.Int("marked", marked),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	j.logger.Info("overdue run completed",
		zap.Int("marked", marked),
		zap.Duration("duration", time.Since(start)))
}

// RegisterOverdueJob schedules the overdue job
func RegisterOverdueJob(s *Scheduler, documents OverdueMarker, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	return s.AddJob(OverdueJobName, cronExpr, NewOverdueJob(documents, logger, timeout).Run)
}
