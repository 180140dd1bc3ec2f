package blobsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

// Info implements cron.Logger.Info at debug level
func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

// Error implements cron.Logger.Error
func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return out
}

// ScheduleBackup runs Backup on the cron spec until ctx is done. Runs never
// overlap and a panicking run does not stop the schedule.
func (s *Syncer) ScheduleBackup(ctx context.Context, spec string, src EvaluationSource) (*cron.Cron, error) {
	l := &cronLogger{logger: s.logger.Named("cron")}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)

	_, err := c.AddFunc(spec, func() {
		s.runBackup(ctx, src, "Scheduled")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule backup %q: %w", spec, err)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	s.logger.Info("Backup scheduled", zap.String("schedule", spec))
	return c, nil
}

// BackupOnDemand starts a worker running Backup whenever the returned
// trigger is called, until ctx is done. Triggers arriving while a backup
// runs collapse into a single follow-up run. The trigger never blocks.
func (s *Syncer) BackupOnDemand(ctx context.Context, src EvaluationSource) func() {
	pending := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pending:
				if ctx.Err() != nil {
					return
				}
				s.runBackup(ctx, src, "On-demand")
			}
		}
	}()

	return func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}
}

func (s *Syncer) runBackup(ctx context.Context, src EvaluationSource, kind string) {
	keys, err := s.Backup(ctx, src)
	switch {
	case errors.Is(err, ErrNothingToExport):
		s.logger.Info(kind+" backup skipped, no evaluations")
	case err != nil:
		s.logger.Error(kind+" backup failed", zap.Error(err))
	default:
		s.logger.Info(kind+" backup completed", zap.Strings("keys", keys))
	}
}
