// Package jobs contains the engine's scheduled jobs.
package jobs

import (
	"context"
	"errors"

	"github.com/unitrack-hub/attendance-engine/internal/application/command"
	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
	"github.com/unitrack-hub/attendance-engine/pkg/logger"
)

// CredentialSource supplies ERP credentials for unattended syncs. The engine
// never stores credentials itself; the host decides where they live (its own
// keychain, environment, prompt) and hands them over per run.
type CredentialSource func() (username, password string, err error)

// AutoSyncJob re-runs the sync on a schedule so the cache stays fresh without
// the student asking. Only usable with the credential strategy; the browser
// strategies need a human at the keyboard.
type AutoSyncJob struct {
	handler *command.SyncAttendanceHandler
	creds   CredentialSource
	log     *logger.Logger
}

// NewAutoSyncJob creates a new AutoSyncJob.
func NewAutoSyncJob(handler *command.SyncAttendanceHandler, creds CredentialSource, log *logger.Logger) *AutoSyncJob {
	return &AutoSyncJob{
		handler: handler,
		creds:   creds,
		log:     log.With(logger.Component("autosync")),
	}
}

// Name implements scheduler.Job.
func (j *AutoSyncJob) Name() string { return "auto_sync" }

// Description implements scheduler.Job.
func (j *AutoSyncJob) Description() string {
	return "Refreshes the attendance snapshot from the ERP"
}

// Run executes one unattended sync. An interactive sync already holding the
// lock is not an error; the cache is being refreshed either way.
func (j *AutoSyncJob) Run(ctx context.Context) error {
	username, password, err := j.creds()
	if err != nil {
		return err
	}

	out, err := j.handler.Handle(ctx, command.SyncAttendanceCommand{
		Username: username,
		Password: password,
	})
	if err != nil {
		if errors.Is(err, shared.ErrSyncInProgress) {
			j.log.Debug("skipping scheduled sync, one is already running")
			return nil
		}
		return err
	}

	j.log.Info("scheduled sync complete",
		logger.SyncID(out.CorrelationID),
		logger.OverallPct(out.Result.Summary.OverallPercentage),
	)
	return nil
}
