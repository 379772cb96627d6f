package services

import "log/slog"

// bestEffort runs fn and logs its error instead of returning it. It is the
// single wrapper for side-channel work — progress writes, step-state
// snapshots, report/metadata persistence, job-record updates — whose
// failure must never abort a pipeline run.
func bestEffort(logger *slog.Logger, op string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("best-effort operation failed", "op", op, "error", err)
	}
}
