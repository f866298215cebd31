// Package logging wraps zap for the ringsim server, its workers and ringctl.
//
// Logger embeds *zap.Logger, so call sites log with zap fields directly.
// Production mode writes JSON, development mode a colored console format with
// stack traces; both write to stdout unless Config.OutputPaths says otherwise.
//
// FromSettings builds the process logger from LOG_LEVEL and LOG_DEV and falls
// back to the mode's default level when the level does not parse. Named derives
// a component logger ("simulation", "http", "ws"). NewNop discards everything
// and is what tests use.
//
// Example Usage:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	engineLog := logger.Named("simulation")
//	engineLog.Info("Simulation started", zap.String("session", id))
package logging
