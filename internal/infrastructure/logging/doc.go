// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON for machine parsing; development mode writes
// colored console output. Components receive named child loggers:
//
//	logger := logging.NewDefault()
//	engineLog := logger.Component("prefetch")
//	engineLog.Info("Document ready", zap.String("doc_id", id))
package logging
