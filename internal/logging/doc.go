// Package logging provides structured logging for the heist planner.
//
// It wraps log/slog and writes one JSON object per line, either to
// stderr or to heist.log inside a log directory. Child loggers carry
// persistent attributes for the planning iteration, the current target
// and the component that emitted the line:
//
//	logger, err := logging.NewLogger(".heist", logging.LevelInfo)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithIteration(runID).WithTarget("n00dles")
//	log.Info("hacks per batch", "hacks", 12)
//
// When a [RotationConfig] with a non-zero MaxSizeMB is passed to [New],
// the log file is rotated by size through a [RotatingWriter].
//
// All types are safe for concurrent use. Tests use [NopLogger].
package logging
