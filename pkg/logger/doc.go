// Package logger provides the structured logging interface used across friendgeo.
//
// It wraps zerolog. Console output goes to stderr so that commands which print
// tables or JSON on stdout stay pipeable; an optional file sink receives the same
// events as JSON.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithFields(map[string]interface{}{
//	    "city":      "portland",
//	    "user_type": "remaining",
//	})
//	log.InfoWithFields("Stage finished", map[string]interface{}{"succeeded": 42})
//
// Components accept a Logger in their constructors; tests pass NewTestLogger or
// NewNopLogger.
package logger
