package log

import "go.uber.org/zap"

var logger *zap.Logger

func Init(prod bool) error {
	if logger != nil {
		return nil
	}
	var err error
	if prod {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	return err
}

// Replace swaps the process logger, returning a func that restores the previous one.
func Replace(next *zap.Logger) func() {
	previous := logger
	logger = next
	return func() { logger = previous }
}

func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func L() *zap.Logger {
	if logger == nil {
		panic("logger not initialized")
	}
	return logger
}
