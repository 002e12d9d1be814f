package logger

import (
	"log"
	"os"

	"go.uber.org/zap"
)

// EXPENSE_LOG_ENV selects the zap preset: "prod" for JSON production
// output, anything else for the development console encoder.
const logEnvKey = "EXPENSE_LOG_ENV"

var logger *zap.Logger

func init() {
	var err error
	switch os.Getenv(logEnvKey) {
	case "prod":
		logger, err = zap.NewProduction()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("logger init", err)
	}
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	logger.Fatal(msg, fields...)
}
