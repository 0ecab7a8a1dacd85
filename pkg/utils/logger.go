package utils

import (
	"fmt"
	"log"
	"os"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Sink получает сообщения уровня WARN и выше для персистентного хранения
type Sink func(level, message string)

type Logger struct {
	level  LogLevel
	logger *log.Logger
	sink   Sink
}

var defaultLogger *Logger

func init() {
	defaultLogger = NewLogger("info")
}

func NewLogger(levelStr string) *Logger {
	var level LogLevel
	switch levelStr {
	case "debug":
		level = DEBUG
	case "info":
		level = INFO
	case "warn":
		level = WARN
	case "error":
		level = ERROR
	default:
		level = INFO
	}

	return &Logger{
		level:  level,
		logger: log.New(os.Stdout, "", log.LstdFlags),
	}
}

// SetSink подключает персистентный sink (например, таблицу logs в БД)
func (l *Logger) SetSink(sink Sink) {
	l.sink = sink
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level <= DEBUG {
		l.logger.Printf("[DEBUG] "+format, v...)
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l.level <= INFO {
		l.logger.Printf("[INFO] "+format, v...)
	}
}

func (l *Logger) Warn(format string, v ...interface{}) {
	if l.level <= WARN {
		l.logger.Printf("[WARN] "+format, v...)
		if l.sink != nil {
			l.sink("WARN", fmt.Sprintf(format, v...))
		}
	}
}

func (l *Logger) Error(format string, v ...interface{}) {
	if l.level <= ERROR {
		l.logger.Printf("[ERROR] "+format, v...)
		if l.sink != nil {
			l.sink("ERROR", fmt.Sprintf(format, v...))
		}
	}
}

// Global logging functions
func LogDebug(msg string) {
	defaultLogger.Debug(msg)
}

func LogInfo(msg string) {
	defaultLogger.Info(msg)
}

func LogWarn(msg string) {
	defaultLogger.Warn(msg)
}

func LogError(msg string) {
	defaultLogger.Error(msg)
}
