package tasks

import (
	"context"
	"log/slog"
	"strings"

	"github.com/petrijr/taskgraph/pkg/api"
)

const defaultLogMessage = "log message task"

// LogMessageTask logs Message at Level (debug, info, warn or error;
// default info) and always succeeds.
type LogMessageTask struct {
	api.NoAbort
	logger *slog.Logger
}

func (t *LogMessageTask) Execute(params api.Params) api.TaskStatus {
	msg, ok := params.String("Message")
	if !ok || msg == "" {
		msg = defaultLogMessage
	}
	level := slog.LevelInfo
	if s, ok := params.String("Level"); ok {
		level = parseLevel(s)
	}

	logger := t.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), level, msg)
	return api.StatusSuccess
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
