package workers

import "propsync/models"

// LogFunc records a worker log line, usually into the sync_logs table.
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}
