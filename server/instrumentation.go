package server

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/Priya-Diwakar/nova-voice-assistant/server"

var logger = otelslog.NewLogger(scopeName)
