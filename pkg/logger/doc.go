// Package logger builds configured slog.Logger instances for the SDK.
//
// The factory wires a JSON or text handler, static attributes, and
// context extractors behind a single constructor, so every component logs
// through the same pipeline:
//
//	log := logger.New(
//		logger.WithLevelTag(cfg.LogLevel),
//		logger.WithFormat(logger.FormatText),
//		logger.WithAttr(logger.Component("teneo")),
//	)
//
// Context extractors inject request-scoped values at log time:
//
//	log := logger.New(
//		logger.WithContextValue("request_id", requestIDKey),
//	)
//
// The attr helpers (Component, Event, MessageID, Room, ...) keep
// attribute keys consistent across packages.
package logger
