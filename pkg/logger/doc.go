// Package logger builds *slog.Logger values with functional options and
// injects request-scoped attributes pulled from context.Context.
//
// New picks a text or JSON handler and wraps it in LogHandlerDecorator, which
// runs every registered ContextExtractor on each record. Packages that keep
// state in the context (session, tenant, requestid, environment) export an
// extractor so log lines carry the session ID, company ID and request ID
// without passing them around.
//
//	log := logger.New(
//		logger.WithDevelopment("sessiond"),
//		logger.WithContextExtractors(
//			requestid.LoggerExtractor(),
//			tenant.LoggerExtractor(),
//			session.LoggerExtractor(),
//		),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "session restarted",
//		logger.CompanyID(companyID),
//		logger.SessionID(sessionID),
//	)
//
// WithDevelopment, WithStaging and WithProduction set level, format and the
// service/env attributes in one go. Config carries the same choices as
// environment variables (APP_ENV, LOG_LEVEL, LOG_FORMAT, LOG_SERVICE).
//
// The attribute helpers in attr.go keep key names consistent. Error and
// Errors return an empty attribute for nil errors, so
//
//	log.Info("saved", logger.Error(err))
//
// needs no nil check.
package logger
