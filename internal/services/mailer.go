package services

import (
	"context"

	"carelink/pkg/logger"
)

// LogMailer stands in for the external email collaborator: it records the
// send in the log and reports success. Deployments wire a real Mailer here.
type LogMailer struct {
	log *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendEmail(_ context.Context, to, subject, _, _ string) error {
	m.log.Infof("email side-channel: to=%s subject=%q", to, subject)
	return nil
}
