// Package alert notifies an operator when one of clipgraph's external
// provider dependencies (embedding or LLM) degrades, per the degradation
// policy of §4.3/§4.5/§4.8/§7: a provider outage never aborts ingestion or
// search, it only lowers the quality of what comes out, and an operator
// needs to know that is happening.
package alert

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/soundprediction/clipgraph/pkg/config"
)

// Alerter defines an interface for sending alerts
type Alerter interface {
	Alert(subject, message string) error
}

// EmbeddingDegraded formats the subject and message for the alert fired
// when the embedding circuit breaker trips open. Per §4.3's failure
// policy, every Embed call fails with ErrEmbeddingUnavailable while the
// breaker is open: newly ingested nodes and edges store a nil embedding,
// and search scoring for them falls back to exact string matching until
// the provider recovers.
func EmbeddingDegraded(component string, from, to fmt.Stringer) (subject, message string) {
	subject = fmt.Sprintf("URGENT: embedding circuit breaker tripped - %s", component)
	message = fmt.Sprintf(
		"embedding circuit breaker %q moved from %s to %s: new nodes and edges will store a nil embedding, and search scoring for them degrades to exact string matching until the provider recovers",
		component, from, to)
	return subject, message
}

// LLMDegraded formats the subject and message for the alert fired when the
// LLM circuit breaker trips open. Per §4.5/§4.8's failure policy,
// conversation summarization and attribute/relationship synthesis return
// empty results and leave the graph unchanged while the breaker is open.
func LLMDegraded(component string, from, to fmt.Stringer) (subject, message string) {
	subject = fmt.Sprintf("URGENT: LLM circuit breaker tripped - %s", component)
	message = fmt.Sprintf(
		"LLM circuit breaker %q moved from %s to %s: conversation summarization and high-level edge synthesis will return empty results and leave the graph unchanged until the provider recovers",
		component, from, to)
	return subject, message
}

// EmailAlerter implements Alerter using SMTP
type EmailAlerter struct {
	cfg config.AlertConfig
}

// NewEmailAlerter creates a new email alerter
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{
		cfg: cfg,
	}
}

// Alert sends an email with the given subject and message
func (a *EmailAlerter) Alert(subject, message string) error {
	if !a.cfg.Enabled {
		return nil
	}

	auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)

	to := a.cfg.To
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", strings.Join(to, ","), subject, message))

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)

	err := smtp.SendMail(addr, auth, a.cfg.From, to, msg)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	return nil
}

// NoOpAlerter is a dummy alerter for when alerting is disabled
type NoOpAlerter struct{}

func (n *NoOpAlerter) Alert(subject, message string) error {
	return nil
}
