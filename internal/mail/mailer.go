// internal/mail/mailer.go
package mail

import (
	"context"
	"fmt"

	"commande-track-api-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Dispatcher sends a status-change email to an order's client contact. Sending
// is best effort: callers record the outcome but never fail a transition on a
// mail error. The returned preview reference is only meaningful in preview
// mode, where no real mail leaves the process.
type Dispatcher interface {
	SendStatusChange(ctx context.Context, to, clientName, orderRef string, status models.OrderStatus) (preview string, err error)
}

// Config for the dispatcher. Mode "preview" logs instead of sending.
type Config struct {
	Mode     string
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// New picks the dispatcher for the configured mode.
func New(cfg Config, logger *zap.Logger) Dispatcher {
	if cfg.Mode == "smtp" {
		return &smtpDispatcher{
			dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
			from:   cfg.From,
			logger: logger,
		}
	}
	return &previewDispatcher{logger: logger}
}

type smtpDispatcher struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

func (d *smtpDispatcher) SendStatusChange(_ context.Context, to, clientName, orderRef string, status models.OrderStatus) (string, error) {
	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Commande %s : %s", orderRef, status))
	m.SetBody("text/html", statusChangeBody(clientName, orderRef, status))
	if err := d.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("send status-change mail: %w", err)
	}
	return "", nil
}

// previewDispatcher stands in for SMTP outside production. It logs the mail
// and mints a preview reference the API echoes back, so the frontend can link
// to the rendered message during manual testing.
type previewDispatcher struct {
	logger *zap.Logger
}

func (d *previewDispatcher) SendStatusChange(_ context.Context, to, clientName, orderRef string, status models.OrderStatus) (string, error) {
	preview := "preview-" + uuid.New().String()[:8]
	d.logger.Info("mail preview",
		zap.String("to", to),
		zap.String("order", orderRef),
		zap.String("status", string(status)),
		zap.String("preview", preview))
	return preview, nil
}

func statusChangeBody(clientName, orderRef string, status models.OrderStatus) string {
	return fmt.Sprintf(
		"<p>Bonjour %s,</p><p>Votre commande <b>%s</b> est passée au statut <b>%s</b>.</p>",
		clientName, orderRef, status)
}
