package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/StevenVC-P/autographreader/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailNotifier sends run summaries over SMTP. With incomplete email config
// it silently does nothing, so the pipeline can always call it.
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, logger: logger}
}

// Send delivers the summary email.
func (n *EmailNotifier) Send(ctx context.Context, summary RunSummary) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Debug("email config missing, skip run summary")
		return nil
	}
	if strings.TrimSpace(n.cfg.ToEmail) == "" {
		n.logger.Warn("email recipient empty, skip run summary")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", n.cfg.ToEmail)
	m.SetHeader("Subject", fmt.Sprintf("[autographreader] scrape run #%d finished", summary.RunID))
	m.SetBody("text/html", buildHTMLBody(summary))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send run summary: %w", err)
	}

	n.logger.Info("run summary email sent",
		slog.String("to", n.cfg.ToEmail),
		slog.Uint64("run_id", uint64(summary.RunID)))
	return nil
}

func buildHTMLBody(s RunSummary) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Scrape run #%d</h2>
    <p>Query: <b>%s</b> &middot; duration %s</p>
    <table cellpadding="4">
      <tr><td>Pages fetched</td><td><b>%d</b></td></tr>
      <tr><td>Pages skipped (fully known)</td><td><b>%d</b></td></tr>
      <tr><td>New listings</td><td><b>%d</b></td></tr>
      <tr><td>Listings re-seen</td><td><b>%d</b></td></tr>
      <tr><td>Discarded (unattributed)</td><td><b>%d</b></td></tr>
    </table>
  </div>
</body>
</html>`, s.RunID, s.Query, s.Duration.Round(time.Second), s.PagesFetched, s.PagesSkipped,
		s.NewListings, s.UpdatedListings, s.Discarded)
}
