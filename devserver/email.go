package devserver

import "log/slog"

// EmailSender delivers the mails the dev server would otherwise send for
// real: password recovery and magic links.
type EmailSender interface {
	SendPasswordRecovery(to, link string) error
	SendMagicLink(to, link string) error
}

// ConsoleEmailSender logs emails instead of sending them.
type ConsoleEmailSender struct {
	Logger *slog.Logger
}

func (c *ConsoleEmailSender) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *ConsoleEmailSender) SendPasswordRecovery(to, link string) error {
	c.logger().Info("EMAIL: password recovery", "to", to, "link", link)
	return nil
}

func (c *ConsoleEmailSender) SendMagicLink(to, link string) error {
	c.logger().Info("EMAIL: magic link", "to", to, "link", link)
	return nil
}
