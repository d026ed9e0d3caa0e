package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Notifier emails finished reports and reduces the outcome to a boolean.
type Notifier struct {
	sender Sender
}

// New returns a Notifier that delivers through sender.
func New(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Send delivers the report and reports whether it succeeded. Failures are
// logged with a hint and never returned.
func (n *Notifier) Send(ctx context.Context, req Request) bool {
	log := zerolog.Ctx(ctx)
	err := n.sender.Deliver(ctx, req)
	if err == nil {
		log.Info().Str("from", MaskAddress(req.Sender)).Int("recipients", len(req.Recipients)).Str("attachment", req.DocumentPath).Msg("report emailed")
		return true
	}

	var (
		sender     *InvalidSenderError
		recipient  *InvalidRecipientError
		attachment *AttachmentNotFoundError
		delivery   *DeliveryError
	)
	switch {
	case errors.As(err, &sender):
		log.Error().Str("address", sender.Address).Msg("invalid sender address; email not sent")
	case errors.As(err, &recipient):
		log.Error().Str("address", recipient.Address).Msg("invalid recipient address; email not sent")
	case errors.As(err, &attachment):
		log.Error().Str("path", attachment.Path).Msg("report file missing; email not sent")
	case errors.As(err, &delivery):
		log.Error().Err(delivery.Err).Str("stage", delivery.Stage).Str("host", delivery.Host).Msg("email delivery failed")
		for _, h := range Hints(delivery) {
			log.Warn().Msg(h)
		}
	default:
		log.Error().Err(err).Msg("email delivery failed")
	}
	return false
}

// Hints returns troubleshooting suggestions for a delivery failure.
func Hints(err *DeliveryError) []string {
	switch err.Stage {
	case "auth":
		return []string{
			"check the sender address and password",
			"accounts with two-factor authentication need an app password instead of the login password",
		}
	case "connect", "starttls":
		return []string{
			"check the SMTP host and port and that outbound connections are allowed",
		}
	default:
		return []string{
			"check the sender address and password",
			"check that every recipient address is accepted by the server",
		}
	}
}
