package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/oshokin/smart-cane/internal/domain/guidance"
)

// Subject is the subject line of every alert email.
const Subject = "Emergency Alert: Person Needs Help"

// ErrNoRecipients is returned when an alert has nobody to notify.
var ErrNoRecipients = errors.New("alert has no recipients")

// Options configures the SMTP relay.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends alerts through an SMTP relay.
type Mailer struct {
	options Options
	// send is replaced in tests.
	send func(ctx context.Context, message *mail.Msg) error
}

// NewMailer creates a mailer.
func NewMailer(options Options) *Mailer {
	m := &Mailer{options: options}
	m.send = m.dialAndSend

	return m
}

// Dispatch composes and sends the alert.
func (m *Mailer) Dispatch(ctx context.Context, alert guidance.Alert) error {
	message, err := m.message(alert)
	if err != nil {
		return err
	}

	if err = m.send(ctx, message); err != nil {
		return fmt.Errorf("failed to send alert %s: %w", alert.ID, err)
	}

	return nil
}

func (m *Mailer) message(alert guidance.Alert) (*mail.Msg, error) {
	if len(alert.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	message := mail.NewMsg()

	if err := message.From(m.options.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.options.From, err)
	}

	if err := message.To(alert.Recipients...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}

	message.Subject(Subject)
	message.SetDate()
	message.SetBodyString(mail.TypeTextPlain, Compose(alert))

	return message, nil
}

func (m *Mailer) dialAndSend(ctx context.Context, message *mail.Msg) error {
	client, err := mail.NewClient(m.options.Host,
		mail.WithPort(m.options.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.options.Username),
		mail.WithPassword(m.options.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, message)
}

// Compose renders the plain text body of an alert.
func Compose(alert guidance.Alert) string {
	var b strings.Builder

	b.WriteString("EMERGENCY ALERT: The person using the smart cane needs immediate assistance.\n\n")
	fmt.Fprintf(&b, "Time: %s\n", alert.TriggeredAt.Format(time.RFC1123))
	fmt.Fprintf(&b, "Latitude: %s\n", alert.Coordinate.LatitudeText())
	fmt.Fprintf(&b, "Longitude: %s\n", alert.Coordinate.LongitudeText())
	fmt.Fprintf(&b, "Google Maps: %s\n", alert.Coordinate.MapsURL())

	if !alert.Coordinate.Known {
		b.WriteString("\nThe location could not be determined. Please call the person right away.\n")
	}

	fmt.Fprintf(&b, "\nAlert ID: %s\n", alert.ID)

	return b.String()
}
