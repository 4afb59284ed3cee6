package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/noah-isme/campus-ops-api/pkg/jobs"
	"github.com/noah-isme/campus-ops-api/pkg/mailer"
)

const confirmationTemplate = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; border: 1px solid #e0e0e0; border-radius: 10px;">
  <div style="background-color: #4f46e5; padding: 20px; text-align: center; color: white;">
    <h1 style="margin: 0;">Booking Confirmed!</h1>
  </div>
  <div style="padding: 20px; background-color: #f9fafb;">
    <p>Hi <strong>{{.Name}}</strong>,</p>
    <p>Your ticket for <strong>{{.Title}}</strong> has been successfully booked.</p>
    <p><strong>Date:</strong> {{when .Date}}<br><strong>Venue:</strong> {{.Venue}}<br><strong>Price:</strong> {{price .Price}}</p>
    <div style="text-align: center; margin: 30px 0;">
      <p style="margin: 0; font-size: 12px; text-transform: uppercase;">Your Digital Pass Code</p>
      <h2 style="font-family: monospace; letter-spacing: 2px;">{{.PassCode}}</h2>
      <p style="font-size: 12px; color: #6b7280;">Show this code at the entry gate.</p>
    </div>
    <p style="font-size: 12px; color: #6b7280; text-align: center;">This is an automated message, please do not reply.</p>
  </div>
</div>`

var confirmationHTML = template.Must(template.New("confirmation").Funcs(template.FuncMap{
	"when":  func(t time.Time) string { return t.Format("Mon, 02 Jan 2006 15:04 MST") },
	"price": formatPrice,
}).Parse(confirmationTemplate))

func formatPrice(p float64) string {
	if p == 0 {
		return "Free"
	}
	return fmt.Sprintf("₹%.2f", p)
}

// ConfirmationMessage renders the pass email for a booking.
func ConfirmationMessage(c EventConfirmation, loc *time.Location) (mailer.Message, error) {
	if loc != nil {
		c.Date = c.Date.In(loc)
	}
	var buf bytes.Buffer
	if err := confirmationHTML.Execute(&buf, c); err != nil {
		return mailer.Message{}, fmt.Errorf("render confirmation email: %w", err)
	}
	text := fmt.Sprintf("Hi %s,\n\nYour ticket for %s is confirmed.\nDate: %s\nVenue: %s\nPass code: %s\n",
		c.Name, c.Title, c.Date.Format("Mon, 02 Jan 2006 15:04 MST"), c.Venue, c.PassCode)
	return mailer.Message{
		To:      c.To,
		Subject: "Ticket Confirmed: " + c.Title,
		HTML:    buf.String(),
		Text:    text,
	}, nil
}

// ConfirmationMailHandler returns the queue handler that delivers pass
// emails. Returned errors make the queue retry.
func ConfirmationMailHandler(sender mailer.Sender, loc *time.Location) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(EventConfirmation)
		if !ok {
			return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.Type)
		}
		msg, err := ConfirmationMessage(payload, loc)
		if err != nil {
			return err
		}
		return sender.Send(ctx, msg)
	}
}
