package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/echannel-booking/internal/events"
)

// formatRupees renders cents as "Rs. 2,500.00".
func formatRupees(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sRs. %s.%02d", sign, b.String(), cents%100)
}

// displayTime turns "14:30:00" into "14:30".
func displayTime(t string) string {
	if len(t) == len("15:04:05") {
		return t[:5]
	}
	return t
}

func paymentLine(method, status string) string {
	switch {
	case method == "card" && status == "pending":
		return "Card payment pending confirmation"
	case method == "cash":
		return "Pay at the hospital counter"
	default:
		return "Added to your bill"
	}
}

func row(label, value string) string {
	return fmt.Sprintf(`<tr><td style="padding: 6px 12px;"><strong>%s</strong></td><td style="padding: 6px 12px;">%s</td></tr>`,
		html.EscapeString(label), html.EscapeString(value))
}

// BookingConfirmation renders the email sent after a booking commits.
func BookingConfirmation(evt events.AppointmentBookedV1) EmailMessage {
	when := fmt.Sprintf("%s at %s", evt.AppointmentDate, displayTime(evt.AppointmentTime))
	amount := formatRupees(evt.AmountCents)
	payment := paymentLine(evt.PaymentMethod, evt.PaymentStatus)

	body := fmt.Sprintf(`Dear %s,

Your appointment is confirmed.

Reference: %s
Doctor: %s (%s)
Hospital: %s
Date and time: %s
Amount: %s
Payment: %s

Please quote your reference at the hospital reception.

- eChannelling`, evt.PatientName, evt.FormattedID, evt.DoctorName, evt.Specialty, evt.Hospital, when, amount, payment)

	htmlBody := `<div style="font-family: sans-serif; max-width: 600px;">` +
		`<h2>Appointment confirmed</h2>` +
		`<p>Dear ` + html.EscapeString(evt.PatientName) + `, your appointment is confirmed.</p>` +
		`<table style="border-collapse: collapse;">` +
		row("Reference", evt.FormattedID) +
		row("Doctor", evt.DoctorName+" ("+evt.Specialty+")") +
		row("Hospital", evt.Hospital) +
		row("Date and time", when) +
		row("Amount", amount) +
		row("Payment", payment) +
		`</table><p style="color: #6b7280; font-size: 12px;">Please quote your reference at the hospital reception.</p></div>`

	return EmailMessage{
		To:      evt.PatientEmail,
		ToName:  evt.PatientName,
		Subject: fmt.Sprintf("Appointment %s confirmed with %s", evt.FormattedID, evt.DoctorName),
		Body:    body,
		HTML:    htmlBody,
	}
}

// CancellationNotice renders the email sent after a cancellation commits.
func CancellationNotice(evt events.AppointmentCancelledV1) EmailMessage {
	when := fmt.Sprintf("%s at %s", evt.AppointmentDate, displayTime(evt.AppointmentTime))
	refund := "No refund applies to this appointment."
	if evt.Refunded {
		refund = fmt.Sprintf("A refund of %s has been issued.", formatRupees(evt.RefundedCents))
	}

	body := fmt.Sprintf(`Dear %s,

Your appointment %s with %s at %s on %s has been cancelled.

%s

- eChannelling`, evt.PatientName, evt.FormattedID, evt.DoctorName, evt.Hospital, when, refund)

	htmlBody := `<div style="font-family: sans-serif; max-width: 600px;">` +
		`<h2>Appointment cancelled</h2>` +
		`<table style="border-collapse: collapse;">` +
		row("Reference", evt.FormattedID) +
		row("Doctor", evt.DoctorName) +
		row("Hospital", evt.Hospital) +
		row("Date and time", when) +
		`</table><p>` + html.EscapeString(refund) + `</p></div>`

	return EmailMessage{
		To:      evt.PatientEmail,
		ToName:  evt.PatientName,
		Subject: fmt.Sprintf("Appointment %s cancelled", evt.FormattedID),
		Body:    body,
		HTML:    htmlBody,
	}
}
