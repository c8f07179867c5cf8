package common

// EmailSender delivers notification mail, such as group formation
// notices to operations staff.
type EmailSender interface {
	Send(to, subject, html string) error
}

// InMemoryEmail collects sent mail for assertions in tests.
type InMemoryEmail struct {
	Outbox []Email
}

// Email is one captured message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Send appends the message to the outbox.
func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender discards everything. Used when email is disabled.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }
