// Package queue carries out-of-band mail dispatch over RabbitMQ: a publisher
// used by the account flows and a background consumer that delivers (here:
// appends to a mail log) whatever reaches the queue.
package queue

import "time"

// Mail kinds.
const (
	MailVerification  = "verification"
	MailPasswordReset = "password_reset"
	MailInvitation    = "invitation"
)

// MailEvent asks the mailer to send a one-time code to To.
type MailEvent struct {
	Kind      string    `json:"kind"`
	To        string    `json:"to"`
	UserID    uint64    `json:"user_id"`
	Code      string    `json:"code"`
	InvitedBy string    `json:"invited_by,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
