// Package channel resolves live outbound messaging sessions. The actual
// transport lives behind an HTTP gateway; this package only knows how to pick
// a session and push text or media through it.
package channel

import "context"

// Session is a live handle on one connected messaging account.
type Session interface {
	SendText(ctx context.Context, number, body string) error
	SendMedia(ctx context.Context, number, path, caption string) error
}

// Resolver maps business references to live sessions.
type Resolver interface {
	// DefaultSession returns the company's default outbound channel.
	DefaultSession(ctx context.Context, companyID int) (Session, error)
	// SessionFor returns the session behind a specific channel account.
	SessionFor(ctx context.Context, whatsappID int) (Session, error)
}
