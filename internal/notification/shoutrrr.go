// Package notification delivers rule notifications through shoutrrr
// service URLs (smtp, slack, ntfy, and the rest).
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"
)

// Sender fans one message out to every configured service URL.
type Sender struct {
	router *router.ServiceRouter
	log    zerolog.Logger
}

// NewSender builds a Sender from shoutrrr service URLs. An empty URL list is
// an error; callers that want notifications off use NewNoop.
func NewSender(urls []string, log zerolog.Logger) (*Sender, error) {
	if len(urls) == 0 {
		return nil, errors.New("no notification URLs configured")
	}
	r, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification sender: %w", err)
	}
	return &Sender{router: r, log: log}, nil
}

// Send delivers the message to all services. Email-style recipients are
// passed through as the "to" parameter; services that don't take one ignore
// it. Partial delivery failures are joined into one error.
func (s *Sender) Send(ctx context.Context, subject, body string, recipients []string) error {
	params := types.Params{"title": subject}
	if len(recipients) > 0 {
		params["to"] = strings.Join(recipients, ",")
	}
	var errs []error
	for _, err := range s.router.Send(body, &params) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification delivery failed: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateURL checks a shoutrrr service URL without sending anything.
func ValidateURL(raw string) error {
	if _, err := url.Parse(raw); err != nil {
		return fmt.Errorf("invalid notification URL: %w", err)
	}
	r := router.ServiceRouter{}
	if _, _, err := r.ExtractServiceName(raw); err != nil {
		return fmt.Errorf("unknown notification service: %w", err)
	}
	return nil
}

// Noop discards all notifications. Used when no URLs are configured.
type Noop struct{}

// NewNoop returns a sender that drops everything.
func NewNoop() Noop { return Noop{} }

// Send implements the notifier contract with a no-op.
func (Noop) Send(context.Context, string, string, []string) error { return nil }
