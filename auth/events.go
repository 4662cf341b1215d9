package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-authserver-security/oauth2"
)

type EventType string

const (
	EventTokenIssued  EventType = "token_issued"
	EventTokenRevoked EventType = "token_revoked"
	EventCodeReplayed EventType = "authorization_code_replayed"
)

// Event describes a change to an issued grant. Token values are never included.
type Event struct {
	Type      EventType        `json:"type"`
	ClientID  string           `json:"client_id"`
	Subject   string           `json:"sub,omitempty"`
	GrantType oauth2.GrantType `json:"grant_type,omitempty"`
	Scopes    []string         `json:"scopes,omitempty"`
	At        time.Time        `json:"at"`
}

// EventSink receives grant events. Publish must not block the token endpoint.
type EventSink interface {
	Publish(ctx context.Context, e Event)
}

type EventSinkFunc func(ctx context.Context, e Event)

func (f EventSinkFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// EventSinks fans an event out to every sink in order.
type EventSinks []EventSink

func (s EventSinks) Publish(ctx context.Context, e Event) {
	for _, sink := range s {
		sink.Publish(ctx, e)
	}
}

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) {}
