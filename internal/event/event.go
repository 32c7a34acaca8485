package event

import (
	"context"
	"time"
)

type Type string

const (
	TypeLoginSucceeded Type = "auth.login_succeeded"
	TypeLoginFailed    Type = "auth.login_failed"
	TypeUserCreated    Type = "user.created"
	TypeUserUpdated    Type = "user.updated"
	TypeUserDeleted    Type = "user.deleted"
)

// Event describes one auth or user-management action. ActorID is zero when
// the actor is unknown, e.g. a login attempt for a missing username.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	ActorID       int64     `json:"actor_id,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Resource      string    `json:"resource,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ClientIP      string    `json:"client_ip,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

type clientIPKey struct{}

// WithClientIP records the caller's address so published events can carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
