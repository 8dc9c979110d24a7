package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignInSuccess    ActivityEventType = "auth.sign_in.success"
	ActivityEventSignInFailure    ActivityEventType = "auth.sign_in.failure"
	ActivityEventSignUpSuccess    ActivityEventType = "auth.sign_up.success"
	ActivityEventSignUpFailure    ActivityEventType = "auth.sign_up.failure"
	ActivityEventFederatedSignIn  ActivityEventType = "auth.federated.sign_in"
	ActivityEventFederatedFailure ActivityEventType = "auth.federated.failure"
	ActivityEventTokenRefreshed   ActivityEventType = "auth.token.refreshed"
	ActivityEventRefreshFailure   ActivityEventType = "auth.token.refresh_failure"
	ActivityEventSignOut          ActivityEventType = "auth.sign_out"
	ActivityEventOTPFailure       ActivityEventType = "auth.otp.failure"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Account    AccountRef
	Role       Role
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// ActivitySinks fans an event out to every sink, the first error is returned
type ActivitySinks []ActivitySink

func (s ActivitySinks) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
