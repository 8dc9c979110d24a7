package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/safeedu/go-auth"
)

const (
	// MetadataKeyAccountKind stores the store that owns the account.
	MetadataKeyAccountKind = "account_kind"
	// MetadataKeyRole stores the role minted for the account.
	MetadataKeyRole = "role"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "account"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(auth.ActivityEvent) string
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
// Accounts act on themselves, so actor and object share the account id.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		accountID(event),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(auth.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used for events without an account,
// failed sign-ins for example.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// Sink forwards normalized events to fn. It satisfies auth.ActivitySink.
type Sink struct {
	fn   func(ctx context.Context, record Normalized) error
	opts []Option
}

func NewSink(fn func(ctx context.Context, record Normalized) error, opts ...Option) *Sink {
	return &Sink{fn: fn, opts: opts}
}

func (s *Sink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if s == nil || s.fn == nil {
		return nil
	}
	return s.fn(ctx, Normalize(event, s.opts...))
}

// NewLogSink writes every normalized event to logger at info level
func NewLogSink(logger auth.Logger, opts ...Option) *Sink {
	return NewSink(func(_ context.Context, record Normalized) error {
		logger.Info("activity",
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object_type", record.ObjectType,
			"channel", record.Channel,
			"metadata", record.Metadata,
			"occurred_at", record.OccurredAt.Format(time.RFC3339),
		)
		return nil
	}, opts...)
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func accountID(event auth.ActivityEvent) string {
	if event.Account.IsZero() {
		return ""
	}
	return event.Account.ID.String()
}

func resolveObjectID(event auth.ActivityEvent, resolver func(auth.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return accountID(event)
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if kind := strings.TrimSpace(string(event.Account.Kind)); kind != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyAccountKind]; !exists {
			metadata[MetadataKeyAccountKind] = kind
		}
	}

	if event.Role != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[MetadataKeyRole] = string(event.Role)
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
