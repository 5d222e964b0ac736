package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type CtxKey string

const (
	ctxUserIDKey CtxKey = "analytics_user_id"
)

// Envelope is what we store with every event.
type Envelope struct {
	UserID       string
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// Event is one envelope plus its sanitized properties.
type Event struct {
	Name           string
	Time           time.Time
	Envelope       Envelope
	Properties     json.RawMessage
	SourceEventKey string
}

// Sink persists events. Implementations must not block the request for long;
// failures are swallowed by Log.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	platform := strings.TrimSpace(r.Header.Get("X-Platform"))
	if platform == "" {
		platform = "unknown"
	} else {
		platform = strings.ToLower(platform)
		if platform != "ios" && platform != "android" && platform != "web" {
			platform = "unknown"
		}
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(ctxUserIDKey).(string)
	return uid, ok && uid != ""
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// Duplicate keys are ignored by sinks that support it.
func SourceEventKeyFromRequest(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Log records one event. It never fails the caller's flow: events without a
// user, unmarshalable props and sink errors are dropped.
// Never logs raw task text; callers pass sanitized props.
func Log(ctx context.Context, sink Sink, env Envelope, eventName string, props any, sourceEventKey string) error {
	if sink == nil || eventName == "" {
		return nil
	}

	if env.UserID == "" {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return nil
		}
		env.UserID = uid
	}

	b, err := json.Marshal(props)
	if err != nil {
		return nil
	}

	_ = sink.Write(ctx, Event{
		Name:           eventName,
		Time:           time.Now().UTC(),
		Envelope:       env,
		Properties:     b,
		SourceEventKey: sourceEventKey,
	})
	return nil
}
