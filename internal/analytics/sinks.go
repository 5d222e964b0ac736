package analytics

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"
)

// PostgresSink appends events to analytics_events.
type PostgresSink struct {
	DB *sql.DB
}

func (s PostgresSink) Write(ctx context.Context, ev Event) error {
	if ev.SourceEventKey != "" {
		_, err := s.DB.ExecContext(ctx, `
			INSERT INTO analytics_events (
				event_name, event_time,
				user_id, session_id,
				platform, app_version, device_locale,
				source_event_key,
				properties
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
			ON CONFLICT (source_event_key) DO NOTHING
		`, ev.Name, ev.Time,
			ev.Envelope.UserID, nullIfEmpty(ev.Envelope.SessionID),
			ev.Envelope.Platform, ev.Envelope.AppVersion, nullIfEmpty(ev.Envelope.DeviceLocale),
			ev.SourceEventKey,
			string(ev.Properties),
		)
		return err
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO analytics_events (
			event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale,
			properties
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	`, ev.Name, ev.Time,
		ev.Envelope.UserID, nullIfEmpty(ev.Envelope.SessionID),
		ev.Envelope.Platform, ev.Envelope.AppVersion, nullIfEmpty(ev.Envelope.DeviceLocale),
		string(ev.Properties),
	)
	return err
}

// LogSink writes events as structured log lines when no database is around.
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Write(_ context.Context, ev Event) error {
	s.Log.Info("analytics event",
		zap.String("event", ev.Name),
		zap.String("user_id", ev.Envelope.UserID),
		zap.String("platform", ev.Envelope.Platform),
		zap.ByteString("properties", ev.Properties),
	)
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
