package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// NotificationID records the notification identifier under the key "notification_id".
func NotificationID(id string) slog.Attr {
	return slog.String("notification_id", id)
}

// PromotionID records the promotion identifier under the key "promotion_id".
func PromotionID(id string) slog.Attr {
	return slog.String("promotion_id", id)
}

// Recipient records the delivery recipient under the key "recipient".
func Recipient(addr string) slog.Attr {
	return slog.String("recipient", addr)
}

// Channel records a broadcast channel name under the key "channel".
func Channel(name string) slog.Attr {
	return slog.String("channel", name)
}

// Audience records the target audience under the key "audience".
func Audience(a any) slog.Attr {
	return slog.Any("audience", a)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
