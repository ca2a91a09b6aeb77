package goVault

import "context"

type deviceInfoContextKey struct{}

// WithDeviceInfo attaches an opaque device label to ctx. Login stores it on
// the session it creates so ListSessions can show where each one came from.
func WithDeviceInfo(ctx context.Context, deviceInfo string) context.Context {
	return context.WithValue(ctx, deviceInfoContextKey{}, deviceInfo)
}

func deviceInfoFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	info, _ := ctx.Value(deviceInfoContextKey{}).(string)
	return info
}
