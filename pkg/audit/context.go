package audit

import "context"

type requestKey struct{}

// RequestInfo carries the request attributes an audit entry is stamped with.
type RequestInfo struct {
	RequestID string
	Route     string
	ClientIP  string
	UserAgent string
	UserID    string
	Username  string
}

// WithRequest stores request attributes in ctx.
func WithRequest(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, info)
}

// RequestFrom returns the request attributes stored in ctx, if any.
func RequestFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestKey{}).(RequestInfo)
	return info, ok
}

// FromContext copies request attributes from ctx into the entry.
// Fields already set on the builder are kept.
func (b *Builder) FromContext(ctx context.Context) *Builder {
	info, ok := RequestFrom(ctx)
	if !ok {
		return b
	}
	e := b.entry
	if e.RequestID == "" {
		e.RequestID = info.RequestID
	}
	if e.Route == "" {
		e.Route = info.Route
	}
	if e.ClientIP == "" {
		e.ClientIP = info.ClientIP
		e.UserAgent = info.UserAgent
	}
	if e.UserID == "" {
		e.UserID = info.UserID
		e.Username = info.Username
	}
	return b
}
