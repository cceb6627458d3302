package selfprof

import "context"

// ctxKey is the key type for storing a Ref in context.
type ctxKey struct{}

// FromContext extracts the Ref from context.
// If not found, returns a disabled Ref.
func FromContext(ctx context.Context) Ref {
	if ctx == nil {
		return Ref{}
	}
	if r, ok := ctx.Value(ctxKey{}).(Ref); ok {
		return r
	}
	return Ref{}
}

// WithRef attaches a Ref to context.
func WithRef(ctx context.Context, r Ref) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}
