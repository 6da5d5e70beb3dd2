package auth

import (
	"context"
)

type contextKey string

const providerKey contextKey = "identityProvider"

// ContextWithProvider returns a new context that carries the request's identity provider.
func ContextWithProvider(ctx context.Context, provider Provider) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, providerKey, provider)
}

// ProviderFromContext retrieves the identity provider from the context, if any.
func ProviderFromContext(ctx context.Context) (Provider, bool) {
	if ctx == nil {
		return nil, false
	}
	provider, ok := ctx.Value(providerKey).(Provider)
	if !ok || provider == nil {
		return nil, false
	}
	return provider, true
}
