package instrument

import "context"

type correlationKey struct{}

const invalidCorrelationID = "[invalid_chain_id]"

// HeaderCorrelationID is the HTTP and message header carrying the correlation id.
const HeaderCorrelationID = "X-Correlation-ID"

// SetCorrelationID stores id on ctx so logs and outgoing messages carry it.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GetCorrelationID returns the id stored by SetCorrelationID, or a marker
// value when the context has none.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return id
	}
	return invalidCorrelationID
}
