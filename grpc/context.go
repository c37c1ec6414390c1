package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// MetadataKeyUserID is the gRPC metadata key host apps use to forward the
// authenticated user's id to backing services.
const MetadataKeyUserID = "x-user-id"

// WithUserID returns an outgoing context carrying the user id as metadata.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, MetadataKeyUserID, userID)
}

// UserIDFromIncoming extracts the forwarded user id on the server side, or
// "" when absent.
func UserIDFromIncoming(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(MetadataKeyUserID); len(values) > 0 {
		return values[0]
	}
	return ""
}
