package room

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmuslimabdulj/goat-rooms/internal/domain"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
)

var tracer = otel.Tracer("github.com/mmuslimabdulj/goat-rooms/internal/usecase/room")

func startSpan(ctx context.Context, name, roomID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{attribute.String("room.id", roomID)}, attrs...)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// classify maps store failures onto the domain error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.CodeOf(err); ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case errors.Is(err, store.ErrConflict):
		return domain.Wrap(domain.CodeConflictExhausted, op, err)
	case errors.Is(err, store.ErrInvalidPath):
		return domain.Wrap(domain.CodeInvalidInput, op, err)
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, store.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return domain.Wrap(domain.CodeConnection, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
