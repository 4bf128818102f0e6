package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func onlySpan(t *testing.T, recorder *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	return spans[0]
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	attrs := make(map[attribute.Key]string)
	for _, attr := range span.Attributes() {
		attrs[attr.Key] = attr.Value.AsString()
	}
	return attrs
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"order lookup", "orders", DBOperationQuery, "query orders"},
		{"order insert", "orders", DBOperationInsert, "insert orders"},
		{"order update", "orders", DBOperationUpdate, "update orders"},
		{"key expiry", "idempotency_keys", DBOperationDelete, "delete idempotency_keys"},
		{"migration", "schema_migrations", DBOperationExec, "exec schema_migrations"},
		{"no table", "", DBOperationQuery, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := newSpanRecorder(t)

			_, endSpan := StartDBSpan(context.Background(), tt.table, tt.operation)
			endSpan(nil)

			span := onlySpan(t, recorder)
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}

			attrs := spanAttributes(span)
			if attrs["db.system"] != "postgresql" {
				t.Errorf("db.system = %q, want postgresql", attrs["db.system"])
			}
			if attrs["db.operation"] != string(tt.operation) {
				t.Errorf("db.operation = %q, want %q", attrs["db.operation"], tt.operation)
			}
			table, hasTable := attrs["db.sql.table"]
			if tt.table != "" && table != tt.table {
				t.Errorf("db.sql.table = %q, want %q", table, tt.table)
			}
			if tt.table == "" && hasTable {
				t.Errorf("db.sql.table = %q on a table-less span, want absent", table)
			}
		})
	}
}

func TestStartDBSpan_RecordsError(t *testing.T) {
	recorder := newSpanRecorder(t)
	queryErr := errors.New("pq: connection refused")

	_, endSpan := StartDBSpan(context.Background(), "orders", DBOperationQuery)
	endSpan(queryErr)

	span := onlySpan(t, recorder)
	if span.Status().Code != codes.Error {
		t.Errorf("status = %s, want Error", span.Status().Code)
	}
	if span.Status().Description != queryErr.Error() {
		t.Errorf("status description = %q, want %q", span.Status().Description, queryErr.Error())
	}
}

func TestStartSpan(t *testing.T) {
	recorder := newSpanRecorder(t)

	_, endSpan := StartSpan(context.Background(), "reconcile_order")
	endSpan(nil)

	span := onlySpan(t, recorder)
	if span.Name() != "reconcile_order" {
		t.Errorf("span name = %q, want reconcile_order", span.Name())
	}
	// A clean end leaves the status Unset.
	if code := span.Status().Code; code != codes.Unset && code != codes.Ok {
		t.Errorf("status = %s, want Unset or Ok", code)
	}
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := newSpanRecorder(t)

	_, endSpan := StartSpan(context.Background(), "create_payment_session")
	endSpan(errors.New("gateway unavailable"))

	if got := onlySpan(t, recorder).Status().Code; got != codes.Error {
		t.Errorf("status = %s, want Error", got)
	}
}

func TestAddEvent(t *testing.T) {
	recorder := newSpanRecorder(t)

	ctx, span := otel.Tracer("checkout").Start(context.Background(), "submit_checkout")
	AddEvent(ctx, "payment_session_created",
		attribute.String("session.id", "sess-1"),
		attribute.Int("expiry_minutes", 30),
	)
	span.End()

	events := onlySpan(t, recorder).Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "payment_session_created" {
		t.Errorf("event name = %q, want payment_session_created", events[0].Name)
	}
	if len(events[0].Attributes) != 2 {
		t.Errorf("event attributes = %d, want 2", len(events[0].Attributes))
	}
}

func TestSetAttributes(t *testing.T) {
	recorder := newSpanRecorder(t)

	ctx, span := otel.Tracer("checkout").Start(context.Background(), "reconcile_order")
	SetAttributes(ctx,
		attribute.String("order.id", "order-1"),
		attribute.String("outcome", "success"),
	)
	span.End()

	attrs := spanAttributes(onlySpan(t, recorder))
	if attrs["order.id"] != "order-1" {
		t.Errorf("order.id = %q, want order-1", attrs["order.id"])
	}
	if attrs["outcome"] != "success" {
		t.Errorf("outcome = %q, want success", attrs["outcome"])
	}
}
