package logctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrom_DefaultWhenEmpty(t *testing.T) {
	require.Same(t, slog.Default(), From(context.Background()))
}

func TestIntoFrom(t *testing.T) {
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := Into(context.Background(), l)
	require.Same(t, l, From(ctx))
}

func TestFrom_NilLoggerFallsBack(t *testing.T) {
	ctx := Into(context.Background(), nil)
	require.Same(t, slog.Default(), From(ctx))
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := With(Into(context.Background(), l), "provider", "mts")

	From(ctx).Info("stage_done")
	require.Contains(t, buf.String(), "provider=mts")
	require.Contains(t, buf.String(), "msg=stage_done")
}
