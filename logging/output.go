package logging

import (
	"context"
	"io"
	"os"
	"sync"
)

// swapWriter lets the stderr sink of every logger be redirected after the
// loggers were built.
type swapWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *swapWriter) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.w.Write(p)
}

var stderrSink = &swapWriter{w: os.Stderr}

// SetGlobalOutput redirects the stderr sink of every logger, including
// loggers created before the call.
func SetGlobalOutput(w io.Writer) {
	stderrSink.mu.Lock()
	defer stderrSink.mu.Unlock()
	stderrSink.w = w
}

// GetGlobalOutput returns the shared stderr sink.
func GetGlobalOutput() io.Writer {
	return stderrSink
}

type writerKey struct{}

// WithWriter attaches the writer user-facing notices of one command go to.
func WithWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, writerKey{}, w)
}

// GetWriter returns the notice writer attached to ctx, or the global
// output.
func GetWriter(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(writerKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return GetGlobalOutput()
}
