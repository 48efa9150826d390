package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Notify(t *testing.T) {
	var buf bytes.Buffer
	n := NewWriter(&buf, "! ", nil)

	n.Notify(context.Background(), "first")
	n.Notify(context.Background(), "second")

	assert.Equal(t, "! first\n! second\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriter_NotifyWriteErrorIsSwallowed(t *testing.T) {
	n := NewWriter(failingWriter{}, "", nil)
	assert.NotPanics(t, func() { n.Notify(context.Background(), "lost") })
}

func TestFanout(t *testing.T) {
	var got []string
	record := Func(func(_ context.Context, m string) { got = append(got, m) })

	Fanout{record, nil, Func(nil), record}.Notify(context.Background(), "hi")

	assert.Equal(t, []string{"hi", "hi"}, got)
}
