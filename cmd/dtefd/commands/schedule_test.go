package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errEvalFailed = errors.New("eval failed")

func TestInlineSink_RunsJobsImmediately(t *testing.T) {
	t.Parallel()

	sink := &inlineSink{ctx: t.Context()}

	ran := false
	sink.Enqueue("dtef__gss", func(_ context.Context) error {
		ran = true

		return nil
	})

	assert.True(t, ran)
	assert.Equal(t, 1, sink.count)
	assert.Zero(t, sink.failed)
}

func TestInlineSink_CountsFailures(t *testing.T) {
	t.Parallel()

	sink := &inlineSink{ctx: t.Context()}

	sink.Enqueue("dtef__gss", func(_ context.Context) error { return errEvalFailed })
	sink.Enqueue("dtef__wvs", func(_ context.Context) error { return nil })

	assert.Equal(t, 2, sink.count)
	assert.Equal(t, 1, sink.failed)
}
