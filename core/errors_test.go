package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineFailedError_WrapsTimeout(t *testing.T) {
	err := fmt.Errorf("run: %w", &PipelineFailedError{
		AgentID: "patent",
		Err:     &TimeoutError{AgentID: "patent", After: time.Second},
	})

	assert.ErrorIs(t, err, ErrPipelineFailed)
	assert.ErrorIs(t, err, ErrTimeout)

	var pf *PipelineFailedError
	assert.True(t, errors.As(err, &pf))
	assert.Equal(t, "patent", pf.AgentID)
	assert.Contains(t, err.Error(), `"patent"`)
}

func TestConfigurationError_Is(t *testing.T) {
	err := NewConfigurationError("duplicate id %q", "web")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.EqualError(t, err, `configuration error: duplicate id "web"`)
}
