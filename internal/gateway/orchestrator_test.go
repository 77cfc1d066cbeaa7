package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMachineHappyPath(t *testing.T) {
	m := newRequestMachine()
	assert.Equal(t, StateAccepted, m.Current())

	state, err := m.Suspend()
	require.NoError(t, err)
	assert.Equal(t, StateSuspended, state)

	state, err = m.MarkIntrospected()
	require.NoError(t, err)
	assert.Equal(t, StateIntrospected, state)

	state, err = m.MarkDispatched()
	require.NoError(t, err)
	assert.Equal(t, StateDispatched, state)

	state, err = m.Finalize()
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, state)
}

func TestRequestMachineRejectsSkippedState(t *testing.T) {
	m := newRequestMachine()
	_, err := m.MarkIntrospected()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequestMachineRejectsDoubleFinalize(t *testing.T) {
	m := newRequestMachine()
	_, _ = m.Suspend()
	_, _ = m.MarkIntrospected()
	_, _ = m.MarkDispatched()
	_, err := m.Finalize()
	require.NoError(t, err)

	_, err = m.Finalize()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequestMachineRejectsDispatchBeforeIntrospected(t *testing.T) {
	m := newRequestMachine()
	_, _ = m.Suspend()
	_, err := m.MarkDispatched()
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStateStringNames(t *testing.T) {
	assert.Equal(t, "accepted", StateAccepted.String())
	assert.Equal(t, "finalized", StateFinalized.String())
	assert.Equal(t, "unknown", RequestState(99).String())
}
