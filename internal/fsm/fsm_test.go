package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionPhotoPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventPress)
	require.NoError(t, err)
	require.Equal(t, StateArming, next)

	next, err = Transition(next, EventRelease)
	require.NoError(t, err)
	require.Equal(t, StateCapturingPhoto, next)

	next, err = Transition(next, EventCaptureDone)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionVideoPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventPress)
	require.NoError(t, err)
	require.Equal(t, StateArming, next)

	next, err = Transition(next, EventHoldElapsed)
	require.NoError(t, err)
	require.Equal(t, StateCommittedHold, next)

	next, err = Transition(next, EventRecording)
	require.NoError(t, err)
	require.Equal(t, StateCapturingVideo, next)

	// Late pointer-up while recording does not change state.
	next, err = Transition(next, EventRelease)
	require.NoError(t, err)
	require.Equal(t, StateCapturingVideo, next)

	next, err = Transition(next, EventCaptureDone)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionFailFromAnyStateGoesIdle(t *testing.T) {
	states := []State{StateIdle, StateArming, StateCommittedHold, StateCapturingPhoto, StateCapturingVideo}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle release invalid", state: StateIdle, event: EventRelease, want: StateIdle, wantErr: true},
		{name: "idle hold invalid", state: StateIdle, event: EventHoldElapsed, want: StateIdle, wantErr: true},
		{name: "arming press invalid", state: StateArming, event: EventPress, want: StateArming, wantErr: true},
		{name: "arming cancel valid", state: StateArming, event: EventPointerCancel, want: StateIdle, wantErr: false},
		{name: "committed press invalid", state: StateCommittedHold, event: EventPress, want: StateCommittedHold, wantErr: true},
		{name: "committed early release stays", state: StateCommittedHold, event: EventRelease, want: StateCommittedHold, wantErr: false},
		{name: "photo press invalid", state: StateCapturingPhoto, event: EventPress, want: StateCapturingPhoto, wantErr: true},
		{name: "video press invalid", state: StateCapturingVideo, event: EventPress, want: StateCapturingVideo, wantErr: true},
		{name: "video cancel stays", state: StateCapturingVideo, event: EventPointerCancel, want: StateCapturingVideo, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventPress)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestAudioTransitionHappyPath(t *testing.T) {
	s := AudioIdle

	next, err := AudioTransition(s, AudioEventStart)
	require.NoError(t, err)
	require.Equal(t, AudioRecording, next)

	next, err = AudioTransition(next, AudioEventStop)
	require.NoError(t, err)
	require.Equal(t, AudioProcessing, next)

	next, err = AudioTransition(next, AudioEventDone)
	require.NoError(t, err)
	require.Equal(t, AudioIdle, next)
}

func TestAudioTransitionCancelAndFail(t *testing.T) {
	next, err := AudioTransition(AudioRecording, AudioEventCancel)
	require.NoError(t, err)
	require.Equal(t, AudioIdle, next)

	for _, state := range []State{AudioIdle, AudioRecording, AudioProcessing} {
		next, err = AudioTransition(state, AudioEventFail)
		require.NoError(t, err)
		require.Equal(t, AudioIdle, next)
	}

	_, err = AudioTransition(AudioProcessing, AudioEventStop)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid transition")
}
