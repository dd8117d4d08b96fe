// Package fsm defines the pure state machines for gesture-driven visual
// capture and for the audio dictation pipeline.
package fsm

import "fmt"

type State string

type Event string

// Visual capture states. The hold arbitration is part of the machine so a
// timer firing and a pointer release can never race an ambiguous flag.
const (
	StateIdle           State = "idle"
	StateArming         State = "arming"
	StateCommittedHold  State = "committed_hold"
	StateCapturingPhoto State = "capturing_photo"
	StateCapturingVideo State = "capturing_video"
)

const (
	EventPress         Event = "press"
	EventHoldElapsed   Event = "hold_elapsed"
	EventRelease       Event = "release"
	EventPointerCancel Event = "pointer_cancel"
	EventRecording     Event = "recording"
	EventCaptureDone   Event = "capture_done"
	EventFail          Event = "fail"
	EventReset         Event = "reset"
)

// Transition applies one event to the visual capture machine. EventFail and
// EventReset are accepted from any state and land in idle: after any failure
// a new attempt can begin immediately.
func Transition(current State, event Event) (State, error) {
	if event == EventFail || event == EventReset {
		return StateIdle, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventPress:
			return StateArming, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateArming:
		switch event {
		case EventHoldElapsed:
			return StateCommittedHold, nil
		case EventRelease:
			return StateCapturingPhoto, nil
		case EventPointerCancel:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCommittedHold:
		switch event {
		case EventRecording:
			return StateCapturingVideo, nil
		case EventRelease, EventPointerCancel:
			// Release before acquisition finished; the video path observes
			// the stop request when it reaches recording state.
			return StateCommittedHold, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCapturingPhoto:
		switch event {
		case EventCaptureDone:
			return StateIdle, nil
		case EventRelease, EventPointerCancel:
			return StateCapturingPhoto, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCapturingVideo:
		switch event {
		case EventCaptureDone:
			return StateIdle, nil
		case EventRelease, EventPointerCancel:
			return StateCapturingVideo, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Audio dictation states.
const (
	AudioIdle       State = "audio_idle"
	AudioRecording  State = "audio_recording"
	AudioProcessing State = "audio_processing"
)

const (
	AudioEventStart  Event = "start"
	AudioEventStop   Event = "stop"
	AudioEventDone   Event = "done"
	AudioEventCancel Event = "cancel"
	AudioEventFail   Event = "fail"
)

// AudioTransition applies one event to the dictation machine:
// idle -> recording -> processing -> idle on success, straight back to idle
// on cancel or failure.
func AudioTransition(current State, event Event) (State, error) {
	if event == AudioEventFail {
		return AudioIdle, nil
	}

	switch current {
	case AudioIdle:
		switch event {
		case AudioEventStart:
			return AudioRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case AudioRecording:
		switch event {
		case AudioEventStop:
			return AudioProcessing, nil
		case AudioEventCancel:
			return AudioIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case AudioProcessing:
		switch event {
		case AudioEventDone:
			return AudioIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
