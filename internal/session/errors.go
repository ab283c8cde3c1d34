package session

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupported  = errors.New("speech recognition unsupported")
	ErrNotListening = errors.New("session is not listening")
	ErrClosed       = errors.New("session closed")
)

const unsupportedMessage = "Speech recognition is not supported in this environment."

// Recognition error codes reported by the speech capability.
const (
	CodeNoSpeech            = "no-speech"
	CodeAborted             = "aborted"
	CodeAudioCapture        = "audio-capture"
	CodeNetwork             = "network"
	CodeNotAllowed          = "not-allowed"
	CodeServiceNotAllowed   = "service-not-allowed"
	CodeBadGrammar          = "bad-grammar"
	CodeLanguageUnsupported = "language-not-supported"
)

// RecognitionError is a failure reported by the recognizer. It always ends
// the current session.
type RecognitionError struct {
	Code   string
	Detail string
}

func (e *RecognitionError) Error() string {
	if e.Detail == "" {
		return "recognition error: " + e.Code
	}
	return fmt.Sprintf("recognition error: %s: %s", e.Code, e.Detail)
}

// Message is the text shown to the user.
func (e *RecognitionError) Message() string {
	switch e.Code {
	case CodeNetwork:
		return "Network error. Check your connection."
	case CodeNotAllowed, CodeServiceNotAllowed:
		return "Microphone access is not allowed."
	case CodeNoSpeech:
		return "No speech was detected."
	}
	return fmt.Sprintf("Speech recognition error: %s.", e.Code)
}

// errorMessage renders err for the display surface.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnsupported) {
		return unsupportedMessage
	}
	var m interface{ Message() string }
	if errors.As(err, &m) {
		return m.Message()
	}
	return err.Error()
}
