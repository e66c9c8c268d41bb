package bxml

import "time"

// Verb is the interface for all call-control verbs
type Verb interface {
	isVerb()
}

// Document is an ordered sequence of verbs; ordering is the execution
// order on the telephony leg.
type Document struct {
	Verbs []Verb
}

// Speak outputs text-to-speech
type Speak struct {
	Text  string
	Voice string
}

func (Speak) isVerb() {}

// PlayAudio plays an audio file
type PlayAudio struct {
	URL string
}

func (PlayAudio) isVerb() {}

// Ring plays ringing to the caller for a bounded duration
type Ring struct {
	Duration time.Duration
}

func (Ring) isVerb() {}

// Gather collects DTMF input. Prompt verbs are spoken or played while
// the provider waits for the first digit.
type Gather struct {
	URL               string
	MaxDigits         int
	FirstDigitTimeout time.Duration
	TerminatingDigits string
	Tag               string
	Prompt            []Verb
}

func (Gather) isVerb() {}

// Bridge connects this leg with another in-progress call leg
type Bridge struct {
	CallID string
}

func (Bridge) isVerb() {}

// Record records the caller's voice
type Record struct {
	AvailableURL      string
	CompleteURL       string
	MaxDuration       time.Duration
	TerminatingDigits string
}

func (Record) isVerb() {}

// Redirect fetches a new document from a URL
type Redirect struct {
	URL string
}

func (Redirect) isVerb() {}

// Hangup ends the call
type Hangup struct{}

func (Hangup) isVerb() {}

// Pause waits for a specified duration
type Pause struct {
	Duration time.Duration
}

func (Pause) isVerb() {}
