package habit

import (
	"strings"
)

// Prompts are the texts the state machine sends between steps.
type Prompts struct {
	AskHabitName    string
	AskDuration     string
	InvalidDuration string
	AskComments     string
	AskReminderTime string
	InvalidTime     string
}

// Effect is a side effect requested by Advance. Flow executes effects in
// order after the new session has been stored.
type Effect interface {
	isEffect()
}

// SendPrompt sends Text (Markdown) to the session chat and records the reply id.
type SendPrompt struct {
	Text string
}

// FlushLedger deletes every recorded message of the session chat.
type FlushLedger struct{}

// CompleteHabit hands the finished draft to the creation transaction.
type CompleteHabit struct {
	Draft Draft
}

func (SendPrompt) isEffect()    {}
func (FlushLedger) isEffect()   {}
func (CompleteHabit) isEffect() {}

type stepFunc func(s Session, text string, p Prompts) (Session, []Effect)

var steps = map[State]stepFunc{
	StateAwaitingName:         stepName,
	StateAwaitingDuration:     stepDuration,
	StateAwaitingComments:     stepComments,
	StateAwaitingReminderTime: stepReminderTime,
}

// Advance applies one inbound text to s and returns the next session and the
// effects to run. Rejected input returns s unchanged with a single re-prompt.
// Completed or unknown states ignore input.
func Advance(s Session, text string, p Prompts) (Session, []Effect) {
	step, ok := steps[s.State]
	if !ok {
		return s, nil
	}
	return step(s, strings.TrimSpace(text), p)
}

func stepName(s Session, text string, p Prompts) (Session, []Effect) {
	if text == "" {
		return s, []Effect{SendPrompt{Text: p.AskHabitName}}
	}
	s.Draft.HabitName = text
	s.State = StateAwaitingDuration
	return s, []Effect{FlushLedger{}, SendPrompt{Text: p.AskDuration}}
}

func stepDuration(s Session, text string, p Prompts) (Session, []Effect) {
	if !ValidateDuration(text) {
		return s, []Effect{SendPrompt{Text: p.InvalidDuration}}
	}
	s.Draft.Duration = text
	s.State = StateAwaitingComments
	return s, []Effect{SendPrompt{Text: p.AskComments}}
}

func stepComments(s Session, text string, p Prompts) (Session, []Effect) {
	s.Draft.Comments = text
	s.State = StateAwaitingReminderTime
	return s, []Effect{SendPrompt{Text: p.AskReminderTime}}
}

func stepReminderTime(s Session, text string, p Prompts) (Session, []Effect) {
	if !ValidateTime(text) {
		return s, []Effect{SendPrompt{Text: p.InvalidTime}}
	}
	s.Draft.ReminderTime = text
	s.State = StateCompleted
	return s, []Effect{FlushLedger{}, CompleteHabit{Draft: s.Draft}}
}
