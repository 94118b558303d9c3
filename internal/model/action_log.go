package model

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// ActionRecord is one processed command. The misspelled "valididy" key is
// what existing agents parse, so it stays.
type ActionRecord struct {
	CommandCount int      `json:"command_count"`
	ActionCount  int      `json:"action_count"`
	Prompt       string   `json:"prompt"`
	Validity     []string `json:"valididy"`
}

// EventLog is the per turn cycle log sent as the acknowledgement body.
type EventLog struct {
	Actions    []ActionRecord `json:"Actions"`
	BoardState []string       `json:"board_state"`
	BoardData  []ObjectData   `json:"board_data"`
	GameDone   bool           `json:"game_done"`

	log *logrus.Entry
}

func NewEventLog(log *logrus.Entry) *EventLog {
	l := &EventLog{log: log}
	l.Clear()
	return l
}

// Clear empties the log in place.
func (l *EventLog) Clear() {
	l.Actions = []ActionRecord{}
	l.BoardState = []string{}
	l.BoardData = []ObjectData{}
	l.GameDone = false
}

func (l *EventLog) NewAction(commandCount, actionCount int, prompt string) {
	l.Actions = append(l.Actions, ActionRecord{
		CommandCount: commandCount,
		ActionCount:  actionCount,
		Prompt:       prompt,
		Validity:     []string{},
	})
}

// SetValidity appends a message to the latest record. Messages that arrive
// before any record exists (level start up) are only logged.
func (l *EventLog) SetValidity(msg string) {
	if l.log != nil {
		l.log.WithField("component", "game_log").Debug(msg)
	}
	if len(l.Actions) == 0 {
		return
	}
	last := &l.Actions[len(l.Actions)-1]
	last.Validity = append(last.Validity, msg)
}

func (l *EventLog) SetBoardStatus(status string) {
	l.BoardState = append(l.BoardState, status)
}

func (l *EventLog) SetObjectData(data ObjectData) {
	l.BoardData = append(l.BoardData, data)
}

func (l *EventLog) SetGameStatus(done bool) {
	l.GameDone = done
}

func (l *EventLog) Last() (ActionRecord, bool) {
	if len(l.Actions) == 0 {
		return ActionRecord{}, false
	}
	return l.Actions[len(l.Actions)-1], true
}

// Snapshot deep-copies the log so it can outlive the next Clear.
func (l *EventLog) Snapshot() EventLog {
	out := EventLog{
		Actions:    make([]ActionRecord, len(l.Actions)),
		BoardState: append([]string{}, l.BoardState...),
		BoardData:  append([]ObjectData{}, l.BoardData...),
		GameDone:   l.GameDone,
	}
	for i, a := range l.Actions {
		a.Validity = append([]string{}, a.Validity...)
		out.Actions[i] = a
	}
	return out
}

func (l *EventLog) JSON() (string, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
