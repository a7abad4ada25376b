package main

import (
	"testing"

	"github.com/stemsi/exstem-portal/internal/service"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"b", command{verb: verbAnswer, option: "B"}},
		{"D", command{verb: verbAnswer, option: "D"}},
		{"answer c", command{verb: verbAnswer, option: "C"}},
		{"answer optionA", command{verb: verbAnswer, option: "A"}},
		{"n", command{verb: verbNext}},
		{"prev", command{verb: verbPrev}},
		{"goto 7", command{verb: verbGoTo, question: 7}},
		{"mark", command{verb: verbMark}},
		{"mark 3", command{verb: verbMark, question: 3}},
		{"review", command{verb: verbReview, filter: service.FilterAll}},
		{"r unanswered", command{verb: verbReview, filter: service.FilterUnanswered}},
		{"", command{verb: verbShow}},
		{"  QUIT ", command{verb: verbQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	_, err := parseCommand("dance")
	require.ErrorIs(t, err, errUnknownCommand)

	_, err = parseCommand("answer e")
	require.ErrorIs(t, err, service.ErrInvalidOption)

	_, err = parseCommand("goto zero")
	require.ErrorIs(t, err, service.ErrQuestionOutOfRange)

	_, err = parseCommand("goto")
	require.Error(t, err)

	_, err = parseCommand("review wrong")
	require.Error(t, err)

	// A digit alone is not an answer.
	_, err = parseCommand("1")
	require.ErrorIs(t, err, errUnknownCommand)
}
