package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
)

type verb string

const (
	verbAnswer  verb = "answer"
	verbMark    verb = "mark"
	verbNext    verb = "next"
	verbPrev    verb = "prev"
	verbGoTo    verb = "goto"
	verbSubmit  verb = "submit"
	verbReview  verb = "review"
	verbPalette verb = "palette"
	verbShow    verb = "show"
	verbHelp    verb = "help"
	verbQuit    verb = "quit"
)

var aliases = map[string]verb{
	"answer":   verbAnswer,
	"m":        verbMark,
	"mark":     verbMark,
	"n":        verbNext,
	"next":     verbNext,
	"p":        verbPrev,
	"prev":     verbPrev,
	"previous": verbPrev,
	"g":        verbGoTo,
	"goto":     verbGoTo,
	"s":        verbSubmit,
	"submit":   verbSubmit,
	"r":        verbReview,
	"review":   verbReview,
	"l":        verbPalette,
	"palette":  verbPalette,
	"":         verbShow,
	"show":     verbShow,
	"h":        verbHelp,
	"help":     verbHelp,
	"?":        verbHelp,
	"q":        verbQuit,
	"quit":     verbQuit,
	"exit":     verbQuit,
}

type command struct {
	verb     verb
	option   string
	question int
	filter   service.ReviewFilter
}

var errUnknownCommand = errors.New("unknown command, type 'help'")

// parseCommand reads one input line. A bare option letter is an answer.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 1 {
		if label := client.NormalizeLabel(fields[0]); label != "" && len(fields[0]) == 1 && !isDigit(fields[0]) {
			return command{verb: verbAnswer, option: label}, nil
		}
	}

	head := ""
	if len(fields) > 0 {
		head = strings.ToLower(fields[0])
	}
	v, ok := aliases[head]
	if !ok {
		return command{}, errUnknownCommand
	}
	cmd := command{verb: v}
	args := fields[min(1, len(fields)):]

	switch v {
	case verbAnswer:
		if len(args) != 1 {
			return command{}, errors.New("usage: answer <A|B|C|D>")
		}
		cmd.option = client.NormalizeLabel(args[0])
		if cmd.option == "" {
			return command{}, service.ErrInvalidOption
		}
	case verbGoTo:
		if len(args) != 1 {
			return command{}, errors.New("usage: goto <question number>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return command{}, service.ErrQuestionOutOfRange
		}
		cmd.question = n
	case verbMark:
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return command{}, service.ErrQuestionOutOfRange
			}
			cmd.question = n
		}
	case verbReview:
		name := ""
		if len(args) > 0 {
			name = strings.ToLower(args[0])
		}
		f, ok := service.ParseReviewFilter(name)
		if !ok {
			return command{}, errors.New("filters: all, correct, incorrect, unanswered, marked")
		}
		cmd.filter = f
	}
	return cmd, nil
}

func isDigit(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// run is the read-eval loop. It returns on quit, end of input or
// cancellation.
func run(ctx context.Context, in *bufio.Scanner, sess *service.ExamSession, log zerolog.Logger) {
	printHelp()
	printQuestion(sess.View())

	// Unblock the scanner on Ctrl-C.
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()

	for {
		fmt.Print("> ")
		if !in.Scan() || ctx.Err() != nil {
			return
		}
		cmd, err := parseCommand(in.Text())
		if err != nil {
			fmt.Println(message(err))
			continue
		}
		if cmd.verb == verbQuit {
			if sess.Submission() != service.Submitted {
				fmt.Println("Your answers have not been submitted; progress is auto-saved.")
			}
			return
		}
		if err := execute(ctx, sess, cmd); err != nil {
			log.Debug().Err(err).Str("command", string(cmd.verb)).Msg("Command failed")
			fmt.Println(message(err))
		}
	}
}

func execute(ctx context.Context, sess *service.ExamSession, cmd command) error {
	switch cmd.verb {
	case verbAnswer:
		v := sess.View()
		if err := sess.SelectOption(v.Number, cmd.option); err != nil {
			return err
		}
		fmt.Printf("Q%d: %s selected\n", v.Number, cmd.option)
	case verbMark:
		q := cmd.question
		if q == 0 {
			q = sess.View().Number
		}
		on, err := sess.ToggleMark(q)
		if err != nil {
			return err
		}
		if on {
			fmt.Printf("Q%d marked for review\n", q)
		} else {
			fmt.Printf("Q%d unmarked\n", q)
		}
	case verbNext:
		moved, err := sess.Next()
		if err != nil {
			return err
		}
		if !moved {
			fmt.Println("This is the last question.")
			return nil
		}
		printQuestion(sess.View())
	case verbPrev:
		moved, err := sess.Previous()
		if err != nil {
			return err
		}
		if !moved {
			fmt.Println("This is the first question.")
			return nil
		}
		printQuestion(sess.View())
	case verbGoTo:
		if err := sess.GoTo(cmd.question); err != nil {
			return err
		}
		printQuestion(sess.View())
	case verbShow:
		printQuestion(sess.View())
	case verbPalette:
		printPalette(sess.View())
	case verbSubmit:
		v := sess.View()
		fmt.Printf("Submitting %d of %d answers...\n", v.Answered, v.Total)
		res, err := sess.Submit(ctx, model.TriggerManual)
		if err != nil {
			return err
		}
		printResult(res)
	case verbReview:
		items, err := sess.Review(cmd.filter)
		if err != nil {
			return err
		}
		sum, err := sess.Summary()
		if err != nil {
			return err
		}
		printReview(cmd.filter, items, sum)
	case verbHelp:
		printHelp()
	}
	return nil
}

func message(err error) string {
	if errors.Is(err, errUnknownCommand) {
		return err.Error()
	}
	_, code, _ := service.Describe(err)
	if code == response.ErrInternal {
		return err.Error()
	}
	return service.UserMessage(err)
}
