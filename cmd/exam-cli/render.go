package main

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/service"
)

func printHelp() {
	fmt.Println(`Commands:
  A|B|C|D, answer <opt>   select an option for the current question
  mark [n]                flag a question for review
  next, prev, goto <n>    move between questions
  palette                 show every question's status
  submit                  submit the exam
  review [filter]         after submission: all, correct, incorrect, unanswered, marked
  quit                    leave (answers are auto-saved until submitted)`)
}

func printQuestion(v service.View) {
	if v.Question == nil {
		fmt.Println("No question loaded.")
		return
	}
	q := v.Question

	flag := ""
	if v.Marked {
		flag = " [marked]"
	}
	fmt.Printf("\nQuestion %d of %d%s   (%s left)\n", v.Number, v.Total, flag, v.Clock)
	fmt.Println(textBlock(q.Text))
	for i, sub := range q.SubOptions {
		fmt.Printf("  %d. %s\n", i+1, sub.Primary)
	}
	for _, o := range q.Options {
		mark := " "
		if o.Label == v.Selected {
			mark = "*"
		}
		fmt.Printf(" %s %s) %s\n", mark, o.Label, o.Text.Primary)
	}
}

var paletteSymbols = map[service.PaletteStatus]string{
	service.PaletteNotVisited:     ".",
	service.PaletteNotAnswered:    "o",
	service.PaletteAnswered:       "A",
	service.PaletteMarked:         "M",
	service.PaletteAnsweredMarked: "#",
}

func printPalette(v service.View) {
	var b strings.Builder
	for i, e := range v.Palette {
		if i > 0 && i%10 == 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%3d%s ", e.Number, paletteSymbols[e.Status])
	}
	fmt.Println(b.String())
	fmt.Printf("answered %d, marked %d, %s left   (. not visited  o skipped  A answered  M marked  # answered+marked)\n",
		v.Answered, v.MarkedCount, v.Clock)
}

func printResult(res *model.SubmitResult) {
	fmt.Println("Exam submitted.")
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	if res.Score != nil {
		fmt.Printf("Score: %.2f / %d\n", *res.Score, res.Total)
	}
	fmt.Println("Type 'review' to go through your answers.")
}

func printReview(filter service.ReviewFilter, items []service.ReviewItem, sum service.Summary) {
	fmt.Printf("\nReview (%s): %d question(s)\n", filter, len(items))
	for _, it := range items {
		selected := it.Selected
		if selected == "" {
			selected = "-"
		}
		line := fmt.Sprintf("Q%-3d %-10s yours: %s", it.Question.Number, it.Outcome, selected)
		if it.Correct != "" {
			line += "  correct: " + it.Correct
		}
		if it.Marked {
			line += "  [marked]"
		}
		fmt.Println(line)
		if it.Question.Explanation != nil && !it.Question.Explanation.Empty() {
			fmt.Println("     " + it.Question.Explanation.Primary)
		}
	}
	fmt.Printf("\nAnswered %d/%d, correct %d, incorrect %d, unanswered %d, marked %d, %.1f%%\n",
		sum.Answered, sum.Total, sum.Correct, sum.Incorrect, sum.Unanswered, sum.Marked, sum.Percent)
}

func textBlock(t model.Text) string {
	if t.Secondary == "" {
		return t.Primary
	}
	return t.Primary + "\n" + t.Secondary
}
