package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/validator"
)

// flexInt accepts 30, 30.0 and "30".
type flexInt struct {
	set bool
	n   int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	f.set, f.n = true, int(v)
	return nil
}

// flexFloat accepts 72.5 and "72.5".
type flexFloat struct {
	set bool
	v   float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	f.set, f.v = true, v
	return nil
}

// rawExam covers the field spellings the backend has used for exams.
type rawExam struct {
	ExamCode        string        `json:"examCode"`
	Code            string        `json:"code"`
	ExamName        string        `json:"examName"`
	Name            string        `json:"name"`
	Title           string        `json:"title"`
	BatchName       string        `json:"batchName"`
	Batch           string        `json:"batch"`
	Duration        flexInt       `json:"duration"`
	DurationMinutes flexInt       `json:"durationMinutes"`
	DurationSnake   flexInt       `json:"duration_minutes"`
	Questions       []rawQuestion `json:"questions"`
}

type rawExamWrapper struct {
	Exam      *rawExam      `json:"exam"`
	Questions []rawQuestion `json:"questions"`
}

// rawQuestion covers both option layouts and both answer-key spellings.
type rawQuestion struct {
	QuestionNumber flexInt `json:"questionNumber"`
	SequenceNumber flexInt `json:"sequenceNumber"`
	Sequence       flexInt `json:"sequence"`
	Number         flexInt `json:"number"`

	Question     json.RawMessage `json:"question"`
	QuestionText json.RawMessage `json:"questionText"`
	Text         json.RawMessage `json:"text"`

	Options json.RawMessage `json:"options"`
	OptionA json.RawMessage `json:"optionA"`
	OptionB json.RawMessage `json:"optionB"`
	OptionC json.RawMessage `json:"optionC"`
	OptionD json.RawMessage `json:"optionD"`

	CorrectAnswer string `json:"correctAnswer"`
	CorrectOption string `json:"correctOption"`

	Explanation json.RawMessage `json:"explanation"`
	SubOptions  json.RawMessage `json:"subOptions"`
}

func (q *rawQuestion) number() (int, bool) {
	for _, f := range []flexInt{q.QuestionNumber, q.SequenceNumber, q.Sequence, q.Number} {
		if f.set {
			return f.n, true
		}
	}
	return 0, false
}

// NormalizeExam converts a backend exam body into the canonical record and
// validates it. Anything that cannot be rendered yields ErrUnusableExam.
func NormalizeExam(raw []byte, fallbackCode, fallbackBatch string) (*model.Exam, error) {
	var re rawExam

	var wrapper rawExamWrapper
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Exam != nil {
		re = *wrapper.Exam
		if len(re.Questions) == 0 {
			re.Questions = wrapper.Questions
		}
	} else if err := json.Unmarshal(raw, &re); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableExam, err)
	}

	exam := &model.Exam{
		Code:  firstNonEmpty(re.ExamCode, re.Code, fallbackCode),
		Name:  firstNonEmpty(re.ExamName, re.Name, re.Title),
		Batch: firstNonEmpty(re.BatchName, re.Batch, fallbackBatch),
	}
	for _, d := range []flexInt{re.Duration, re.DurationMinutes, re.DurationSnake} {
		if d.set {
			exam.DurationMinutes = d.n
			break
		}
	}

	questions, err := normalizeQuestions(re.Questions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusableExam, err)
	}
	exam.Questions = questions

	if fields := validator.Struct(exam); fields != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnusableExam, describeFields(fields))
	}
	return exam, nil
}

// normalizeQuestions orders by the backend's sequence number when every
// question has one, then renumbers 1..N so the Answer map range is exact.
// The backend's sequence is kept on each question; without one it is the
// question's position in the body, counting from 1.
func normalizeQuestions(raws []rawQuestion) ([]model.Question, error) {
	type numbered struct {
		seq int
		q   model.Question
	}

	all := make([]numbered, 0, len(raws))
	allNumbered := true
	for i := range raws {
		q, err := normalizeQuestion(&raws[i])
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		seq, ok := raws[i].number()
		if !ok {
			allNumbered = false
		}
		all = append(all, numbered{seq: seq, q: q})
	}

	if allNumbered {
		sort.SliceStable(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	} else {
		for i := range all {
			all[i].seq = i + 1
		}
	}

	out := make([]model.Question, len(all))
	seen := make(map[int]bool, len(all))
	for i := range all {
		if seen[all[i].seq] {
			return nil, fmt.Errorf("duplicate question sequence %d", all[i].seq)
		}
		seen[all[i].seq] = true
		out[i] = all[i].q
		out[i].Number = i + 1
		out[i].Sequence = all[i].seq
	}
	return out, nil
}

func normalizeQuestion(rq *rawQuestion) (model.Question, error) {
	q := model.Question{
		Text:          firstText(rq.Question, rq.QuestionText, rq.Text),
		CorrectOption: NormalizeLabel(firstNonEmpty(rq.CorrectOption, rq.CorrectAnswer)),
	}

	texts, err := optionTexts(rq)
	if err != nil {
		return q, err
	}
	q.Options = make([]model.Option, 0, len(model.OptionLabels))
	for _, label := range model.OptionLabels {
		q.Options = append(q.Options, model.Option{Label: label, Text: texts[label]})
	}

	if exp := parseText(rq.Explanation); !exp.Empty() {
		q.Explanation = &exp
	}
	if len(rq.SubOptions) > 0 {
		var subs []json.RawMessage
		if err := json.Unmarshal(rq.SubOptions, &subs); err == nil {
			for _, s := range subs {
				if t := parseText(s); !t.Empty() {
					q.SubOptions = append(q.SubOptions, t)
				}
			}
		}
	}
	return q, nil
}

// optionTexts reads the options object, the options array, or optionA..D.
func optionTexts(rq *rawQuestion) (map[string]model.Text, error) {
	texts := make(map[string]model.Text, 4)

	trimmed := bytes.TrimSpace(rq.Options)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
		for k, v := range obj {
			if label := NormalizeLabel(k); label != "" {
				texts[label] = parseText(v)
			}
		}
	case len(trimmed) > 0 && trimmed[0] == '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
		for i, item := range arr {
			label, text := arrayOption(item)
			if label == "" && i < len(model.OptionLabels) {
				label = model.OptionLabels[i]
			}
			if label != "" {
				texts[label] = text
			}
		}
	}

	for label, raw := range map[string]json.RawMessage{
		model.OptionA: rq.OptionA,
		model.OptionB: rq.OptionB,
		model.OptionC: rq.OptionC,
		model.OptionD: rq.OptionD,
	} {
		if _, ok := texts[label]; ok || len(raw) == 0 {
			continue
		}
		texts[label] = parseText(raw)
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("no options")
	}
	return texts, nil
}

// arrayOption reads "text" or {label|key|id, text|value|...}.
func arrayOption(raw json.RawMessage) (string, model.Text) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", parseText(raw)
	}
	label := ""
	for _, k := range []string{"label", "key", "id", "option"} {
		if v, ok := obj[k]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				label = NormalizeLabel(s)
			}
			break
		}
	}
	for _, k := range []string{"text", "value", "content"} {
		if v, ok := obj[k]; ok {
			return label, parseText(v)
		}
	}
	return label, parseText(raw)
}

// parseText reads a plain string or a bilingual object.
func parseText(raw json.RawMessage) model.Text {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return model.Text{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return model.Text{Primary: strings.TrimSpace(s)}
	}

	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err != nil {
		return model.Text{}
	}
	t := model.Text{
		Primary:   firstNonEmpty(obj["english"], obj["en"], obj["primary"], obj["text"]),
		Secondary: firstNonEmpty(obj["hindi"], obj["hi"], obj["secondary"]),
	}
	if t.Primary == "" {
		t.Primary, t.Secondary = t.Secondary, ""
	}
	return t
}

func firstText(raws ...json.RawMessage) model.Text {
	for _, r := range raws {
		if t := parseText(r); !t.Empty() {
			return t
		}
	}
	return model.Text{}
}

// NormalizeLabel maps "b", "optionB", "Option B" and "2" to "B". Unknown
// values become "".
func NormalizeLabel(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "OPTION")
	s = strings.TrimSpace(strings.TrimPrefix(s, "_"))
	switch s {
	case "1":
		return model.OptionA
	case "2":
		return model.OptionB
	case "3":
		return model.OptionC
	case "4":
		return model.OptionD
	}
	if model.ValidOption(s) {
		return s
	}
	return ""
}

// rawSubmitResult covers the reply shapes of the submit endpoint.
type rawSubmitResult struct {
	Score          flexFloat        `json:"score"`
	TotalQuestions flexInt          `json:"totalQuestions"`
	Total          flexInt          `json:"total"`
	CorrectAnswers json.RawMessage  `json:"correctAnswers"`
	Questions      []rawQuestion    `json:"questions"`
	Message        string           `json:"message"`
	Result         *rawSubmitResult `json:"result"`
}

// NormalizeSubmitResult extracts score and echoed correct options. Correct is
// keyed by the backend's question sequence; Exam.FromSequences maps it onto
// question numbers.
func NormalizeSubmitResult(raw []byte) (*model.SubmitResult, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &model.SubmitResult{}, nil
	}

	var rs rawSubmitResult
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("decode submit result: %w", err)
	}
	if rs.Result != nil {
		msg := rs.Message
		rs = *rs.Result
		if rs.Message == "" {
			rs.Message = msg
		}
	}

	out := &model.SubmitResult{Message: rs.Message}
	if rs.Score.set {
		score := rs.Score.v
		out.Score = &score
	}
	if rs.TotalQuestions.set {
		out.Total = rs.TotalQuestions.n
	} else if rs.Total.set {
		out.Total = rs.Total.n
	}

	correct := make(map[int]string)
	if len(rs.CorrectAnswers) > 0 {
		var m map[string]string
		if err := json.Unmarshal(rs.CorrectAnswers, &m); err == nil {
			for k, v := range m {
				n, err := strconv.Atoi(strings.TrimSpace(k))
				if err != nil {
					continue
				}
				if label := NormalizeLabel(v); label != "" {
					correct[n] = label
				}
			}
		}
	}
	if len(correct) == 0 && len(rs.Questions) > 0 {
		for i := range rs.Questions {
			rq := &rs.Questions[i]
			n, ok := rq.number()
			if !ok {
				n = i + 1
			}
			if label := NormalizeLabel(firstNonEmpty(rq.CorrectOption, rq.CorrectAnswer)); label != "" {
				correct[n] = label
			}
		}
	}
	if len(correct) > 0 {
		out.Correct = correct
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func describeFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fields[k])
	}
	return strings.Join(parts, "; ")
}
