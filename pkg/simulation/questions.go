package simulation

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/arenakit/arena/pkg/errors"
)

// QuestionSource supplies one question per round.
type QuestionSource interface {
	Next(round int) (string, error)
}

// ListSource serves questions from a fixed list, cycling when the round
// count exceeds the list length.
type ListSource struct {
	questions []string
}

// NewListSource creates a cycling question source.
func NewListSource(questions []string) (*ListSource, error) {
	if len(questions) == 0 {
		return nil, errors.New(errors.CodeInvalidConfig, "question list must not be empty", nil)
	}
	return &ListSource{questions: questions}, nil
}

func (l *ListSource) Next(round int) (string, error) {
	return l.questions[(round-1)%len(l.questions)], nil
}

// ReaderSource reads one question per round from an interactive stream,
// prompting on out before each read. Blank lines are skipped.
type ReaderSource struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewReaderSource creates an interactive question source.
func NewReaderSource(in io.Reader, out io.Writer) *ReaderSource {
	return &ReaderSource{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

func (r *ReaderSource) Next(round int) (string, error) {
	fmt.Fprintf(r.out, "Question for round %d: ", round)
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line != "" {
			return line, nil
		}
		fmt.Fprintf(r.out, "Question for round %d: ", round)
	}
	if err := r.scanner.Err(); err != nil {
		return "", errors.New(errors.CodeInternal, "failed to read question", err)
	}
	return "", errors.New(errors.CodeInternal, "question input exhausted", nil).
		WithContext("round", round)
}
