package qa

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQuestionLen is the maximum question length in characters (runes, so
// multi-byte scripts are counted fairly).
const MaxQuestionLen = 2000

// ErrInvalidQuestion marks a validation failure, rejected before enqueue.
var ErrInvalidQuestion = errors.New("invalid question")

// ValidateQuestion checks the submitted question text: non-empty after
// trimming, at most MaxQuestionLen characters.
func ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: question must not be empty", ErrInvalidQuestion)
	}
	if n := utf8.RuneCountInString(question); n > MaxQuestionLen {
		return fmt.Errorf("%w: question is %d characters, maximum is %d", ErrInvalidQuestion, n, MaxQuestionLen)
	}
	return nil
}
