package models

import (
	"encoding/json"
	"fmt"
	"time"

	dErrors "github.com/pcettina/OutTheGroupchat-sub001/pkg/domain-errors"
)

// QuestionType declares the shape of the answers a question accepts.
type QuestionType string

const (
	QuestionText         QuestionType = "TEXT"
	QuestionSingleChoice QuestionType = "SINGLE_CHOICE"
	QuestionMultiChoice  QuestionType = "MULTI_CHOICE"
	QuestionNumber       QuestionType = "NUMBER"
	QuestionDateRange    QuestionType = "DATE_RANGE"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionSingleChoice, QuestionMultiChoice, QuestionNumber, QuestionDateRange:
		return true
	}
	return false
}

// Question is a typed question definition. Choice questions carry the
// permitted options.
type Question struct {
	ID      string
	Prompt  string
	Type    QuestionType
	Options []string
}

// Validate checks a question definition at creation time.
func (q Question) Validate() error {
	if q.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "question id is required")
	}
	if q.Prompt == "" {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %q has no prompt", q.ID))
	}
	if !q.Type.Valid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %q has unknown type %q", q.ID, q.Type))
	}
	switch q.Type {
	case QuestionSingleChoice, QuestionMultiChoice:
		if len(q.Options) == 0 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("choice question %q needs options", q.ID))
		}
	}
	return nil
}

// DateRange is the answer payload for DATE_RANGE questions.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Answer is a tagged union: exactly the field matching Type is meaningful.
// Answers are parsed and validated at the boundary so the engines never
// handle opaque JSON.
type Answer struct {
	Type    QuestionType
	Text    string
	Choice  string
	Choices []string
	Number  float64
	Range   *DateRange
}

// ParseAnswer decodes a raw JSON answer value against the question's declared
// type. A mismatch is a validation error; nothing is partially applied.
func ParseAnswer(q Question, raw json.RawMessage) (Answer, error) {
	mismatch := func() (Answer, error) {
		return Answer{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("answer for question %q does not match type %s", q.ID, q.Type))
	}

	switch q.Type {
	case QuestionText:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return mismatch()
		}
		return Answer{Type: q.Type, Text: text}, nil

	case QuestionSingleChoice:
		var choice string
		if err := json.Unmarshal(raw, &choice); err != nil {
			return mismatch()
		}
		if !q.allowsOption(choice) {
			return Answer{}, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("answer for question %q is not one of its options", q.ID))
		}
		return Answer{Type: q.Type, Choice: choice}, nil

	case QuestionMultiChoice:
		var choices []string
		if err := json.Unmarshal(raw, &choices); err != nil {
			return mismatch()
		}
		for _, choice := range choices {
			if !q.allowsOption(choice) {
				return Answer{}, dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("answer for question %q includes an unknown option", q.ID))
			}
		}
		return Answer{Type: q.Type, Choices: choices}, nil

	case QuestionNumber:
		var number float64
		if err := json.Unmarshal(raw, &number); err != nil {
			return mismatch()
		}
		return Answer{Type: q.Type, Number: number}, nil

	case QuestionDateRange:
		var dr DateRange
		if err := json.Unmarshal(raw, &dr); err != nil {
			return mismatch()
		}
		if dr.Start.IsZero() || dr.End.IsZero() || dr.End.Before(dr.Start) {
			return Answer{}, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("answer for question %q is not a valid date range", q.ID))
		}
		return Answer{Type: q.Type, Range: &dr}, nil

	default:
		return Answer{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("question %q has unknown type %q", q.ID, q.Type))
	}
}

func (q Question) allowsOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}
