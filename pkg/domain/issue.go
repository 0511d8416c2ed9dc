package domain

import (
	"fmt"
	"strings"
)

// IssueCode classifies a validation issue.
type IssueCode string

const (
	IssueRequired     IssueCode = "required"
	IssueStructure    IssueCode = "structure"
	IssueValue        IssueCode = "value"
	IssueInvalid      IssueCode = "invalid"
	IssueTooLong      IssueCode = "too-long"
	IssueNotSupported IssueCode = "not-supported"
)

// NoAnswer marks an issue that belongs to a node rather than to one of its answers.
const NoAnswer = -1

// Issue is a structured validation diagnostic.
type Issue struct {
	Code        IssueCode `json:"code"`
	Message     string    `json:"message"`
	LinkID      string    `json:"linkId"`
	NodeKey     string    `json:"nodeKey"`
	AnswerIndex int       `json:"answerIndex"`
}

func (i Issue) String() string {
	if i.AnswerIndex != NoAnswer {
		return fmt.Sprintf("%s[%d]: %s (%s)", i.LinkID, i.AnswerIndex, i.Message, i.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", i.LinkID, i.Message, i.Code)
}

// IssueList is a set of issues usable as an error.
type IssueList []Issue

func (l IssueList) Error() string {
	if len(l) == 1 {
		return l[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation issues:\n", len(l))
	for i, issue := range l {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, issue.String())
	}
	return b.String()
}

// Err returns l as an error, or nil when empty.
func (l IssueList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// ByCode returns the issues with the given code.
func (l IssueList) ByCode(code IssueCode) IssueList {
	var out IssueList
	for _, issue := range l {
		if issue.Code == code {
			out = append(out, issue)
		}
	}
	return out
}
