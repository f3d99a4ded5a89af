package rag

import (
	"errors"

	"github.com/hyperjump/ozlaw/internal/errs"
)

// Error is the kinded error returned by Run.
type Error = errs.Error

// Kinds of pipeline failures.
const (
	ConfigurationError = errs.KindConfiguration
	ExtractionError    = errs.KindExtraction
	ProviderError      = errs.KindProvider
	ValidationError    = errs.KindValidation
)

// User-facing prefixes. Configuration problems are reported as temporary unavailability;
// everything else as an error processing the question.
const (
	unavailablePrefix = "Sorry, I'm unable to process your question at the moment: "
	failurePrefix     = "Sorry, I encountered an error while processing your question: "
)

// UserMessage turns a pipeline error into the string shown to the person asking.
func UserMessage(err error) string {
	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) {
		msg = e.Message()
	}
	if errs.KindOf(err) == errs.KindConfiguration {
		return unavailablePrefix + msg
	}
	return failurePrefix + msg
}
