package domain

import "errors"

// ErrAlreadyAnalyzed is returned when a crawl is requested for a site the registry already knows.
// It is a notice for the user, not a failure.
var ErrAlreadyAnalyzed = errors.New("website already analyzed")

// InitStatus is the tagged outcome of initializing a question-answering session for a site.
type InitStatus string

const (
	InitSuccess  InitStatus = "success"
	InitNotFound InitStatus = "not_found"
	InitFailure  InitStatus = "failure"
)

// InitOutcome is the backend's answer to initialize.
// Questions and Analysis are only set on InitSuccess; Message on the other two.
type InitOutcome struct {
	Status    InitStatus
	Questions []string
	Analysis  AnalysisInfo
	Message   string
}
