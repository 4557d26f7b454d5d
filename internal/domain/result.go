package domain

import "encoding/json"

// ResultStatus tags the outcome of a pipeline step.
type ResultStatus string

// Result statuses.
const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultEmpty   ResultStatus = "EMPTY"
	ResultFailure ResultStatus = "FAILURE"
)

// Result is the uniform outcome of a pipeline step: success with a payload,
// success with nothing to report, or failure.
type Result[T any] struct {
	Status ResultStatus
	Value  T
	Err    error
}

// Success returns a successful result carrying v.
func Success[T any](v T) Result[T] {
	return Result[T]{Status: ResultSuccess, Value: v}
}

// Empty returns a successful result with no payload.
func Empty[T any]() Result[T] {
	return Result[T]{Status: ResultEmpty}
}

// Failure returns a failed result.
func Failure[T any](err error) Result[T] {
	return Result[T]{Status: ResultFailure, Err: err}
}

// OK reports whether the result is not a failure.
func (r Result[T]) OK() bool { return r.Status != ResultFailure }

// MarshalJSON renders the error as its message.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Status ResultStatus `json:"status"`
		Value  *T           `json:"value,omitempty"`
		Error  string       `json:"error,omitempty"`
	}{Status: r.Status}
	if r.Status == ResultSuccess {
		out.Value = &r.Value
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// StepResult is a pipeline step outcome as recorded by the driver.
type StepResult struct {
	Op     string         `json:"op"`
	Entity string         `json:"entity,omitempty"`
	Result Result[string] `json:"result"`
}
