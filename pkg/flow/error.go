package flow

import "fmt"

type FlowError struct {
	Msg string
}

func (e *FlowError) Error() string {
	return e.Msg
}

// newFlowErrorf uses fmt.Sprintf(format, a...) to format the message
func newFlowErrorf(format string, a ...interface{}) error {
	return &FlowError{
		Msg: fmt.Sprintf(format, a...),
	}
}

type EvaluationError struct {
	Msg string
	Err error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return e.Msg + "\nerror: " + e.Err.Error()
	}
	return e.Msg
}
