package runtime

import "fmt"

// ElementType determines which handler category owns a token and which
// sub-behavior applies.
type ElementType string

const (
	ElementTypeDefaultEvent ElementType = "DEFAULT_EVENT"
	ElementTypeTimerEvent   ElementType = "TIMER_EVENT"
	ElementTypeMessageEvent ElementType = "MESSAGE_EVENT"

	ElementTypeServiceTask      ElementType = "SERVICE_TASK"
	ElementTypeBusinessRuleTask ElementType = "BUSINESS_RULE_TASK"
	ElementTypeUserTask         ElementType = "USER_TASK"

	ElementTypeExclusiveGateway  ElementType = "EXCLUSIVE_GATEWAY"
	ElementTypeParallelGateway   ElementType = "PARALLEL_GATEWAY"
	ElementTypeEventBasedGateway ElementType = "EVENT_BASED_GATEWAY"
	ElementTypeInclusiveGateway  ElementType = "INCLUSIVE_GATEWAY"
	// extension points, defined but without behavior
	ElementTypeExclusiveEventBasedGateway ElementType = "EXCLUSIVE_EVENT_BASED_GATEWAY"
	ElementTypeParallelEventBasedGateway  ElementType = "PARALLEL_EVENT_BASED_GATEWAY"

	ElementTypeSequenceStandard    ElementType = "SEQUENCE_STANDARD"
	ElementTypeSequenceConditional ElementType = "SEQUENCE_CONDITIONAL"
	ElementTypeSequenceDefault     ElementType = "SEQUENCE_DEFAULT"

	ElementTypeProcess ElementType = "PROCESS"
)

// Status encodes a token's position in its per-element lifecycle and is the
// sole dispatch key of the token router.
type Status string

const (
	StatusEventActivated Status = "EVENT_ACTIVATED"
	StatusEventOccured   Status = "EVENT_OCCURED"

	StatusActivityActivated Status = "ACTIVITY_ACTIVATED"
	StatusActivityReady     Status = "ACTIVITY_READY"
	StatusActivityCompleted Status = "ACTIVITY_COMPLETED"
	StatusActivityError     Status = "ACTIVITY_ERROR"

	StatusSequenceActivated Status = "SEQUENCE_ACTIVATED"
	StatusSequenceCompleted Status = "SEQUENCE_COMPLETED"
	StatusSequenceRejected  Status = "SEQUENCE_REJECTED"
	StatusSequenceError     Status = "SEQUENCE_ERROR"

	StatusGatewayActivated Status = "GATEWAY_ACTIVATED"
	StatusGatewayReady     Status = "GATEWAY_READY"
	StatusGatewayCompleted Status = "GATEWAY_COMPLETED"

	StatusProcessActivated Status = "PROCESS_ACTIVATED"
	StatusProcessCompleted Status = "PROCESS_COMPLETED"
)

// ActivationStatus returns the initial status of a token created for an
// element of the given type. It is the pure lookup that the next handler uses
// when fanning out to outgoing elements.
func ActivationStatus(t ElementType) (Status, error) {
	switch t {
	case ElementTypeDefaultEvent, ElementTypeTimerEvent, ElementTypeMessageEvent:
		return StatusEventActivated, nil
	case ElementTypeServiceTask, ElementTypeBusinessRuleTask, ElementTypeUserTask:
		return StatusActivityActivated, nil
	case ElementTypeExclusiveGateway, ElementTypeParallelGateway, ElementTypeEventBasedGateway,
		ElementTypeInclusiveGateway, ElementTypeExclusiveEventBasedGateway, ElementTypeParallelEventBasedGateway:
		return StatusGatewayActivated, nil
	case ElementTypeSequenceStandard, ElementTypeSequenceConditional, ElementTypeSequenceDefault:
		return StatusSequenceActivated, nil
	case ElementTypeProcess:
		return StatusProcessActivated, nil
	}
	return "", fmt.Errorf("no activation status for element type %s", t)
}

// IsSequence reports whether the element type is a sequence flow.
func (t ElementType) IsSequence() bool {
	switch t {
	case ElementTypeSequenceStandard, ElementTypeSequenceConditional, ElementTypeSequenceDefault:
		return true
	}
	return false
}

// IsEvent reports whether the element type is an event.
func (t ElementType) IsEvent() bool {
	switch t {
	case ElementTypeDefaultEvent, ElementTypeTimerEvent, ElementTypeMessageEvent:
		return true
	}
	return false
}
