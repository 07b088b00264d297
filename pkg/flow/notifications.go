package flow

// Notification names are the wire contract of the flow core. Every payload
// is `{token}` unless noted otherwise.
const (
	NotificationTokenEmit    = "flow.token.emit"
	NotificationTokenConsume = "flow.token.consume"

	NotificationEventActivated = "flow.event.activated"
	NotificationEventScheduled = "flow.event.scheduled"
	// NotificationEventTimerInit carries a TimerInit element descriptor,
	// not a token.
	NotificationEventTimerInit = "flow.event.timer.init"

	NotificationActivityActivated = "flow.activity.activated"
	NotificationActivityReady     = "flow.activity.ready"

	NotificationGatewayActivated = "flow.gateway.activated"
	NotificationGatewayReady     = "flow.gateway.ready"
	NotificationGatewayCallback  = "flow.gateway.eventBased.callback"

	NotificationSequenceActivated = "flow.sequence.activated"
	NotificationSequenceEvaluated = "flow.sequence.evaluated"

	NotificationNext = "flow.next"

	NotificationProcessActivated = "flow.process.activated"
	NotificationProcessCompleted = "flow.process.completed"

	// NotificationTimerSchedule carries a timer.ScheduleRequest payload
	// addressed to the timer collaborator.
	NotificationTimerSchedule = "flow.timer.schedule"

	// NotificationInstanceCreated carries an InstanceCreated payload.
	NotificationInstanceCreated = "flow.instance.created"
	// NotificationInstanceCompleted carries an InstanceCompleted payload.
	NotificationInstanceCompleted = "flow.instance.completed"
)

// InstanceCreated announces a freshly minted process instance, either from a
// cyclic start timer or from an external event without an instance scope.
type InstanceCreated struct {
	OwnerID    string `json:"ownerId"`
	ProcessID  string `json:"processId"`
	InstanceID string `json:"instanceId"`
}

// InstanceCompleted announces that an instance reached an element without
// outgoing flows.
type InstanceCompleted struct {
	InstanceID string `json:"instanceId"`
}

// TimerInit describes a start event whose cron timer should be armed. It is
// published at definition deploy time by the bootstrapping layer.
type TimerInit struct {
	OwnerID   string `json:"ownerId"`
	ProcessID string `json:"processId"`
	VersionID string `json:"versionId,omitempty"`
	ElementID string `json:"elementId"`
}
