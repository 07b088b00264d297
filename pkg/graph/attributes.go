package graph

// Well-known element attribute keys of a process definition.
const (
	// AttrTimeDuration is an ISO-8601 duration offset for timer events.
	AttrTimeDuration = "timeDuration"
	// AttrTimeCycle is a cron expression for cyclic timer events.
	AttrTimeCycle = "timeCycle"
	// AttrStart marks an event element as a process start event.
	AttrStart = "start"

	// AttrTemplate is a template source used for parameter preparation.
	AttrTemplate = "template"
	// AttrRuleset names a business ruleset, used both by tasks and by
	// conditional sequence flows.
	AttrRuleset = "ruleset"
	// AttrContextKeys lists the instance context keys an evaluation needs.
	AttrContextKeys = "contextKeys"
	// AttrParamsKey is where prepared task parameters are stored.
	AttrParamsKey = "paramsKey"
	// AttrResultKey is where a task execution result is stored.
	AttrResultKey = "resultKey"
	// AttrAction names the external action of a service task.
	AttrAction = "action"
)

// BoolAttribute returns a boolean attribute, false when absent.
func (e Element) BoolAttribute(key string) bool {
	b, _ := e.Attributes[key].(bool)
	return b
}
