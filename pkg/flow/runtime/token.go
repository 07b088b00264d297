package runtime

// Token is the single unit of execution state travelling between the flow
// handlers. A token is immutable once emitted: every transition consumes the
// old token on the bus and emits a fresh value built with one of the With*
// methods, never an in-place mutation.
type Token struct {
	ProcessID  string     `json:"processId"`
	VersionID  string     `json:"versionId,omitempty"`
	InstanceID string     `json:"instanceId"`
	ElementID  string     `json:"elementId,omitempty"`
	Type       ElementType `json:"type"`
	Status     Status     `json:"status"`
	User       User       `json:"user"`
	OwnerID    string     `json:"ownerId"`
	Attributes Attributes `json:"attributes"`
}

// User is the acting principal. It is propagated unchanged through the whole
// token chain for audit and downstream authorization.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Callback marks a token as belonging to an event-based-gateway race: the
// next occurrence/completion must be published to Event instead of the
// default emit channel.
type Callback struct {
	Event     string `json:"event"`
	ElementID string `json:"elementId"`
}

// Attributes carry transition-specific metadata. LastElementID is the
// provenance of a token produced by a fan-out (which element just completed)
// and is required for parallel-gateway joins. DefaultSequence and WaitFor
// wire the conditional/default sequence fallback. Params holds
// element-specific execution parameters.
type Attributes struct {
	LastElementID   string         `json:"lastElementId,omitempty"`
	Cyclic          bool           `json:"cyclic,omitempty"`
	Callback        *Callback      `json:"callback,omitempty"`
	DefaultSequence string         `json:"defaultSequence,omitempty"`
	WaitFor         []string       `json:"waitFor,omitempty"`
	Params          map[string]any `json:"params,omitempty"`
}

// With returns a copy of the token with the given status.
func (t Token) With(status Status) Token {
	t.Status = status
	return t
}

// WithAttributes returns a copy of the token with the attributes replaced.
func (t Token) WithAttributes(attrs Attributes) Token {
	t.Attributes = attrs
	return t
}

// WithInstance returns a copy of the token bound to another process instance.
func (t Token) WithInstance(instanceID string) Token {
	t.InstanceID = instanceID
	return t
}

// WithElement returns a copy of the token positioned at another graph element.
func (t Token) WithElement(elementID string, elementType ElementType) Token {
	t.ElementID = elementID
	t.Type = elementType
	return t
}
