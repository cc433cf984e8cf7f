package domain

// TriggerRule pairs an exact match text with the reply sent back when an
// inbound message equals it. Match is unique within one account's rule set;
// storing the same match again replaces the reply.
type TriggerRule struct {
	Match string `json:"match"`
	Reply string `json:"reply"`
}

// Registration statuses returned to API callers.
const (
	StatusCodeSent   = "code_sent"
	StatusRegistered = "registered"
)
