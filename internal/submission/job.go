// Package submission turns an inbound form notification into the deferred
// unit of work that the runner later executes.
package submission

// Job is the unit of deferred work built once per accepted submission. It is
// immutable after creation; the runner only reads it. The queue retains the
// serialized payload verbatim between enqueue and delivery.
type Job struct {
	CustomerIDs       map[string]string      `json:"customer_ids"`
	EventType         string                 `json:"event_type"`
	EventProperties   map[string]interface{} `json:"event_properties"`
	ProfileProperties map[string]interface{} `json:"profile_properties"`
	ConsentKey        string                 `json:"consent_key,omitempty"`
	CreatedAt         int64                  `json:"created_at"`
	RequestID         string                 `json:"request_id"`
}

// Email returns the customer's email identity.
func (j *Job) Email() string {
	return j.CustomerIDs["email"]
}
