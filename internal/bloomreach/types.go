package bloomreach

import (
	"encoding/json"
	"fmt"
)

// Endpoint names used for logging and metrics labels.
const (
	EndpointEvents     = "events"
	EndpointCustomers  = "customers"
	EndpointAttributes = "attributes"
)

// CustomerIDs identifies a customer to the engagement platform. Email is
// always present; phone is added when extraction succeeds.
type CustomerIDs map[string]string

// Event is the payload for the event-ingestion endpoint.
type Event struct {
	CustomerIDs CustomerIDs            `json:"customer_ids"`
	EventType   string                 `json:"event_type"`
	Properties  map[string]interface{} `json:"properties"`
	Timestamp   int64                  `json:"timestamp"`
}

type customerUpdate struct {
	CustomerIDs CustomerIDs            `json:"customer_ids"`
	Properties  map[string]interface{} `json:"properties"`
}

type attributeQuery struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Mode     string `json:"mode"`
}

type attributesRequest struct {
	CustomerIDs CustomerIDs      `json:"customer_ids"`
	Attributes  []attributeQuery `json:"attributes"`
}

// TrackResult is the reply envelope of the track endpoints (event ingestion
// and profile update). Success is a pointer so an absent flag can be told
// apart from an explicit false.
type TrackResult struct {
	Success *bool    `json:"success"`
	Errors  []string `json:"errors"`
}

// ExplicitFailure reports whether the body explicitly marks the call failed.
// An empty or unrecognized body is not an explicit failure.
func (t *TrackResult) ExplicitFailure() bool {
	if t == nil {
		return false
	}
	return t.Success != nil && !*t.Success
}

// AttributeResult is one entry of an attribute-read reply. The boolean value
// is only trusted when the entry is explicitly marked successful.
type AttributeResult struct {
	Success bool            `json:"success"`
	Value   json.RawMessage `json:"value"`
}

// BoolValue decodes the attribute value as a boolean. Any other shape is an
// error; callers treat it as "no consent".
func (a AttributeResult) BoolValue() (bool, error) {
	var v bool
	if err := json.Unmarshal(a.Value, &v); err != nil {
		return false, fmt.Errorf("attribute value is not a boolean: %w", err)
	}
	return v, nil
}

// AttributesResult is the decoded reply of the attribute-read endpoint.
type AttributesResult struct {
	Results []AttributeResult `json:"results"`
}

// DecodeTrack parses a track-endpoint reply body. A transport failure or an
// undecodable body yields an error; the caller already has the raw envelope
// for logging.
func DecodeTrack(r *Response) (*TrackResult, error) {
	if r.TransportErr != nil {
		return nil, r.TransportErr
	}
	if len(r.RawBody) == 0 {
		return &TrackResult{}, nil
	}
	var out TrackResult
	if err := json.Unmarshal(r.RawBody, &out); err != nil {
		return nil, fmt.Errorf("unparseable track reply: %w", err)
	}
	return &out, nil
}

// DecodeAttributes parses an attribute-read reply body.
func DecodeAttributes(r *Response) (*AttributesResult, error) {
	if r.TransportErr != nil {
		return nil, r.TransportErr
	}
	var out AttributesResult
	if err := json.Unmarshal(r.RawBody, &out); err != nil {
		return nil, fmt.Errorf("unparseable attributes reply: %w", err)
	}
	return &out, nil
}
