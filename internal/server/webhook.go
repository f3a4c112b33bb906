// Package server exposes the inbound HTTP surface: the form-submission
// webhook, health, and metrics.
package server

import (
	"encoding/json"
	"net/http"

	apperrors "bloomreach-forms/internal/common/errors"
	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/common/validation"
	"bloomreach-forms/internal/submission"
)

// submissionSchema validates the webhook payload before any handling. Field
// values may arrive as a string or a list of strings; CF7 posts both.
var submissionSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"form_id", "fields"},
	"properties": map[string]interface{}{
		"form_id":    map[string]interface{}{"type": "integer", "minimum": 1},
		"form_title": map[string]interface{}{"type": "string"},
		"fields": map[string]interface{}{
			"type": "object",
			"additionalProperties": map[string]interface{}{
				"oneOf": []interface{}{
					map[string]interface{}{"type": "string"},
					map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
			},
		},
		"meta": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"source_url": map[string]interface{}{"type": "string"},
				"user_agent": map[string]interface{}{"type": "string"},
				"remote_ip":  map[string]interface{}{"type": "string"},
			},
		},
	},
}

type WebhookHandler struct {
	submissions *submission.Handler
	logger      logger.Logger
}

func NewWebhookHandler(submissions *submission.Handler, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{submissions: submissions, logger: log}
}

func (h *WebhookHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var doc map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "invalid_json"})
		return
	}

	if err := validation.Validate(submissionSchema, doc); err != nil {
		h.logger.Debug("Rejected webhook payload", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "invalid_payload"})
		return
	}

	n := buildNotification(doc, r)

	job, err := h.submissions.HandleSubmission(r.Context(), n)
	if err != nil {
		if apperrors.IsSilentSkip(err) {
			// Failed precondition: a no-op, not a failure.
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "skipped"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"request_id": job.RequestID,
	})
}

func buildNotification(doc map[string]interface{}, r *http.Request) *submission.Notification {
	n := &submission.Notification{
		Fields:   make(map[string][]string),
		RemoteIP: r.RemoteAddr,
	}

	if v, ok := doc["form_id"].(float64); ok {
		n.FormID = int(v)
	}
	if v, ok := doc["form_title"].(string); ok {
		n.FormTitle = v
	}

	if fields, ok := doc["fields"].(map[string]interface{}); ok {
		for name, raw := range fields {
			switch v := raw.(type) {
			case string:
				n.Fields[name] = []string{v}
			case []interface{}:
				values := make([]string, 0, len(v))
				for _, item := range v {
					if s, ok := item.(string); ok {
						values = append(values, s)
					}
				}
				n.Fields[name] = values
			}
		}
	}

	if meta, ok := doc["meta"].(map[string]interface{}); ok {
		if v, ok := meta["source_url"].(string); ok {
			n.SourceURL = v
		}
		if v, ok := meta["user_agent"].(string); ok {
			n.UserAgent = v
		}
		if v, ok := meta["remote_ip"].(string); ok && v != "" {
			n.RemoteIP = v
		}
	}

	return n
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
