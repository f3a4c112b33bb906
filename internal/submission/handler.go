package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bloomreach-forms/internal/common/config"
	"bloomreach-forms/internal/common/errors"
	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/common/metrics"
	"bloomreach-forms/internal/mapping"

	"github.com/google/uuid"
)

// Notification is the synchronous "form submitted" event delivered by the
// form plugin, with the posted field values and request diagnostics.
type Notification struct {
	FormID    int
	FormTitle string
	Fields    map[string][]string
	SourceURL string
	UserAgent string
	RemoteIP  string
}

// Scheduler delivers a job payload once, roughly after the given delay. The
// queue's redelivery policy is its own business.
type Scheduler interface {
	Enqueue(ctx context.Context, job *Job, delay time.Duration) error
}

// Handler accepts submissions on the web request path. It performs no network
// I/O toward the engagement platform; all outbound effects are deferred
// through the scheduler.
type Handler struct {
	cfg       *config.Config
	scheduler Scheduler
	logger    logger.Logger
}

func NewHandler(cfg *config.Config, scheduler Scheduler, log logger.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		scheduler: scheduler,
		logger:    log,
	}
}

// HandleSubmission builds and enqueues the deferred job for one submission.
// Precondition failures return a silent-skip error (errors.IsSilentSkip);
// they are no-ops, not failures, and are never logged above debug level.
func (h *Handler) HandleSubmission(ctx context.Context, n *Notification) (*Job, error) {
	if !h.cfg.Bloomreach.Configured() {
		metrics.SubmissionsSkipped.WithLabelValues("config_missing").Inc()
		return nil, errors.NewConfigMissingError("bloomreach project or token not configured")
	}

	form, ok := mapping.Find(h.cfg.Forms, n.FormID)
	if !ok {
		metrics.SubmissionsSkipped.WithLabelValues("mapping_not_found").Inc()
		return nil, errors.NewMappingNotFoundError(n.FormID)
	}

	if len(n.Fields) == 0 {
		metrics.SubmissionsSkipped.WithLabelValues("no_snapshot").Inc()
		return nil, errors.NewPayloadInvalidError("submission field snapshot is empty")
	}

	email := strings.TrimSpace(firstValue(n.Fields[form.EmailField]))
	if err := validateEmail(email); err != nil {
		metrics.SubmissionsSkipped.WithLabelValues("identity_missing").Inc()
		return nil, errors.NewIdentityMissingError(form.EmailField)
	}

	job := h.buildJob(n, form, email)

	if err := h.scheduler.Enqueue(ctx, job, h.cfg.Queue.SubmitDelay()); err != nil {
		h.logger.Error("Failed to enqueue submission job", map[string]interface{}{
			"requestId": job.RequestID,
			"formId":    n.FormID,
			"error":     err.Error(),
		})
		return nil, errors.NewQueueFailedError(err)
	}

	metrics.JobsEnqueued.Inc()
	h.logger.Debug("Submission job enqueued", map[string]interface{}{
		"requestId": job.RequestID,
		"formId":    n.FormID,
		"email":     logger.MaskEmail(email),
		"eventType": job.EventType,
	})

	return job, nil
}

func (h *Handler) buildJob(n *Notification, form mapping.FormMapping, email string) *Job {
	eventProps := map[string]interface{}{
		"form_id":    n.FormID,
		"form_title": n.FormTitle,
		"source_url": n.SourceURL,
		"user_agent": n.UserAgent,
		"ip":         n.RemoteIP,
		"site":       h.cfg.App.SiteURL,
	}

	profileProps := make(map[string]interface{})
	for _, pair := range form.Fields.Pairs() {
		values, ok := n.Fields[pair.Source]
		if !ok {
			continue
		}
		value := mapping.SanitizeText(strings.Join(values, ", "))
		eventProps[pair.Dest] = value
		profileProps[pair.Dest] = value
	}

	ids := map[string]string{"email": email}
	if phone := ExtractPhone(n.Fields, form); phone != "" {
		ids["phone"] = phone
	}

	return &Job{
		CustomerIDs:       ids,
		EventType:         form.EventType,
		EventProperties:   eventProps,
		ProfileProperties: profileProps,
		ConsentKey:        form.ConsentKey,
		CreatedAt:         time.Now().Unix(),
		RequestID:         uuid.NewString(),
	}
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) == 0 {
		return fmt.Errorf("invalid email format")
	}
	if !strings.Contains(parts[1], ".") {
		return fmt.Errorf("invalid email domain")
	}
	return nil
}
