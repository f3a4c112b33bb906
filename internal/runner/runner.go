// Package runner executes one deferred submission job: profile update, main
// event, then consent resolution. Steps fail soft; each outbound call is an
// independent side effect on an eventually-consistent remote, so a failed
// step never blocks the ones after it.
package runner

import (
	"context"
	"time"

	"bloomreach-forms/internal/bloomreach"
	"bloomreach-forms/internal/common/config"
	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/common/metrics"
	"bloomreach-forms/internal/consent"
	"bloomreach-forms/internal/submission"
)

// ConfigLoader returns the current configuration. The runner loads it once
// per job execution so settings changed between enqueue and run apply
// atomically, never mid-flight.
type ConfigLoader func() (*config.Config, error)

type Runner struct {
	loadConfig ConfigLoader
	cache      *consent.Cache
	logger     logger.Logger
}

func New(loadConfig ConfigLoader, cache *consent.Cache, log logger.Logger) *Runner {
	return &Runner{
		loadConfig: loadConfig,
		cache:      cache,
		logger:     log,
	}
}

// Run executes the job's step sequence. It never panics through to the
// caller and never returns an error: every failure path ends in a logged
// no-op, and the queue's redelivery policy, if any, is external.
func (r *Runner) Run(ctx context.Context, job *submission.Job) {
	start := time.Now()
	defer func() {
		metrics.JobDuration.Observe(time.Since(start).Seconds())
		if rec := recover(); rec != nil {
			metrics.JobsAborted.WithLabelValues("panic").Inc()
			r.logger.Error("Job runner panicked", map[string]interface{}{
				"requestId": job.RequestID,
				"panic":     rec,
			})
		}
	}()

	log := r.logger.WithFields(map[string]interface{}{
		"requestId": job.RequestID,
		"eventType": job.EventType,
		"email":     logger.MaskEmail(job.Email()),
	})

	cfg, err := r.loadConfig()
	if err != nil {
		metrics.JobsAborted.WithLabelValues("config_error").Inc()
		log.Error("Failed to load configuration for job", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	// Credential guard: configuration may have changed between enqueue and
	// run. Without credentials no step can be taken.
	if !cfg.Bloomreach.Configured() {
		metrics.JobsAborted.WithLabelValues("config_missing").Inc()
		log.Debug("Credentials missing at execution time, aborting job", nil)
		return
	}

	client := bloomreach.NewClient(
		cfg.Bloomreach.APIBase,
		cfg.Bloomreach.Project,
		cfg.Bloomreach.Token,
		cfg.Bloomreach.Timeout(),
		r.logger,
	)

	// Step 1: profile update. Failure must not prevent the event from firing.
	if len(job.ProfileProperties) > 0 {
		ids := bloomreach.CustomerIDs(job.CustomerIDs)
		if resp := client.UpdateCustomer(ctx, ids, job.ProfileProperties); !resp.OK() {
			log.Warn("Profile update failed, continuing", map[string]interface{}{
				"status": resp.StatusCode,
			})
		}
	}

	// Step 2: main event, email identity only.
	event := bloomreach.Event{
		CustomerIDs: bloomreach.CustomerIDs{"email": job.Email()},
		EventType:   job.EventType,
		Properties:  job.EventProperties,
		Timestamp:   job.CreatedAt,
	}
	if resp := client.SendEvent(ctx, event); !resp.OK() {
		log.Warn("Main event failed, continuing", map[string]interface{}{
			"status": resp.StatusCode,
		})
	}

	// Step 3: consent deduplication.
	if job.ConsentKey != "" {
		r.resolveConsent(ctx, client, cfg, job, log)
	}

	metrics.JobsCompleted.Inc()
	log.Debug("Job completed", nil)
}

// resolveConsent pushes a consent-grant event only when the customer doesn't
// already hold the consent, using the cache to avoid redundant remote reads.
func (r *Runner) resolveConsent(ctx context.Context, client *bloomreach.Client, cfg *config.Config, job *submission.Job, log logger.Logger) {
	email := job.Email()
	ttl := cfg.Bloomreach.ConsentCacheTTL()

	has, hit := r.cache.Get(ctx, email, job.ConsentKey)
	if !hit {
		has = r.readRemoteConsent(ctx, client, email, job.ConsentKey, log)
	}

	// Cache the resolved value either way; a false answer is a valid
	// time-bounded result that suppresses re-checks until the TTL expires.
	r.cache.Set(ctx, email, job.ConsentKey, has, ttl)

	if has {
		log.Debug("Consent already granted, skipping push", map[string]interface{}{
			"consentKey": job.ConsentKey,
			"cached":     hit,
		})
		return
	}

	resp := client.SendEvent(ctx, grantEvent(cfg.Bloomreach.ConsentEventSchema, job.ConsentKey, email))

	// Trust the write only on 2xx with no explicit failure flag in the body.
	granted := false
	if resp.OK() {
		track, err := bloomreach.DecodeTrack(resp)
		granted = err != nil || !track.ExplicitFailure()
	}
	if granted {
		r.cache.Set(ctx, email, job.ConsentKey, true, ttl)
		log.Debug("Consent grant pushed", map[string]interface{}{
			"consentKey": job.ConsentKey,
		})
	} else {
		log.Warn("Consent grant not confirmed", map[string]interface{}{
			"consentKey": job.ConsentKey,
			"status":     resp.StatusCode,
		})
	}
}

// readRemoteConsent interprets the attribute read strictly: the result entry
// must be explicitly successful and carry a boolean before it is trusted.
// Any other shape means "no consent".
func (r *Runner) readRemoteConsent(ctx context.Context, client *bloomreach.Client, email, consentKey string, log logger.Logger) bool {
	resp := client.ReadConsent(ctx, email, consentKey)
	if !resp.OK() {
		return false
	}
	attrs, err := bloomreach.DecodeAttributes(resp)
	if err != nil {
		log.Debug("Consent read reply unparseable, assuming no consent", map[string]interface{}{
			"consentKey": consentKey,
			"error":      err.Error(),
		})
		return false
	}
	if len(attrs.Results) == 0 || !attrs.Results[0].Success {
		return false
	}
	value, err := attrs.Results[0].BoolValue()
	if err != nil {
		return false
	}
	return value
}

// grantEvent builds the consent-grant event in the configured schema. The
// remote contract changed across plugin generations, so both shapes remain
// supported.
func grantEvent(schema, consentKey, email string) bloomreach.Event {
	ids := bloomreach.CustomerIDs{"email": email}
	if schema == "consent_granted" {
		return bloomreach.Event{
			CustomerIDs: ids,
			EventType:   "consent_granted",
			Properties: map[string]interface{}{
				"consent_key": consentKey,
				"method":      "cf7_form",
				"source":      "website",
			},
			Timestamp: time.Now().Unix(),
		}
	}
	return bloomreach.Event{
		CustomerIDs: ids,
		EventType:   "consent",
		Properties: map[string]interface{}{
			"action":      "accept",
			"category":    consentKey,
			"valid_until": "unlimited",
			"source":      "public_api",
		},
		Timestamp: time.Now().Unix(),
	}
}
