package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloomreach-forms/internal/common/config"
	"bloomreach-forms/internal/common/database"
	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/consent"
	"bloomreach-forms/internal/submission"
)

// remoteStub records every outbound call by path so the step sequence can be
// asserted. Replies are keyed by path with a default 200 {"success": true}.
type remoteStub struct {
	mu      sync.Mutex
	calls   map[string]int
	bodies  map[string][]map[string]interface{}
	replies map[string]stubReply
	srv     *httptest.Server
}

type stubReply struct {
	status int
	body   string
}

func newRemoteStub() *remoteStub {
	s := &remoteStub{
		calls:   make(map[string]int),
		bodies:  make(map[string][]map[string]interface{}),
		replies: make(map[string]stubReply),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.bodies[r.URL.Path] = append(s.bodies[r.URL.Path], body)
		reply, ok := s.replies[r.URL.Path]
		s.mu.Unlock()

		if !ok {
			reply = stubReply{status: http.StatusOK, body: `{"success": true}`}
		}
		w.WriteHeader(reply.status)
		w.Write([]byte(reply.body))
	}))
	return s
}

func (s *remoteStub) reply(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[path] = stubReply{status: status, body: body}
}

func (s *remoteStub) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *remoteStub) lastBody(path string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	bodies := s.bodies[path]
	if len(bodies) == 0 {
		return nil
	}
	return bodies[len(bodies)-1]
}

const (
	eventsPath     = "/track/v2/projects/proj/customers/events"
	customersPath  = "/track/v2/projects/proj/customers"
	attributesPath = "/data/v2/projects/proj/customers/attributes"
)

func newTestRunner(t *testing.T, apiBase string) *Runner {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	cache := consent.NewCache(rdb, logger.NewNoOpLogger())

	loader := func() (*config.Config, error) {
		return &config.Config{
			Bloomreach: config.BloomreachConfig{
				APIBase:             apiBase,
				Project:             "proj",
				Token:               "tok",
				TimeoutSeconds:      3,
				ConsentCacheMinutes: 60,
				ConsentEventSchema:  "consent",
			},
		}, nil
	}
	return New(loader, cache, logger.NewNoOpLogger())
}

func testJob() *submission.Job {
	return &submission.Job{
		CustomerIDs: map[string]string{
			"email": "jane@example.com",
			"phone": "+15551234567",
		},
		EventType: "contact_forms",
		EventProperties: map[string]interface{}{
			"form_id": 123,
			"name":    "Jane Doe",
		},
		ProfileProperties: map[string]interface{}{
			"name": "Jane Doe",
		},
		ConsentKey: "newsletter",
		CreatedAt:  1700000000,
		RequestID:  "req-1",
	}
}

func TestRun_FullSequenceWithoutConsent(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": false}]}`)

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), testJob())

	assert.Equal(t, 1, stub.count(customersPath))
	assert.Equal(t, 1, stub.count(attributesPath))
	// Main event plus consent grant.
	assert.Equal(t, 2, stub.count(eventsPath))

	grant := stub.lastBody(eventsPath)
	assert.Equal(t, "consent", grant["event_type"])
	props := grant["properties"].(map[string]interface{})
	assert.Equal(t, "accept", props["action"])
	assert.Equal(t, "newsletter", props["category"])
	assert.Equal(t, "unlimited", props["valid_until"])
}

func TestRun_MainEventUsesEmailIdentityOnly(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": true}]}`)

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), testJob())

	event := stub.lastBody(eventsPath)
	ids := event["customer_ids"].(map[string]interface{})
	assert.Equal(t, "jane@example.com", ids["email"])
	assert.NotContains(t, ids, "phone")
	assert.Equal(t, float64(1700000000), event["timestamp"])

	// Profile update carries the full identity set.
	profile := stub.lastBody(customersPath)
	profileIDs := profile["customer_ids"].(map[string]interface{})
	assert.Equal(t, "+15551234567", profileIDs["phone"])
}

func TestRun_ConsentAlreadyHeldSkipsGrant(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": true}]}`)

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), testJob())

	assert.Equal(t, 1, stub.count(attributesPath))
	// Only the main event; no grant.
	assert.Equal(t, 1, stub.count(eventsPath))
}

func TestRun_SecondRunHitsConsentCache(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": false}]}`)

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), testJob())
	r.Run(context.Background(), testJob())

	// The grant succeeded on the first run and was cached; the second run
	// neither re-reads the attribute nor re-grants.
	assert.Equal(t, 1, stub.count(attributesPath))
	assert.Equal(t, 3, stub.count(eventsPath))
}

func TestRun_FailedGrantNotCachedAsHeld(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": false}]}`)
	stub.reply(eventsPath, http.StatusInternalServerError, `{}`)

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), testJob())
	r.Run(context.Background(), testJob())

	// "No consent" was cached, so the remote read happens once, but the grant
	// is retried on the second run because the failed write was never trusted.
	assert.Equal(t, 1, stub.count(attributesPath))
	assert.Equal(t, 4, stub.count(eventsPath))
}

func TestRun_ExplicitBodyFailureNotCachedAsHeld(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": false}]}`)
	stub.reply(eventsPath, http.StatusOK, `{"success": false, "errors": ["rejected"]}`)

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), testJob())
	r.Run(context.Background(), testJob())

	// 2xx with an explicit failure flag still counts as not granted.
	assert.Equal(t, 4, stub.count(eventsPath))
}

func TestRun_UnparseableAttributeReplyMeansNoConsent(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `<html>gateway error</html>`)

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), testJob())

	// Unreadable reply resolves to "no consent" and the grant is attempted.
	assert.Equal(t, 2, stub.count(eventsPath))
}

func TestRun_NoConsentKeySkipsResolution(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()

	job := testJob()
	job.ConsentKey = ""

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), job)

	assert.Equal(t, 0, stub.count(attributesPath))
	assert.Equal(t, 1, stub.count(eventsPath))
}

func TestRun_NoProfilePropertiesSkipsUpdate(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": true}]}`)

	job := testJob()
	job.ProfileProperties = nil

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), job)

	assert.Equal(t, 0, stub.count(customersPath))
	assert.Equal(t, 1, stub.count(eventsPath))
}

func TestRun_ProfileUpdateFailureDoesNotBlockEvent(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(customersPath, http.StatusBadGateway, `{}`)
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": true}]}`)

	r := newTestRunner(t, stub.srv.URL)
	r.Run(context.Background(), testJob())

	assert.Equal(t, 1, stub.count(eventsPath))
}

func TestRun_MissingCredentialsAbortsSilently(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()

	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	cache := consent.NewCache(rdb, logger.NewNoOpLogger())

	loader := func() (*config.Config, error) {
		return &config.Config{
			Bloomreach: config.BloomreachConfig{APIBase: stub.srv.URL},
		}, nil
	}
	r := New(loader, cache, logger.NewNoOpLogger())
	r.Run(context.Background(), testJob())

	assert.Equal(t, 0, stub.count(eventsPath))
	assert.Equal(t, 0, stub.count(customersPath))
}

func TestRun_LegacyConsentSchema(t *testing.T) {
	stub := newRemoteStub()
	defer stub.srv.Close()
	stub.reply(attributesPath, http.StatusOK, `{"results": [{"success": true, "value": false}]}`)

	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	cache := consent.NewCache(rdb, logger.NewNoOpLogger())

	loader := func() (*config.Config, error) {
		return &config.Config{
			Bloomreach: config.BloomreachConfig{
				APIBase:             stub.srv.URL,
				Project:             "proj",
				Token:               "tok",
				TimeoutSeconds:      3,
				ConsentCacheMinutes: 60,
				ConsentEventSchema:  "consent_granted",
			},
		}, nil
	}
	r := New(loader, cache, logger.NewNoOpLogger())
	r.Run(context.Background(), testJob())

	grant := stub.lastBody(eventsPath)
	assert.Equal(t, "consent_granted", grant["event_type"])
	props := grant["properties"].(map[string]interface{})
	assert.Equal(t, "newsletter", props["consent_key"])
	assert.Equal(t, "cf7_form", props["method"])
}

func TestRun_NeverPanics(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := &database.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	cache := consent.NewCache(rdb, logger.NewNoOpLogger())

	loader := func() (*config.Config, error) {
		return nil, nil // deliberately broken loader
	}
	r := New(loader, cache, logger.NewNoOpLogger())

	require.NotPanics(t, func() {
		r.Run(context.Background(), testJob())
	})
}

func TestRun_TransportFailureFailsSoft(t *testing.T) {
	stub := newRemoteStub()
	stub.srv.Close()

	r := newTestRunner(t, stub.srv.URL)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), testJob())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("run did not finish after transport failures")
	}
}
