package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xokvictor/polar-mcp/pkg/auth"
	"github.com/xokvictor/polar-mcp/pkg/polar"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
}

// fakeAPI records every request and replies from a path-keyed response map.
type fakeAPI struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]func(w http.ResponseWriter, r *http.Request)
	server    *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{responses: map[string]func(w http.ResponseWriter, r *http.Request){}}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.requests = append(api.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
		})
		handler := api.responses[r.Method+" "+r.URL.Path]
		api.mu.Unlock()
		if handler == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (f *fakeAPI) respondJSON(method, path, body string) {
	f.responses[method+" "+path] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func (f *fakeAPI) respondStatus(method, path string, status int) {
	f.responses[method+" "+path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func newTestDispatcher(api *fakeAPI) *Dispatcher {
	return NewDispatcher(polar.NewWithBaseURL(api.server.URL), zerolog.Nop())
}

var testGrant = auth.Grant{AccessToken: "test-token", UserID: 42}

func TestExecuteSleepByDate(t *testing.T) {
	api := newFakeAPI(t)
	api.respondJSON("GET", "/users/sleep/2024-01-15", `{"nights":[{"date":"2024-01-15","sleep_score":82}]}`)

	result := newTestDispatcher(api).Execute(context.Background(), "get_sleep",
		map[string]any{"date": "2024-01-15"}, testGrant)

	require.Nil(t, result.Err)
	raw, ok := result.Payload.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"nights":[{"date":"2024-01-15","sleep_score":82}]}`, string(raw))

	requests := api.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "/users/sleep/2024-01-15", requests[0].Path)
	assert.Empty(t, requests[0].Query)
}

func TestExecuteSleepWithoutDate(t *testing.T) {
	api := newFakeAPI(t)
	api.respondJSON("GET", "/users/sleep", `{"nights":[]}`)

	result := newTestDispatcher(api).Execute(context.Background(), "get_sleep", nil, testGrant)

	require.Nil(t, result.Err)
	requests := api.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "/users/sleep", requests[0].Path)
}

func TestExecuteNightlyRechargeRange(t *testing.T) {
	api := newFakeAPI(t)
	api.respondJSON("GET", "/users/nightly-recharge", `{"recharges":[]}`)

	result := newTestDispatcher(api).Execute(context.Background(), "get_nightly_recharge_range",
		map[string]any{"from": "2024-01-01", "to": "2024-01-31"}, testGrant)

	require.Nil(t, result.Err)
	requests := api.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "from=2024-01-01&to=2024-01-31", requests[0].Query)
}

func TestRangeToolsRejectMissingBounds(t *testing.T) {
	rangeTools := []string{
		"get_nightly_recharge_range",
		"get_sleep_range",
		"get_activities_range",
		"get_activity_samples_range",
		"get_continuous_heart_rate_range",
		"get_cardio_load_range",
		"get_body_temperature",
		"get_skin_temperature",
		"get_spo2",
	}
	argCases := []map[string]any{
		nil,
		{"from": "2024-01-01"},
		{"to": "2024-01-31"},
	}

	api := newFakeAPI(t)
	d := newTestDispatcher(api)
	for _, tool := range rangeTools {
		for _, args := range argCases {
			result := d.Execute(context.Background(), tool, args, testGrant)
			require.NotNil(t, result.Err, "tool %s with args %v", tool, args)
			assert.Equal(t, ErrBadArgument, result.Err.Kind, "tool %s", tool)
		}
	}

	// Validation failures must never reach the upstream API.
	assert.Empty(t, api.recorded())
}

func TestBooleanFlagsSerializedOnlyWhenTrue(t *testing.T) {
	cases := []struct {
		name  string
		args  map[string]any
		query string
	}{
		{"both absent", nil, ""},
		{"both false", map[string]any{"samples": false, "zones": false}, ""},
		{"samples true", map[string]any{"samples": true}, "samples=true"},
		{"both true", map[string]any{"samples": true, "zones": true}, "samples=true&zones=true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.respondJSON("GET", "/exercises", `[]`)

			result := newTestDispatcher(api).Execute(context.Background(), "list_exercises", tc.args, testGrant)

			require.Nil(t, result.Err)
			requests := api.recorded()
			require.Len(t, requests, 1)
			assert.Equal(t, tc.query, requests[0].Query)
		})
	}
}

func TestExecuteUserInfoUsesGrantUserID(t *testing.T) {
	api := newFakeAPI(t)
	api.respondJSON("GET", "/users/42", `{"polar-user-id":42,"first-name":"Maija"}`)

	result := newTestDispatcher(api).Execute(context.Background(), "get_user_info", nil, testGrant)

	require.Nil(t, result.Err)
	requests := api.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "/users/42", requests[0].Path)
}

func TestExecuteUserInfoWithoutUserID(t *testing.T) {
	api := newFakeAPI(t)

	result := newTestDispatcher(api).Execute(context.Background(), "get_user_info", nil,
		auth.Grant{AccessToken: "test-token"})

	require.NotNil(t, result.Err)
	assert.Equal(t, ErrConfiguration, result.Err.Kind)
	assert.Empty(t, api.recorded())
}

func TestExecuteCardioLoadPeriod(t *testing.T) {
	api := newFakeAPI(t)
	api.respondJSON("GET", "/users/cardio-load/period/days/28", `[]`)

	result := newTestDispatcher(api).Execute(context.Background(), "get_cardio_load_period",
		map[string]any{"unit": "days", "count": float64(28)}, testGrant)

	require.Nil(t, result.Err)
	requests := api.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "/users/cardio-load/period/days/28", requests[0].Path)
}

func TestExecuteCardioLoadPeriodRejectsBadArguments(t *testing.T) {
	cases := []map[string]any{
		nil,
		{"unit": "weeks", "count": float64(4)},
		{"unit": "days"},
		{"unit": "days", "count": float64(0)},
		{"unit": "days", "count": float64(-3)},
	}

	api := newFakeAPI(t)
	d := newTestDispatcher(api)
	for _, args := range cases {
		result := d.Execute(context.Background(), "get_cardio_load_period", args, testGrant)
		require.NotNil(t, result.Err, "args %v", args)
		assert.Equal(t, ErrBadArgument, result.Err.Kind)
	}
	assert.Empty(t, api.recorded())
}

func TestExecuteExerciseExport(t *testing.T) {
	api := newFakeAPI(t)
	api.respondJSON("GET", "/exercises/abc123/tcx", `{"data":"..."}`)

	result := newTestDispatcher(api).Execute(context.Background(), "get_exercise_tcx",
		map[string]any{"exercise_id": "abc123"}, testGrant)

	require.Nil(t, result.Err)
	requests := api.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "/exercises/abc123/tcx", requests[0].Path)
}

func TestExecuteExerciseRequiresID(t *testing.T) {
	api := newFakeAPI(t)
	d := newTestDispatcher(api)
	for _, tool := range []string{"get_exercise", "get_exercise_fit", "get_exercise_tcx", "get_exercise_gpx"} {
		result := d.Execute(context.Background(), tool, nil, testGrant)
		require.NotNil(t, result.Err, "tool %s", tool)
		assert.Equal(t, ErrBadArgument, result.Err.Kind)
	}
	assert.Empty(t, api.recorded())
}

func TestExecuteUpstreamError(t *testing.T) {
	api := newFakeAPI(t)
	api.responses["GET /users/sleep"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded"}`))
	}

	result := newTestDispatcher(api).Execute(context.Background(), "get_sleep", nil, testGrant)

	require.NotNil(t, result.Err)
	assert.Equal(t, ErrUpstream, result.Err.Kind)
	assert.Equal(t, http.StatusTooManyRequests, result.Err.Status)
	assert.Contains(t, result.Err.Message, "rate limit exceeded")
}

func TestExecuteUnknownTool(t *testing.T) {
	api := newFakeAPI(t)

	result := newTestDispatcher(api).Execute(context.Background(), "get_mystery_data", nil, testGrant)

	require.NotNil(t, result.Err)
	assert.Equal(t, ErrInternal, result.Err.Kind)
	assert.Empty(t, api.recorded())
}

func TestPhysicalInfoFetchesAndCommits(t *testing.T) {
	api := newFakeAPI(t)
	base := api.server.URL
	api.respondJSON("POST", "/users/42/physical-information-transactions",
		`{"transaction-id":7,"resource-uri":"`+base+`/v3/users/42/physical-information-transactions/7"}`)
	api.respondJSON("GET", "/users/42/physical-information-transactions/7",
		`{"physical-informations":["`+base+`/v3/users/42/physical-information-transactions/7/physical-informations/100","`+base+`/v3/users/42/physical-information-transactions/7/physical-informations/101"]}`)
	api.respondJSON("GET", "/users/42/physical-information-transactions/7/physical-informations/100", `{"id":100,"weight":72.5}`)
	api.respondJSON("GET", "/users/42/physical-information-transactions/7/physical-informations/101", `{"id":101,"weight":72.1}`)
	api.respondStatus("PUT", "/users/42/physical-information-transactions/7", http.StatusOK)

	result := newTestDispatcher(api).Execute(context.Background(), "get_physical_info", nil, testGrant)

	require.Nil(t, result.Err)
	items, ok := result.Payload.([]json.RawMessage)
	require.True(t, ok)
	assert.Len(t, items, 2)

	requests := api.recorded()
	var commits int
	for _, req := range requests {
		if req.Method == http.MethodPut {
			commits++
		}
	}
	assert.Equal(t, 1, commits, "transaction must be committed exactly once")
	assert.Equal(t, http.MethodPut, requests[len(requests)-1].Method, "commit must come last")
}

func TestPhysicalInfoSingleResourceUnwrapped(t *testing.T) {
	api := newFakeAPI(t)
	base := api.server.URL
	api.respondJSON("POST", "/users/42/physical-information-transactions", `{"transaction-id":8}`)
	api.respondJSON("GET", "/users/42/physical-information-transactions/8",
		`{"physical-informations":["`+base+`/v3/users/42/physical-information-transactions/8/physical-informations/200"]}`)
	api.respondJSON("GET", "/users/42/physical-information-transactions/8/physical-informations/200", `{"id":200,"weight":80}`)
	api.respondStatus("PUT", "/users/42/physical-information-transactions/8", http.StatusOK)

	result := newTestDispatcher(api).Execute(context.Background(), "get_physical_info", nil, testGrant)

	require.Nil(t, result.Err)
	raw, ok := result.Payload.(json.RawMessage)
	require.True(t, ok, "single resource is returned unwrapped, got %T", result.Payload)
	assert.JSONEq(t, `{"id":200,"weight":80}`, string(raw))
}

func TestPhysicalInfoNoNewData(t *testing.T) {
	api := newFakeAPI(t)
	api.respondStatus("POST", "/users/42/physical-information-transactions", http.StatusNoContent)

	result := newTestDispatcher(api).Execute(context.Background(), "get_physical_info", nil, testGrant)

	require.Nil(t, result.Err)
	msg, ok := result.Payload.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, msg["message"], "no new physical information")

	// 204 on create means no transaction exists, so nothing to commit.
	requests := api.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].Method)
}

func TestPhysicalInfoEmptyListStillCommits(t *testing.T) {
	api := newFakeAPI(t)
	api.respondJSON("POST", "/users/42/physical-information-transactions", `{"transaction-id":9}`)
	api.respondJSON("GET", "/users/42/physical-information-transactions/9", `{"physical-informations":[]}`)
	api.respondStatus("PUT", "/users/42/physical-information-transactions/9", http.StatusOK)

	result := newTestDispatcher(api).Execute(context.Background(), "get_physical_info", nil, testGrant)

	require.Nil(t, result.Err)
	requests := api.recorded()
	require.Len(t, requests, 3)
	assert.Equal(t, http.MethodPut, requests[2].Method, "an opened transaction must be committed even with no resources")
}

func TestPhysicalInfoCommitFailureIsSwallowed(t *testing.T) {
	api := newFakeAPI(t)
	base := api.server.URL
	api.respondJSON("POST", "/users/42/physical-information-transactions", `{"transaction-id":10}`)
	api.respondJSON("GET", "/users/42/physical-information-transactions/10",
		`{"physical-informations":["`+base+`/v3/users/42/physical-information-transactions/10/physical-informations/300"]}`)
	api.respondJSON("GET", "/users/42/physical-information-transactions/10/physical-informations/300", `{"id":300}`)
	api.respondStatus("PUT", "/users/42/physical-information-transactions/10", http.StatusInternalServerError)

	result := newTestDispatcher(api).Execute(context.Background(), "get_physical_info", nil, testGrant)

	// Fetched data is still returned when only the commit fails.
	require.Nil(t, result.Err)
	raw, ok := result.Payload.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":300}`, string(raw))
}
