package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skysurvey/internal/config"
	"skysurvey/internal/survey"
	logx "skysurvey/pkg/logx"
)

func testGroup() survey.ObservationGroup {
	start := time.Date(2024, 3, 5, 12, 10, 0, 0, time.UTC)
	return survey.ObservationGroup{
		GroupID: "RBNS20240305T12.0",
		Field: survey.FieldSpec{
			Name: "F1", Site: "lsc", Observatory: "doma", Telescope: "1m0a", Filter: "ip",
			Exposures: []survey.ExposureBlock{{ExposureTime: 30, Count: 3}},
		},
		TelescopeClass: "1m0",
		InstrumentName: "FL03",
		MaxAirmass:     2,
		SubRequests: []survey.SubRequest{{
			Window: survey.Window{Start: start, End: start.Add(time.Hour)},
			Blocks: []survey.ExposureBlock{{ExposureTime: 30, Count: 3}},
		}},
	}
}

var prop = config.ProposalConfig{ProposalID: "KEY2016", UserID: "observer", Password: "pw"}

func TestSubmitPostsForm(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "observer", r.PostForm.Get("username"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))
		assert.Equal(t, "KEY2016", r.PostForm.Get("proposal"))

		var doc map[string]any
		assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("request_data")), &doc))
		assert.Equal(t, "RBNS20240305T12.0", doc["group_id"])

		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer srv.Close()

	c, err := New(config.GatewayConfig{URL: srv.URL, Timeout: "5s"}, prop, logx.Nop())
	require.NoError(t, err)
	raw, err := c.Submit(context.Background(), testGroup())
	require.NoError(t, err)
	assert.Equal(t, `{"id":42}`, raw)
	assert.EqualValues(t, 1, hits.Load())
}

func TestSubmitReturnsBodyOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Unauthorized access"}`))
	}))
	defer srv.Close()

	c, err := New(config.GatewayConfig{URL: srv.URL}, prop, logx.Nop())
	require.NoError(t, err)
	raw, err := c.Submit(context.Background(), testGroup())
	require.NoError(t, err)
	assert.Equal(t, survey.StatusError, survey.Classify(raw).Status)
}

func TestSubmitTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(config.GatewayConfig{URL: url}, prop, logx.Nop())
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), testGroup())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "post", te.Op)
}

func TestSimulateSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	c, err := New(config.GatewayConfig{URL: srv.URL, Simulate: true}, config.ProposalConfig{}, logx.Nop())
	require.NoError(t, err)
	assert.True(t, c.Simulated())
	raw, err := c.Submit(context.Background(), testGroup())
	require.NoError(t, err)
	assert.Equal(t, SimulatedResponse, raw)
	assert.Zero(t, hits.Load())
}

func TestNewRejectsBadTimeout(t *testing.T) {
	_, err := New(config.GatewayConfig{URL: "http://x", Timeout: "later"}, prop, logx.Nop())
	require.Error(t, err)
}
