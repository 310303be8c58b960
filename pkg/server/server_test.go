package server_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cosmos-ai/cosmos-host/internal/testutils"
)

func TestEndpointProtection(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		url       string
		protected bool
	}{
		{"Liveness", http.MethodGet, "/checks/liveness", false},
		{"Metrics", http.MethodGet, "/metrics", false},
		{"Conversations", http.MethodGet, "/api/v1/conversations", true},
		{"Chat", http.MethodPost, "/api/v1/chat", true},
		{"Checkout", http.MethodPost, "/api/v1/billing/checkout", true},
		{"Me", http.MethodGet, "/api/v1/auth/me", true},
	}

	env := testutils.GetTestMockServer(t)

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(test.method, test.url, strings.NewReader(""))
			writer := httptest.NewRecorder()
			env.Server.Mux().ServeHTTP(writer, request)
			assert.Equal(t, test.protected, writer.Code == http.StatusUnauthorized)
		})
	}
}

func TestMetrics(t *testing.T) {
	tests := []struct {
		name        string
		metric      string
		value       int
		metricExist bool
		valueMatch  bool
	}{
		{"Golang metrics should exist", "go_memstats_alloc_bytes_total", -1, true, false},
		{"Golang metrics should exist", "go_info", 1, true, true},
	}

	env := testutils.GetTestMockServer(t)

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/metrics", strings.NewReader(""))
			writer := httptest.NewRecorder()
			env.Server.Mux().ServeHTTP(writer, request)

			resp := writer.Result()
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			assert.Equal(t, test.metricExist, strings.Contains(string(body), test.metric),
				fmt.Sprintf("Metrics output should contain metric '%s'", test.metric))

			// regexp allows to ignore metric labels
			metricValueRegexp := fmt.Sprintf(`%s(\{.*\})? %d`, test.metric, test.value)
			matched, err := regexp.Match(metricValueRegexp, body)
			if err != nil {
				t.Error(err)
			}
			assert.Equal(t, test.valueMatch, matched,
				fmt.Sprintf("Metrics output should contain metric '%s' with value '%d'", test.metric, test.value))
		})
	}
}

func TestCors(t *testing.T) {
	tests := []struct {
		name                  string
		requestHeaderContent  string
		expectHeaders         bool
		expectedHeader        string
		expectedHeaderContent string
	}{
		{
			name:                  "Access-Control-Allow-Origin header should be present",
			requestHeaderContent:  "localhost",
			expectHeaders:         true,
			expectedHeader:        "Access-Control-Allow-Origin",
			expectedHeaderContent: "localhost",
		},
		{
			name:                  "Access-Control-Allow-Credentials header should be present",
			requestHeaderContent:  "localhost",
			expectHeaders:         true,
			expectedHeader:        "Access-Control-Allow-Credentials",
			expectedHeaderContent: "true",
		},
		{
			name:                  "Origin matches not",
			requestHeaderContent:  "http://evil.example.com",
			expectHeaders:         false,
			expectedHeader:        "Access-Control-Allow-Origin",
			expectedHeaderContent: "localhost",
		},
	}

	env := testutils.GetTestMockServer(t)

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/checks/liveness", nil)
			request.Header.Set("Origin", test.requestHeaderContent)
			writer := httptest.NewRecorder()

			env.Server.Mux().ServeHTTP(writer, request)
			if test.expectHeaders {
				assert.Equal(t, test.expectedHeaderContent, writer.Header().Get(test.expectedHeader))
			} else {
				assert.Equal(t, "", writer.Header().Get(test.expectedHeader))
			}
		})
	}
}
