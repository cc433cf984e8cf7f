package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
	token  string
}

// SetupSuite loads the environment configuration before running tests and
// skips the whole suite when no running service was pointed at.
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.BridgeAddr == "" {
		s.T().Skip("BRIDGE_ADDR not set; skipping end-to-end suite")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}

	if s.Config.AdminPassword != "" {
		body := s.Call(s.T(), "Obtaining bearer token", http.MethodPost, "/auth/token",
			map[string]any{"password": s.Config.AdminPassword}, http.StatusOK)
		token, _ := body["token"].(string)
		s.Require().NotEmpty(token)
		s.token = token
	}
}

// Call performs one JSON request against the service with logging and colors,
// asserts the expected status, and returns the decoded response body.
func (s *BaseHTTPSuite) Call(t *testing.T, name, method, path string, payload any, expectStatus int) map[string]any {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	var requestBody bytes.Buffer
	if payload != nil {
		s.Require().NoError(json.NewEncoder(&requestBody).Encode(payload))
	}

	request, err := http.NewRequest(method, s.Config.BridgeAddr+path, &requestBody)
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		request.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	response, err := s.client.Do(request)
	s.Require().NoError(err, "Failed to reach the service at "+s.Config.BridgeAddr)
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, response.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, payload)
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	t.Log(logBuilder.String())

	s.Require().Equal(expectStatus, response.StatusCode, string(raw))

	body := map[string]any{}
	if len(raw) > 0 && json.Valid(raw) {
		s.Require().NoError(json.Unmarshal(raw, &body))
	}
	return body
}
