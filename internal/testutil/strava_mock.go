package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path under which the mock serves the resource endpoints
const APIPrefix = "/api/v3"

// StravaMockServer provides a configurable mock of the Strava token and
// resource endpoints for testing
type StravaMockServer struct {
	server *httptest.Server
	mu     sync.RWMutex

	// Configurable responses
	AccessTokens map[string]*TokenResponse
	Activities   []map[string]any
	Details      map[int64]map[string]any
	Kudos        map[int64][]map[string]any
	Comments     map[int64][]map[string]any
	Athlete      map[string]any

	// BearerToken, when set, is required on every resource request
	BearerToken string

	// Error simulation
	ErrorCodes   map[string]int
	queuedStatus map[string][]int

	// Request tracking
	RequestLog []RequestInfo
}

// TokenResponse represents a token exchange response
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	Message      string `json:"message,omitempty"`
}

// RequestInfo tracks request details
type RequestInfo struct {
	Method  string
	Path    string
	Query   url.Values
	Headers http.Header
	Time    time.Time
}

// NewStravaMockServer creates a new mock server
func NewStravaMockServer() *StravaMockServer {
	mock := &StravaMockServer{
		AccessTokens: make(map[string]*TokenResponse),
		Details:      make(map[int64]map[string]any),
		Kudos:        make(map[int64][]map[string]any),
		Comments:     make(map[int64][]map[string]any),
		ErrorCodes:   make(map[string]int),
		queuedStatus: make(map[string][]int),
		RequestLog:   make([]RequestInfo, 0),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handler))
	return mock
}

// URL returns the mock server URL
func (m *StravaMockServer) URL() string {
	return m.server.URL
}

// APIBaseURL returns the base URL for resource endpoints
func (m *StravaMockServer) APIBaseURL() string {
	return m.server.URL + APIPrefix
}

// TokenURL returns the token endpoint URL
func (m *StravaMockServer) TokenURL() string {
	return m.server.URL + "/oauth/token"
}

// Close shuts down the mock server
func (m *StravaMockServer) Close() {
	m.server.Close()
}

// SetAccessToken configures the token exchange response for a given code
func (m *StravaMockServer) SetAccessToken(code string, response *TokenResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AccessTokens[code] = response
}

// SetBearerToken requires token on resource requests
func (m *StravaMockServer) SetBearerToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BearerToken = token
}

// AddActivity registers an activity in the list and its detail record
func (m *StravaMockServer) AddActivity(detail map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := toInt64(detail["id"])
	m.Activities = append(m.Activities, map[string]any{"id": id, "name": detail["name"]})
	m.Details[id] = detail
}

// AddActivities registers n activities with sequential ids starting at firstID
func (m *StravaMockServer) AddActivities(firstID int64, n int) {
	for i := 0; i < n; i++ {
		id := firstID + int64(i)
		m.AddActivity(map[string]any{
			"id":            id,
			"name":          "Activity " + strconv.FormatInt(id, 10),
			"kudos_count":   0,
			"comment_count": 0,
		})
	}
}

// SetKudos configures the kudos for an activity
func (m *StravaMockServer) SetKudos(id int64, kudos []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Kudos[id] = kudos
}

// SetComments configures the comments for an activity
func (m *StravaMockServer) SetComments(id int64, comments []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Comments[id] = comments
}

// SetAthlete configures the authenticated athlete record
func (m *StravaMockServer) SetAthlete(athlete map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Athlete = athlete
}

// SetError configures a persistent error response for a specific path
func (m *StravaMockServer) SetError(path string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCodes[path] = statusCode
}

// QueueStatus makes the next requests to path answer with the given statuses,
// one per request, before normal handling resumes
func (m *StravaMockServer) QueueStatus(path string, statusCodes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queuedStatus[path] = append(m.queuedStatus[path], statusCodes...)
}

// GetRequestLog returns all logged requests
func (m *StravaMockServer) GetRequestLog() []RequestInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestInfo{}, m.RequestLog...)
}

// CountRequests returns how many requests hit path
func (m *StravaMockServer) CountRequests(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, info := range m.RequestLog {
		if info.Path == path {
			count++
		}
	}
	return count
}

// ClearRequestLog clears the request log
func (m *StravaMockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestLog = make([]RequestInfo, 0)
}

// handler processes incoming requests
func (m *StravaMockServer) handler(w http.ResponseWriter, r *http.Request) {
	m.logRequest(r)

	if status, ok := m.nextStatus(r.URL.Path); ok {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}

	if r.URL.Path == "/oauth/token" {
		m.handleToken(w, r)
		return
	}

	if !strings.HasPrefix(r.URL.Path, APIPrefix) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record Not Found"})
		return
	}

	m.mu.RLock()
	expected := m.BearerToken
	m.mu.RUnlock()
	if expected != "" && extractToken(r.Header.Get("Authorization")) != expected {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Authorization Error"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, APIPrefix)
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case path == "/athlete":
		m.handleAthlete(w)
	case path == "/athlete/activities":
		m.handleActivities(w, r)
	case len(parts) == 2 && parts[0] == "activities":
		m.handleDetail(w, parts[1])
	case len(parts) == 3 && parts[0] == "activities" && parts[2] == "kudos":
		m.handleList(w, parts[1], m.Kudos)
	case len(parts) == 3 && parts[0] == "activities" && parts[2] == "comments":
		m.handleList(w, parts[1], m.Comments)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record Not Found"})
	}
}

func (m *StravaMockServer) nextStatus(path string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if queue := m.queuedStatus[path]; len(queue) > 0 {
		m.queuedStatus[path] = queue[1:]
		return queue[0], true
	}
	if status, exists := m.ErrorCodes[path]; exists {
		return status, true
	}
	return 0, false
}

func (m *StravaMockServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "method not allowed"})
		return
	}
	code := r.URL.Query().Get("code")
	if r.URL.Query().Get("grant_type") != "authorization_code" {
		writeJSON(w, http.StatusBadRequest, TokenResponse{Message: "Bad Request"})
		return
	}

	m.mu.RLock()
	response, exists := m.AccessTokens[code]
	m.mu.RUnlock()

	if !exists {
		writeJSON(w, http.StatusBadRequest, TokenResponse{Message: "Bad Request"})
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (m *StravaMockServer) handleAthlete(w http.ResponseWriter) {
	m.mu.RLock()
	athlete := m.Athlete
	m.mu.RUnlock()

	if athlete == nil {
		athlete = map[string]any{"id": 1, "firstname": "Test", "lastname": "Athlete"}
	}
	writeJSON(w, http.StatusOK, athlete)
}

func (m *StravaMockServer) handleActivities(w http.ResponseWriter, r *http.Request) {
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage <= 0 {
		// The real API answers an empty list when paging is missing or too large
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	start := (page - 1) * perPage
	if start >= len(m.Activities) {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	end := start + perPage
	if end > len(m.Activities) {
		end = len(m.Activities)
	}
	writeJSON(w, http.StatusOK, m.Activities[start:end])
}

func (m *StravaMockServer) handleDetail(w http.ResponseWriter, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record Not Found"})
		return
	}

	m.mu.RLock()
	detail, exists := m.Details[id]
	m.mu.RUnlock()

	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (m *StravaMockServer) handleList(w http.ResponseWriter, rawID string, source map[int64][]map[string]any) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Record Not Found"})
		return
	}

	m.mu.RLock()
	items, exists := source[id]
	m.mu.RUnlock()

	if !exists {
		items = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (m *StravaMockServer) logRequest(r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RequestLog = append(m.RequestLog, RequestInfo{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Headers: r.Header.Clone(),
		Time:    time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func extractToken(authHeader string) string {
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

// Preset configurations for common test scenarios

// SetupSuccessfulAuth configures a code that exchanges for token and makes
// the resource endpoints require that token
func (m *StravaMockServer) SetupSuccessfulAuth(code, token string) {
	m.SetAccessToken(code, &TokenResponse{
		AccessToken:  token,
		TokenType:    "Bearer",
		RefreshToken: "refresh-" + token,
		ExpiresAt:    time.Now().Add(6 * time.Hour).Unix(),
	})
	m.SetBearerToken(token)
}

// SetupRateLimitedResponse makes every request to path answer 429
func (m *StravaMockServer) SetupRateLimitedResponse(path string) {
	m.SetError(path, http.StatusTooManyRequests)
}
