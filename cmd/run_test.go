package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/internal/testutil"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/client"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/config"
)

const (
	testCode  = "mock-app-code"
	testToken = "mock-access-token"
)

// newRunConfig points a default configuration at mock and at temporary
// directories for exports and run logs
func newRunConfig(t *testing.T, mock *testutil.StravaMockServer) *config.Config {
	t.Helper()
	t.Setenv("LOG_DIR", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.ClientID = "12345"
	cfg.ClientSecret = "s3cr3t"
	cfg.Code = testCode
	cfg.APIURL = mock.APIBaseURL()
	cfg.Grant.TokenURL = mock.TokenURL()
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.Delay = 0
	cfg.Storage.Type = "file"
	cfg.Storage.Dir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newRunMock(t *testing.T) *testutil.StravaMockServer {
	t.Helper()
	mock := testutil.NewStravaMockServer()
	t.Cleanup(mock.Close)
	mock.SetupSuccessfulAuth(testCode, testToken)
	return mock
}

func readExport(t *testing.T, dir string) [][]string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "strava-*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunExport(t *testing.T) {
	mock := newRunMock(t)
	mock.AddActivities(1, 2)
	mock.AddActivity(map[string]any{
		"id":            3,
		"name":          "Morning Ride",
		"kudos_count":   1,
		"comment_count": 0,
	})
	mock.SetKudos(3, []map[string]any{{"firstname": "Ada", "lastname": "L."}})

	cfg := newRunConfig(t, mock)
	cfg.MetricsFile = filepath.Join(t.TempDir(), "strava2csv.prom")

	var out bytes.Buffer
	result, err := runExport(context.Background(), cfg, strings.NewReader(""), &out)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.Activities)
	assert.Equal(t, 3, result.Summary.Exported)
	assert.Empty(t, result.Summary.Skipped)
	// one list page, one empty page, three details, one kudos list
	assert.Equal(t, 6, result.Requests)
	assert.Contains(t, out.String(), "Export written:")
	assert.Contains(t, out.String(), "3 exported of 3")

	rows := readExport(t, cfg.Storage.Dir)
	assert.Equal(t, result.Summary.Rows, len(rows))
	assert.Equal(t, "0-Activity:header", rows[0][1])
	assert.Equal(t, "kudo", rows[len(rows)-1][1])
	assert.Equal(t, "3", rows[len(rows)-1][0])

	// no kudos or comments were requested for activities without any
	assert.Equal(t, 0, mock.CountRequests(testutil.APIPrefix+"/activities/1/kudos"))
	assert.Equal(t, 0, mock.CountRequests(testutil.APIPrefix+"/activities/3/comments"))

	metricsText, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), "strava2csv_activities_exported_total 3")

	logs, err := filepath.Glob(filepath.Join(os.Getenv("LOG_DIR"), "*.json"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRunExport_AbortKeepsPartialExport(t *testing.T) {
	mock := newRunMock(t)
	mock.AddActivities(1, 3)
	mock.SetError(testutil.APIPrefix+"/activities/2", http.StatusInternalServerError)

	cfg := newRunConfig(t, mock)

	var out bytes.Buffer
	result, err := runExport(context.Background(), cfg, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrRetriesExhausted)

	assert.Equal(t, 1, result.Summary.Exported)
	assert.Contains(t, out.String(), "Export failed:")
	assert.Equal(t, cfg.Retry.MaxAttempts, mock.CountRequests(testutil.APIPrefix+"/activities/2"))
	assert.Equal(t, 0, mock.CountRequests(testutil.APIPrefix+"/activities/3"))

	rows := readExport(t, cfg.Storage.Dir)
	assert.Equal(t, "1", rows[len(rows)-1][0])
}

func TestRunExport_SkipPolicy(t *testing.T) {
	mock := newRunMock(t)
	mock.AddActivities(1, 3)
	mock.SetError(testutil.APIPrefix+"/activities/2", http.StatusInternalServerError)

	cfg := newRunConfig(t, mock)
	cfg.Export.FailurePolicy = "skip"

	var out bytes.Buffer
	result, err := runExport(context.Background(), cfg, strings.NewReader(""), &out)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.Exported)
	assert.Equal(t, []client.ActivityID{2}, result.Summary.Skipped)
	assert.Contains(t, out.String(), "skipped:")
}

func TestRunExport_CancelledSkipRunFails(t *testing.T) {
	mock := newRunMock(t)
	mock.AddActivities(1, 3)

	cfg := newRunConfig(t, mock)
	cfg.Code = ""
	cfg.AccessToken = testToken
	cfg.Export.FailurePolicy = "skip"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err := runExport(ctx, cfg, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out.String(), "Export failed:")
	assert.NotContains(t, out.String(), "Export written:")

	matches, _ := filepath.Glob(filepath.Join(cfg.Storage.Dir, "*.csv"))
	assert.Empty(t, matches)
}

func TestRunExport_RejectedCode(t *testing.T) {
	mock := newRunMock(t)
	mock.AddActivities(1, 1)

	cfg := newRunConfig(t, mock)
	cfg.Code = "wrong-code"

	_, err := runExport(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)

	// the exchange is never retried and nothing is fetched or written
	assert.Equal(t, 1, mock.CountRequests("/oauth/token"))
	assert.Equal(t, 0, mock.CountRequests(testutil.APIPrefix+"/athlete/activities"))
	matches, _ := filepath.Glob(filepath.Join(cfg.Storage.Dir, "*.csv"))
	assert.Empty(t, matches)
}

func TestRunExport_AccessTokenSkipsExchange(t *testing.T) {
	mock := newRunMock(t)
	mock.AddActivities(1, 1)

	cfg := newRunConfig(t, mock)
	cfg.Code = ""
	cfg.AccessToken = testToken

	result, err := runExport(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Exported)
	assert.Equal(t, 0, mock.CountRequests("/oauth/token"))
}

func TestRunAuthURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ClientID = "12345"

	var out bytes.Buffer
	require.NoError(t, runAuthURL(cfg, &out))

	url := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(url, "https://www.strava.com/oauth/authorize?"))
	assert.Contains(t, url, "client_id=12345")
	assert.Contains(t, url, "response_type=code")
	assert.Contains(t, url, "approval_prompt=auto")

	cfg.ClientID = ""
	assert.Error(t, runAuthURL(cfg, &out))
}

func TestRunToken(t *testing.T) {
	mock := newRunMock(t)
	cfg := newRunConfig(t, mock)

	var out bytes.Buffer
	require.NoError(t, runToken(context.Background(), cfg, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), testToken)
	assert.Contains(t, out.String(), "expires_at:")
}

func TestRunToken_PastedCode(t *testing.T) {
	mock := newRunMock(t)
	cfg := newRunConfig(t, mock)
	cfg.Code = ""

	in := strings.NewReader("http://127.0.0.1:5000/authorization?state=&code=" + testCode + "&scope=read\n")
	var out bytes.Buffer
	require.NoError(t, runToken(context.Background(), cfg, in, &out))

	assert.Contains(t, out.String(), "Authorization URL:")
	assert.Contains(t, out.String(), testToken)
}

func TestRunToken_MissingCredentials(t *testing.T) {
	mock := newRunMock(t)
	cfg := newRunConfig(t, mock)
	cfg.ClientSecret = ""

	err := runToken(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRAVA2CSV_CLIENT_SECRET")
	assert.Equal(t, 0, mock.CountRequests("/oauth/token"))
}

func TestRunAthlete(t *testing.T) {
	mock := newRunMock(t)
	mock.SetAthlete(map[string]any{"id": 2700001, "firstname": "Grace", "lastname": "Hopper"})
	cfg := newRunConfig(t, mock)

	var out bytes.Buffer
	require.NoError(t, runAthlete(context.Background(), cfg, strings.NewReader(""), &out))
	assert.Equal(t, "Athlete 2700001: Grace Hopper\n", out.String())

	athleteJSON = true
	defer func() { athleteJSON = false }()
	out.Reset()
	require.NoError(t, runAthlete(context.Background(), cfg, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), `"firstname": "Grace"`)
}

func TestRunConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ClientID = "12345"
	cfg.ClientSecret = "s3cr3t"

	var out bytes.Buffer
	require.NoError(t, runConfig(cfg, &out))
	assert.Contains(t, out.String(), `client_id: "12345"`)
	assert.NotContains(t, out.String(), "s3cr3t")
}

func TestRunExports(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Dir = t.TempDir()

	for _, name := range []string{
		"strava-2019-11-15-08-05-09.csv",
		"strava-2019-11-13-08-05-09.csv",
		"strava-2019-11-14-08-05-09.csv",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.Dir, name), []byte("x\n"), 0644))
	}

	var out bytes.Buffer
	require.NoError(t, runExports(context.Background(), cfg, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "strava-2019-11-13-08-05-09.csv"))

	keepExports = 1
	defer func() { keepExports = 0 }()
	out.Reset()
	require.NoError(t, runExports(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "deleted")

	remaining, err := filepath.Glob(filepath.Join(cfg.Storage.Dir, "*.csv"))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "strava-2019-11-15-08-05-09.csv", filepath.Base(remaining[0]))
}

func TestRunExports_IgnoresUnrelatedFiles(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Dir = t.TempDir()

	for _, name := range []string{
		"budget.csv",
		"strava-notes.csv",
		"strava-2019-11-14-08-05-09.csv",
		"strava-2019-11-15-08-05-09.csv",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Storage.Dir, name), []byte("x\n"), 0644))
	}

	keepExports = 1
	defer func() { keepExports = 0 }()

	var out bytes.Buffer
	require.NoError(t, runExports(context.Background(), cfg, &out))

	assert.NotContains(t, out.String(), "budget.csv")
	assert.NotContains(t, out.String(), "strava-notes.csv")
	assert.Contains(t, out.String(), "deleted "+filepath.Join(cfg.Storage.Dir, "strava-2019-11-14-08-05-09.csv"))

	for _, name := range []string{"budget.csv", "strava-notes.csv", "strava-2019-11-15-08-05-09.csv"} {
		_, err := os.Stat(filepath.Join(cfg.Storage.Dir, name))
		assert.NoError(t, err, "%s should be kept", name)
	}
	_, err := os.Stat(filepath.Join(cfg.Storage.Dir, "strava-2019-11-14-08-05-09.csv"))
	assert.True(t, os.IsNotExist(err))
}
