package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/internal/testutil"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/client"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/format"
	"golang.org/x/oauth2"
)

// fakeSource serves canned records and counts calls
type fakeSource struct {
	ids      []client.ActivityID
	details  map[client.ActivityID]client.Record
	kudos    map[client.ActivityID][]client.Record
	comments map[client.ActivityID][]client.Record
	failing  map[client.ActivityID]bool
	listErr  error

	// listDelay is slept before ListActivities answers
	listDelay time.Duration

	// onDetail runs before each detail request is answered
	onDetail func(id client.ActivityID)

	detailCalls  int
	kudoCalls    map[client.ActivityID]int
	commentCalls map[client.ActivityID]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		details:      make(map[client.ActivityID]client.Record),
		kudos:        make(map[client.ActivityID][]client.Record),
		comments:     make(map[client.ActivityID][]client.Record),
		failing:      make(map[client.ActivityID]bool),
		kudoCalls:    make(map[client.ActivityID]int),
		commentCalls: make(map[client.ActivityID]int),
	}
}

func (s *fakeSource) add(id client.ActivityID, kudosCount, commentCount int) {
	s.ids = append(s.ids, id)
	s.details[id] = client.Record{
		"id":            json.Number(fmt.Sprint(id)),
		"name":          fmt.Sprintf("Activity %d", id),
		"kudos_count":   json.Number(fmt.Sprint(kudosCount)),
		"comment_count": json.Number(fmt.Sprint(commentCount)),
	}
}

func (s *fakeSource) ListActivities(ctx context.Context) ([]client.ActivityID, error) {
	time.Sleep(s.listDelay)
	return s.ids, s.listErr
}

func (s *fakeSource) GetActivity(ctx context.Context, id client.ActivityID) (client.Record, error) {
	s.detailCalls++
	if s.onDetail != nil {
		s.onDetail(id)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("request for activity %d cancelled: %w", id, err)
	}
	if s.failing[id] {
		return nil, fmt.Errorf("activity %d: %w", id, client.ErrRetriesExhausted)
	}
	return s.details[id], nil
}

func (s *fakeSource) GetKudos(ctx context.Context, id client.ActivityID) ([]client.Record, error) {
	s.kudoCalls[id]++
	return s.kudos[id], nil
}

func (s *fakeSource) GetComments(ctx context.Context, id client.ActivityID) ([]client.Record, error) {
	s.commentCalls[id]++
	return s.comments[id], nil
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func dataRows(rows [][]string) [][]string {
	var out [][]string
	for _, row := range rows {
		if row[0] != "0" {
			out = append(out, row)
		}
	}
	return out
}

func TestExporter_ConditionalKudosAndComments(t *testing.T) {
	source := newFakeSource()
	source.add(1, 0, 0)
	source.add(2, 3, 0)
	source.add(3, 0, 2)
	source.kudos[2] = []client.Record{
		{"firstname": "Sam", "lastname": "T."},
		{"firstname": "Randall", "lastname": "S."},
		{"firstname": "Lucas", "lastname": "L."},
	}
	source.comments[3] = []client.Record{{"id": json.Number("9"), "text": "nice"}}

	var buf bytes.Buffer
	summary, err := NewExporter(source, format.NewFormatter(format.Imperial)).Run(context.Background(), &buf)

	require.NoError(t, err)
	assert.Equal(t, 0, source.kudoCalls[1])
	assert.Equal(t, 1, source.kudoCalls[2])
	assert.Equal(t, 0, source.kudoCalls[3])
	assert.Equal(t, 0, source.commentCalls[1])
	assert.Equal(t, 0, source.commentCalls[2])
	assert.Equal(t, 1, source.commentCalls[3])

	assert.Equal(t, 3, summary.Activities)
	assert.Equal(t, 3, summary.Exported)
	assert.Empty(t, summary.Skipped)

	rows := readRows(t, buf.Bytes())
	assert.Equal(t, summary.Rows, len(rows))

	var types []string
	for _, row := range dataRows(rows) {
		types = append(types, row[0]+":"+row[1])
	}
	assert.Equal(t, []string{
		"1:Activity",
		"2:Activity", "2:kudo", "2:kudo", "2:kudo",
		"3:Activity", "3:comment",
	}, types)
}

func TestExporter_WritesHeadersFirst(t *testing.T) {
	source := newFakeSource()
	source.add(1, 0, 0)

	var buf bytes.Buffer
	_, err := NewExporter(source, nil).Run(context.Background(), &buf)
	require.NoError(t, err)

	rows := readRows(t, buf.Bytes())
	headers := format.HeaderRows()
	require.Greater(t, len(rows), len(headers))
	for i, header := range headers {
		assert.Equal(t, []string(header), rows[i])
	}
}

func TestExporter_CompoundRowsFollowActivity(t *testing.T) {
	source := newFakeSource()
	source.add(4, 0, 0)
	source.details[4]["laps"] = []any{map[string]any{"id": json.Number("10")}}
	source.details[4]["splits_metric"] = []any{
		map[string]any{"split": json.Number("1")},
		map[string]any{"split": json.Number("2")},
	}

	var buf bytes.Buffer
	_, err := NewExporter(source, nil).Run(context.Background(), &buf)
	require.NoError(t, err)

	var types []string
	for _, row := range dataRows(readRows(t, buf.Bytes())) {
		types = append(types, row[1])
	}
	assert.Equal(t, []string{"Activity", "laps", "splits_metric", "splits_metric"}, types)
}

func TestExporter_NoActivities(t *testing.T) {
	var buf bytes.Buffer
	summary, err := NewExporter(newFakeSource(), nil).Run(context.Background(), &buf)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Activities)
	assert.Equal(t, len(format.HeaderRows()), summary.Rows)
	assert.Empty(t, dataRows(readRows(t, buf.Bytes())))
}

func TestExporter_ListFailure(t *testing.T) {
	source := newFakeSource()
	source.listErr = client.ErrRetriesExhausted
	source.listDelay = 5 * time.Millisecond

	summary, err := NewExporter(source, nil).Run(context.Background(), &bytes.Buffer{})
	assert.True(t, errors.Is(err, client.ErrRetriesExhausted))
	// failed runs still report how long they took
	assert.GreaterOrEqual(t, summary.Duration, 5*time.Millisecond)
}

func TestExporter_CancellationIsNeverSkipped(t *testing.T) {
	for _, policy := range []FailurePolicy{Abort, Skip} {
		t.Run(string(policy)+" with cancelled context", func(t *testing.T) {
			source := newFakeSource()
			for id := client.ActivityID(1); id <= 5; id++ {
				source.add(id, 0, 0)
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			exporter := NewExporter(source, nil)
			exporter.Policy = policy

			summary, err := exporter.Run(ctx, &bytes.Buffer{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, context.Canceled))
			assert.Empty(t, summary.Skipped)
			assert.Equal(t, 0, summary.Exported)
			assert.Equal(t, 5, summary.Activities)
			assert.Equal(t, 0, source.detailCalls)
		})

		t.Run(string(policy)+" cancelled mid run", func(t *testing.T) {
			source := newFakeSource()
			for id := client.ActivityID(1); id <= 5; id++ {
				source.add(id, 0, 0)
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			source.onDetail = func(id client.ActivityID) {
				if id == 3 {
					cancel()
				}
			}

			exporter := NewExporter(source, nil)
			exporter.Policy = policy

			var buf bytes.Buffer
			summary, err := exporter.Run(ctx, &buf)
			require.Error(t, err)
			assert.True(t, errors.Is(err, context.Canceled))
			assert.Empty(t, summary.Skipped)
			assert.Equal(t, 2, summary.Exported)
			assert.Equal(t, 3, source.detailCalls)

			// rows of the activities finished before the interruption are flushed
			var ids []string
			for _, row := range dataRows(readRows(t, buf.Bytes())) {
				ids = append(ids, row[0])
			}
			assert.Equal(t, []string{"1", "2"}, ids)
		})
	}
}

func TestExporter_FailurePolicies(t *testing.T) {
	tests := []struct {
		name         string
		policy       FailurePolicy
		wantErr      bool
		wantExported int
		wantSkipped  []client.ActivityID
		wantIDs      []string
	}{
		{
			name:         "abort stops at the failed activity",
			policy:       Abort,
			wantErr:      true,
			wantExported: 1,
			wantIDs:      []string{"1"},
		},
		{
			name:         "skip continues past the failed activity",
			policy:       Skip,
			wantExported: 2,
			wantSkipped:  []client.ActivityID{2},
			wantIDs:      []string{"1", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newFakeSource()
			source.add(1, 0, 0)
			source.add(2, 0, 0)
			source.add(3, 0, 0)
			source.failing[2] = true

			exporter := NewExporter(source, nil)
			exporter.Policy = tt.policy

			var buf bytes.Buffer
			summary, err := exporter.Run(context.Background(), &buf)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, client.ErrRetriesExhausted))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantExported, summary.Exported)
			assert.Equal(t, tt.wantSkipped, summary.Skipped)

			var ids []string
			for _, row := range dataRows(readRows(t, buf.Bytes())) {
				ids = append(ids, row[0])
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Abort, p)

	p, err = ParseFailurePolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, Skip, p)

	_, err = ParseFailurePolicy("retry")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2019, 11, 15, 8, 5, 9, 0, time.UTC)
	assert.Equal(t, "strava-2019-11-15-08-05-09.csv", FileName(ts))
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"strava-2019-11-15-08-05-09.csv", true},
		{"budget.csv", false},
		{"strava-notes.csv", false},
		{"strava-2019-11-15-08-05-09.csv.tmp", false},
		{"strava-2019-13-15-08-05-09.csv", false},
		{"my-strava-2019-11-15-08-05-09.csv", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParseFileName(tt.name)
			assert.Equal(t, tt.ok, ok)
		})
	}

	started := time.Date(2019, 11, 15, 8, 5, 9, 0, time.Local)
	parsed, ok := ParseFileName(FileName(started))
	require.True(t, ok)
	assert.True(t, started.Equal(parsed))
}

func TestExporter_WithClientAgainstMockServer(t *testing.T) {
	mock := testutil.NewStravaMockServer()
	defer mock.Close()
	mock.SetBearerToken("token")
	mock.AddActivity(map[string]any{"id": 11, "name": "Quiet ride", "kudos_count": 0, "comment_count": 0})
	mock.AddActivity(map[string]any{"id": 12, "name": "Popular run", "kudos_count": 3, "comment_count": 1})
	mock.SetKudos(12, []map[string]any{{"firstname": "A"}, {"firstname": "B"}, {"firstname": "C"}})
	mock.SetComments(12, []map[string]any{{"id": 1, "text": "great"}})

	c, err := client.New(&oauth2.Token{AccessToken: "token"}, client.WithBaseURL(mock.APIBaseURL()))
	require.NoError(t, err)

	var buf bytes.Buffer
	summary, err := NewExporter(c, nil).Run(context.Background(), &buf)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Exported)
	assert.Equal(t, 0, mock.CountRequests(testutil.APIPrefix+"/activities/11/kudos"))
	assert.Equal(t, 1, mock.CountRequests(testutil.APIPrefix+"/activities/12/kudos"))
	assert.Equal(t, 0, mock.CountRequests(testutil.APIPrefix+"/activities/11/comments"))
	assert.Equal(t, 1, mock.CountRequests(testutil.APIPrefix+"/activities/12/comments"))
	assert.Len(t, dataRows(readRows(t, buf.Bytes())), 2+3+1)
}
