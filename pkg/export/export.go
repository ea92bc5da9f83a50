package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/client"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/format"
)

// Source is the subset of the API client the exporter drives
type Source interface {
	ListActivities(ctx context.Context) ([]client.ActivityID, error)
	GetActivity(ctx context.Context, id client.ActivityID) (client.Record, error)
	GetKudos(ctx context.Context, id client.ActivityID) ([]client.Record, error)
	GetComments(ctx context.Context, id client.ActivityID) ([]client.Record, error)
}

// FailurePolicy decides what happens when fetching one activity fails
type FailurePolicy string

const (
	// Abort stops the export at the first failed activity
	Abort FailurePolicy = "abort"
	// Skip records the failed activity and moves on
	Skip FailurePolicy = "skip"
)

// ParseFailurePolicy parses a failure policy name
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case Abort, "":
		return Abort, nil
	case Skip:
		return Skip, nil
	}
	return "", fmt.Errorf("unknown failure policy %q (expected %q or %q)", s, Abort, Skip)
}

// Summary describes a finished export
type Summary struct {
	Activities int                 `json:"activities"`
	Exported   int                 `json:"exported"`
	Skipped    []client.ActivityID `json:"skipped,omitempty"`
	Rows       int                 `json:"rows"`
	Duration   time.Duration       `json:"duration"`
}

// Exporter walks the athlete's activities and writes one CSV row per
// activity, compound record, kudo and comment
type Exporter struct {
	Source    Source
	Formatter *format.Formatter
	Policy    FailurePolicy
}

// NewExporter creates an Exporter with the default abort policy
func NewExporter(source Source, formatter *format.Formatter) *Exporter {
	return &Exporter{
		Source:    source,
		Formatter: formatter,
		Policy:    Abort,
	}
}

// Run lists all activities and writes the export to w. Header rows are
// written first. An athlete without activities yields a header-only export.
// Cancellation of ctx always stops the run, whatever the failure policy.
func (e *Exporter) Run(ctx context.Context, w io.Writer) (summary Summary, err error) {
	start := time.Now()
	defer func() {
		summary.Duration = time.Since(start)
	}()

	formatter := e.Formatter
	if formatter == nil {
		formatter = format.NewFormatter(format.Imperial)
	}

	out := csv.NewWriter(w)
	defer out.Flush()

	write := func(rows ...format.Row) error {
		for _, row := range rows {
			if err := out.Write(row); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
			summary.Rows++
		}
		return nil
	}

	if err := write(format.HeaderRows()...); err != nil {
		return summary, err
	}

	ids, err := e.Source.ListActivities(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list activities: %w", err)
	}
	summary.Activities = len(ids)
	log.Printf("[EXPORT] Exporting %d activities", len(ids))

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("export interrupted before activity %d: %w", id, err)
		}

		rows, err := e.activityRows(ctx, formatter, id)
		if err != nil {
			if interrupted(ctx, err) {
				return summary, fmt.Errorf("export interrupted at activity %d: %w", id, err)
			}
			if e.Policy != Skip {
				return summary, fmt.Errorf("export stopped at activity %d: %w", id, err)
			}
			log.Printf("[EXPORT] Skipping activity %d: %v", id, err)
			summary.Skipped = append(summary.Skipped, id)
			continue
		}

		if err := write(rows...); err != nil {
			return summary, err
		}
		summary.Exported++

		if (i+1)%50 == 0 {
			log.Printf("[EXPORT] %d of %d activities exported", i+1, len(ids))
			out.Flush()
		}
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return summary, fmt.Errorf("failed to flush export: %w", err)
	}
	log.Printf("[EXPORT] Done: %d exported, %d skipped, %d rows in %s",
		summary.Exported, len(summary.Skipped), summary.Rows, time.Since(start).Round(time.Millisecond))
	return summary, nil
}

// interrupted reports whether err comes from ctx being cancelled or timing out
// rather than from the activity itself
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// activityRows fetches everything belonging to one activity. Nothing is
// written until every request for the activity has succeeded.
func (e *Exporter) activityRows(ctx context.Context, formatter *format.Formatter, id client.ActivityID) ([]format.Row, error) {
	detail, err := e.Source.GetActivity(ctx, id)
	if err != nil {
		return nil, err
	}

	rows := []format.Row{formatter.ActivityRow(id, detail)}
	rows = append(rows, formatter.CompoundRows(id, detail)...)

	if detail.Int("kudos_count") > 0 {
		kudos, err := e.Source.GetKudos(ctx, id)
		if err != nil {
			return nil, err
		}
		rows = append(rows, formatter.KudoRows(id, kudos)...)
	}

	if detail.Int("comment_count") > 0 {
		comments, err := e.Source.GetComments(ctx, id)
		if err != nil {
			return nil, err
		}
		rows = append(rows, formatter.CommentRows(id, comments)...)
	}

	return rows, nil
}

const (
	fileNamePrefix = "strava-"
	fileNameSuffix = ".csv"
	fileTimeLayout = "2006-01-02-15-04-05"
)

// FileName returns the export file name for a run started at t
func FileName(t time.Time) string {
	return fileNamePrefix + t.Format(fileTimeLayout) + fileNameSuffix
}

// ParseFileName returns the start time encoded in an export file name. Names
// not produced by FileName report false.
func ParseFileName(name string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(name, fileNamePrefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, fileNameSuffix)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(fileTimeLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
