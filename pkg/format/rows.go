package format

import (
	"strconv"

	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/client"
)

// Row is one line of output. Every row starts with the activity id and the
// record type.
type Row []string

// HeaderRows returns one header row per record type. Header rows use
// activity id 0 so they sort ahead of data.
func HeaderRows() []Row {
	rows := []Row{header(RecordActivity, ActivityFields)}
	for _, recordType := range CompoundRecords {
		rows = append(rows, header(recordType, compoundFields(recordType)))
	}
	rows = append(rows,
		header(RecordKudo, AthleteFields),
		header(RecordComment, CommentFields),
	)
	return rows
}

func header(recordType string, fields []Field) Row {
	row := Row{"0", "0-" + recordType + ":header"}
	return append(row, columnNames("", fields)...)
}

func columnNames(prefix string, fields []Field) []string {
	var names []string
	for _, field := range fields {
		if field.Kind == Nested {
			names = append(names, columnNames(prefix+field.Key+".", field.Fields)...)
			continue
		}
		names = append(names, prefix+field.Key)
	}
	return names
}

// ActivityRow renders the detail record of one activity
func (f *Formatter) ActivityRow(id client.ActivityID, rec client.Record) Row {
	return f.row(id, RecordActivity, ActivityFields, rec)
}

// CompoundRows renders the laps, segment efforts and splits carried by an
// activity detail, in that order. Lists the record does not carry are skipped.
func (f *Formatter) CompoundRows(id client.ActivityID, rec client.Record) []Row {
	var rows []Row
	for _, recordType := range CompoundRecords {
		items, ok := rec.Records(recordType)
		if !ok {
			continue
		}
		switch recordType {
		case RecordLaps:
			rows = append(rows, f.LapRows(id, items)...)
		case RecordSegmentEfforts:
			rows = append(rows, f.SegmentEffortRows(id, items)...)
		default:
			rows = append(rows, f.SplitRows(id, recordType, items)...)
		}
	}
	return rows
}

// LapRows renders laps
func (f *Formatter) LapRows(id client.ActivityID, laps []client.Record) []Row {
	return f.rows(id, RecordLaps, LapFields, laps)
}

// SegmentEffortRows renders segment efforts with their segment expanded in place
func (f *Formatter) SegmentEffortRows(id client.ActivityID, efforts []client.Record) []Row {
	return f.rows(id, RecordSegmentEfforts, SegmentEffortFields, efforts)
}

// SplitRows renders metric or standard splits; recordType names which
func (f *Formatter) SplitRows(id client.ActivityID, recordType string, splits []client.Record) []Row {
	return f.rows(id, recordType, SplitFields, splits)
}

// KudoRows renders the athletes who gave kudos
func (f *Formatter) KudoRows(id client.ActivityID, kudos []client.Record) []Row {
	return f.rows(id, RecordKudo, AthleteFields, kudos)
}

// CommentRows renders comments with their author expanded in place
func (f *Formatter) CommentRows(id client.ActivityID, comments []client.Record) []Row {
	return f.rows(id, RecordComment, CommentFields, comments)
}

func (f *Formatter) rows(id client.ActivityID, recordType string, fields []Field, recs []client.Record) []Row {
	rows := make([]Row, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, f.row(id, recordType, fields, rec))
	}
	return rows
}

func (f *Formatter) row(id client.ActivityID, recordType string, fields []Field, rec client.Record) Row {
	row := Row{strconv.FormatInt(int64(id), 10), recordType}
	return append(row, f.columns(fields, rec)...)
}

func (f *Formatter) columns(fields []Field, rec map[string]any) []string {
	cols := make([]string, 0, len(fields))
	for _, field := range fields {
		value, present := rec[field.Key]

		if field.Kind == Nested {
			nested, ok := value.(map[string]any)
			if !ok {
				if nr, isRecord := value.(client.Record); isRecord {
					nested, ok = nr, true
				}
			}
			if !ok {
				// absent, null or malformed: keep the column count stable
				nested = nil
			}
			cols = append(cols, f.columns(field.Fields, nested)...)
			continue
		}

		if !present {
			cols = append(cols, NoData)
			continue
		}
		cols = append(cols, f.Render(field, value))
	}
	return cols
}
