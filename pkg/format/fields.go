package format

// AthleteFields are the columns of the summary athlete attached to kudos and comments
var AthleteFields = []Field{
	{Key: "resource_state", Kind: Integer},
	{Key: "firstname", Kind: Text},
	{Key: "lastname", Kind: Text},
}

// CommentFields are the columns of a comment row
var CommentFields = []Field{
	{Key: "id", Kind: Integer},
	{Key: "activity_id", Kind: Integer},
	{Key: "post_id", Kind: Other},
	{Key: "resource_state", Kind: Integer},
	{Key: "text", Kind: QuotedText},
	{Key: "mentions_metadata", Kind: Other},
	{Key: "created_at", Kind: Text},
	{Key: "athlete", Kind: Nested, Fields: AthleteFields},
}

// SegmentFields are the columns of the segment inside a segment effort
var SegmentFields = []Field{
	{Key: "id", Kind: Integer},
	{Key: "name", Kind: QuotedText},
	{Key: "activity_type", Kind: Text},
	{Key: "distance", Kind: Distance},
	{Key: "average_grade", Kind: Float},
	{Key: "maximum_grade", Kind: Float},
	{Key: "elevation_high", Kind: Elevation},
	{Key: "elevation_low", Kind: Elevation},
	{Key: "start_latlng", Kind: List},
	{Key: "end_latlng", Kind: List},
	{Key: "climb_category", Kind: Integer},
	{Key: "city", Kind: Text},
	{Key: "state", Kind: Text},
	{Key: "country", Kind: Text},
	{Key: "private", Kind: Bool},
	{Key: "hazardous", Kind: Bool},
	{Key: "starred", Kind: Bool},
}

// SegmentEffortFields are the columns of a segment effort row
var SegmentEffortFields = []Field{
	{Key: "id", Kind: Integer},
	{Key: "resource_state", Kind: Integer},
	{Key: "name", Kind: QuotedText},
	{Key: "elapsed_time", Kind: Duration},
	{Key: "moving_time", Kind: Duration},
	{Key: "start_date", Kind: Text},
	{Key: "start_date_local", Kind: Text},
	{Key: "distance", Kind: Distance},
	{Key: "start_index", Kind: Integer},
	{Key: "end_index", Kind: Integer},
	{Key: "average_cadence", Kind: Float},
	{Key: "average_heartrate", Kind: Float},
	{Key: "max_heartrate", Kind: Float},
	{Key: "segment", Kind: Nested, Fields: SegmentFields},
	{Key: "kom_rank", Kind: Integer},
	{Key: "pr_rank", Kind: Integer},
	{Key: "achievements", Kind: Count},
	{Key: "hidden", Kind: Bool},
}

// SplitFields are the columns of a metric or standard split row
var SplitFields = []Field{
	{Key: "split", Kind: Integer},
	{Key: "distance", Kind: Distance},
	{Key: "elapsed_time", Kind: Duration},
	{Key: "moving_time", Kind: Duration},
	{Key: "elevation_difference", Kind: Elevation},
	{Key: "average_speed", Kind: Speed},
	{Key: "average_heartrate", Kind: Float},
	{Key: "pace_zone", Kind: Integer},
}

// LapFields are the columns of a lap row
var LapFields = []Field{
	{Key: "id", Kind: Integer},
	{Key: "resource_state", Kind: Integer},
	{Key: "name", Kind: Text},
	{Key: "elapsed_time", Kind: Duration},
	{Key: "moving_time", Kind: Duration},
	{Key: "start_date", Kind: Text},
	{Key: "start_date_local", Kind: Text},
	{Key: "distance", Kind: Distance},
	{Key: "start_index", Kind: Integer},
	{Key: "end_index", Kind: Integer},
	{Key: "total_elevation_gain", Kind: Elevation},
	{Key: "average_speed", Kind: Speed},
	{Key: "max_speed", Kind: Speed},
	{Key: "average_cadence", Kind: Float},
	{Key: "average_heartrate", Kind: Float},
	{Key: "max_heartrate", Kind: Float},
	{Key: "lap_index", Kind: Integer},
	{Key: "split", Kind: Integer},
	{Key: "pace_zone", Kind: Integer},
}

// ActivityFields are the columns of the activity detail row
var ActivityFields = []Field{
	{Key: "resource_state", Kind: Integer},
	{Key: "athlete", Kind: Other},
	{Key: "name", Kind: QuotedText},
	{Key: "distance", Kind: Distance},
	{Key: "moving_time", Kind: Duration},
	{Key: "elapsed_time", Kind: Duration},
	{Key: "total_elevation_gain", Kind: Elevation},
	{Key: "type", Kind: Text},
	{Key: "sport_type", Kind: Text},
	{Key: "id", Kind: Integer},
	{Key: "external_id", Kind: Text},
	{Key: "upload_id", Kind: Integer},
	{Key: "start_date", Kind: Text},
	{Key: "start_date_local", Kind: Text},
	{Key: "timezone", Kind: Text},
	{Key: "utc_offset", Kind: Float},
	{Key: "start_latlng", Kind: List},
	{Key: "end_latlng", Kind: List},
	{Key: "location_city", Kind: Text},
	{Key: "location_state", Kind: Text},
	{Key: "location_country", Kind: Text},
	{Key: "achievement_count", Kind: Integer},
	{Key: "kudos_count", Kind: Integer},
	{Key: "comment_count", Kind: Integer},
	{Key: "athlete_count", Kind: Integer},
	{Key: "photo_count", Kind: Integer},
	{Key: "map", Kind: Other},
	{Key: "photos", Kind: Other},
	{Key: "device_name", Kind: Text},
	{Key: "embed_token", Kind: Text},
	{Key: "available_zones", Kind: Other},
	{Key: "trainer", Kind: Bool},
	{Key: "commute", Kind: Bool},
	{Key: "manual", Kind: Bool},
	{Key: "private", Kind: Bool},
	{Key: "visibility", Kind: Text},
	{Key: "flagged", Kind: Bool},
	{Key: "gear_id", Kind: Text},
	{Key: "from_accepted_tag", Kind: Bool},
	{Key: "upload_id_str", Kind: Text},
	{Key: "average_speed", Kind: Speed},
	{Key: "max_speed", Kind: Speed},
	{Key: "average_cadence", Kind: Float},
	{Key: "average_temp", Kind: Float},
	{Key: "average_watts", Kind: Float},
	{Key: "weighted_average_watts", Kind: Integer},
	{Key: "kilojoules", Kind: Float},
	{Key: "device_watts", Kind: Bool},
	{Key: "has_heartrate", Kind: Bool},
	{Key: "average_heartrate", Kind: Float},
	{Key: "max_heartrate", Kind: Float},
	{Key: "heartrate_opt_out", Kind: Bool},
	{Key: "display_hide_heartrate_option", Kind: Bool},
	{Key: "max_watts", Kind: Integer},
	{Key: "elev_high", Kind: Elevation},
	{Key: "elev_low", Kind: Elevation},
	{Key: "pr_count", Kind: Integer},
	{Key: "total_photo_count", Kind: Integer},
	{Key: "has_kudoed", Kind: Bool},
	{Key: "suffer_score", Kind: Float},
	{Key: "description", Kind: QuotedText},
	{Key: "calories", Kind: Float},
	{Key: "perceived_exertion", Kind: Integer},
	{Key: "prefer_perceived_exertion", Kind: Bool},
	{Key: "segment_efforts", Kind: Count},
	{Key: "splits_metric", Kind: Count},
	{Key: "splits_standard", Kind: Count},
	{Key: "laps", Kind: Count},
}

// Compound record types, in the order they are written after an activity row
const (
	RecordLaps           = "laps"
	RecordSegmentEfforts = "segment_efforts"
	RecordSplitsMetric   = "splits_metric"
	RecordSplitsStandard = "splits_standard"
)

// Other record types
const (
	RecordActivity = "Activity"
	RecordKudo     = "kudo"
	RecordComment  = "comment"
)

// CompoundRecords lists the nested lists of an activity detail that get rows of their own
var CompoundRecords = []string{RecordLaps, RecordSegmentEfforts, RecordSplitsMetric, RecordSplitsStandard}

func compoundFields(recordType string) []Field {
	switch recordType {
	case RecordLaps:
		return LapFields
	case RecordSegmentEfforts:
		return SegmentEffortFields
	case RecordSplitsMetric, RecordSplitsStandard:
		return SplitFields
	}
	return nil
}
