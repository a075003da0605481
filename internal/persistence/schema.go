package persistence

// Table declares the shape of one stored table: its key and the full column
// set. Backends use it to build writes restricted to the columns a candidate
// actually carries; Intersection uses it to drop fields no table owns.
type Table struct {
	Name    string
	Key     []string
	Columns []string
}

// IsKey reports whether col is part of the table's identity.
func (t Table) IsKey(col string) bool {
	for _, k := range t.Key {
		if k == col {
			return true
		}
	}
	return false
}

// Shared device/file grouping.
var (
	Files = Table{
		Name: "files",
		Key:  []string{"id"},
		Columns: []string{
			"id", "name", "type", "serial_number",
		},
	}
)

// Activity grouping. Time-ish metric columns hold seconds, speeds m/s,
// distances meters, temperatures Celsius, positions decimal degrees.
var (
	Activities = Table{
		Name: "activities",
		Key:  []string{"activity_id"},
		Columns: []string{
			"activity_id", "name", "description", "type", "course_id",
			"start_time", "stop_time", "elapsed_time", "moving_time",
			"sport", "sub_sport",
			"start_lat", "start_long", "stop_lat", "stop_long",
			"distance", "cycles", "laps",
			"avg_hr", "max_hr", "avg_rr", "max_rr",
			"calories", "avg_cadence", "max_cadence",
			"avg_speed", "max_speed", "ascent", "descent",
			"max_temperature", "min_temperature", "avg_temperature",
			"training_effect", "anaerobic_training_effect",
		},
	}

	ActivityLaps = Table{
		Name: "activity_laps",
		Key:  []string{"activity_id", "lap"},
		Columns: []string{
			"activity_id", "lap",
			"start_time", "stop_time", "elapsed_time", "moving_time",
			"start_lat", "start_long", "stop_lat", "stop_long",
			"distance", "cycles",
			"avg_hr", "max_hr", "avg_rr", "max_rr",
			"calories", "avg_cadence", "max_cadence",
			"avg_speed", "max_speed", "ascent", "descent",
			"max_temperature", "min_temperature", "avg_temperature",
		},
	}

	ActivityRecords = Table{
		Name: "activity_records",
		Key:  []string{"activity_id", "record"},
		Columns: []string{
			"activity_id", "record", "timestamp",
			"position_lat", "position_long",
			"distance", "cadence", "altitude", "hr", "rr", "speed", "temperature",
		},
	}

	StepsActivities = Table{
		Name: "steps_activities",
		Key:  []string{"activity_id"},
		Columns: []string{
			"activity_id", "steps",
			"avg_pace", "avg_moving_pace", "max_pace",
			"avg_steps_per_min", "max_steps_per_min", "avg_step_length",
			"avg_vertical_ratio", "avg_vertical_oscillation",
			"avg_gct_balance", "avg_ground_contact_time", "avg_stance_time_percent",
			"vo2_max",
		},
	}

	CycleActivities = Table{
		Name: "cycle_activities",
		Key:  []string{"activity_id"},
		Columns: []string{
			"activity_id", "strokes", "vo2_max",
		},
	}

	PaddleActivities = Table{
		Name: "paddle_activities",
		Key:  []string{"activity_id"},
		Columns: []string{
			"activity_id", "strokes", "avg_stroke_distance",
		},
	}
)

// Monitoring grouping. Each table is an independent partial view of the same
// instant; one incoming message may feed several of them.
var (
	MonitoringInfo = Table{
		Name: "monitoring_info",
		Key:  []string{"timestamp", "activity_type"},
		Columns: []string{
			"timestamp", "activity_type", "file_id",
			"resting_metabolic_rate", "cycles_to_distance", "cycles_to_calories",
		},
	}

	MonitoringHeartRate = Table{
		Name: "monitoring_hr",
		Key:  []string{"timestamp"},
		Columns: []string{
			"timestamp", "heart_rate",
		},
	}

	MonitoringIntensity = Table{
		Name: "monitoring_intensity",
		Key:  []string{"timestamp"},
		Columns: []string{
			"timestamp", "moderate_activity_time", "vigorous_activity_time",
		},
	}

	MonitoringClimb = Table{
		Name: "monitoring_climb",
		Key:  []string{"timestamp"},
		Columns: []string{
			"timestamp", "ascent", "descent", "cum_ascent", "cum_descent",
		},
	}

	Monitoring = Table{
		Name: "monitoring",
		Key:  []string{"timestamp", "activity_type"},
		Columns: []string{
			"timestamp", "activity_type", "intensity", "duration", "distance",
			"cum_active_time", "active_calories", "steps", "strokes", "cycles",
		},
	}

	MonitoringRespirationRate = Table{
		Name: "monitoring_rr",
		Key:  []string{"timestamp"},
		Columns: []string{
			"timestamp", "rr",
		},
	}

	MonitoringPulseOx = Table{
		Name: "monitoring_pulse_ox",
		Key:  []string{"timestamp"},
		Columns: []string{
			"timestamp", "pulse_ox",
		},
	}
)
