package ingest

import (
	"context"
	"time"

	"example.com/fitingest/internal/decoder"
	"example.com/fitingest/internal/domain"
	"example.com/fitingest/internal/fields"
	"example.com/fitingest/internal/persistence"
)

// Policy controls how implausible readings are treated.
type Policy struct {
	// DropImplausible drops non-positive biometric readings (heart rate,
	// respiration) instead of storing them. On by default.
	DropImplausible bool
}

// DefaultPolicy matches the historical importer behaviour.
func DefaultPolicy() Policy {
	return Policy{DropImplausible: true}
}

// sportHandler writes the sport-specific variant row for a resolved sport.
type sportHandler func(r *fileRun, ctx context.Context, subSport domain.SubSport, msg fields.Map) error

// sportHandlers is the closed dispatch table from resolved sport to variant
// writer. Sports without an entry get the activity row only; that is logged,
// not an error. fitness_equipment is handled separately, it re-dispatches on
// the sub-sport.
var sportHandlers = map[domain.Sport]sportHandler{
	domain.SportRunning:               (*fileRun).writeStepsEntry,
	domain.SportTrailRunning:          (*fileRun).writeStepsEntry,
	domain.SportStreetRunning:         (*fileRun).writeStepsEntry,
	domain.SportTrackRunning:          (*fileRun).writeStepsEntry,
	domain.SportTreadmillRunning:      (*fileRun).writeStepsEntry,
	domain.SportWalking:               (*fileRun).writeStepsEntry,
	domain.SportCasualWalking:         (*fileRun).writeStepsEntry,
	domain.SportSpeedWalking:          (*fileRun).writeStepsEntry,
	domain.SportHiking:                (*fileRun).writeStepsEntry,
	domain.SportCycling:               (*fileRun).writeCycleEntry,
	domain.SportRoadCycling:           (*fileRun).writeCycleEntry,
	domain.SportMountainBiking:        (*fileRun).writeCycleEntry,
	domain.SportGravelCycling:         (*fileRun).writeCycleEntry,
	domain.SportIndoorCycling:         (*fileRun).writeCycleEntry,
	domain.SportStandUpPaddleboarding: (*fileRun).writePaddleEntry,
	domain.SportRowing:                (*fileRun).writePaddleEntry,
}

// fileRun carries the per-file routing state: open scopes, the matched
// plugin bridge, and the lap/record sequence counters assigned by arrival
// order.
type fileRun struct {
	ing    *Ingestor
	file   *decoder.File
	id     string // activity id derived from the file identity
	bridge *bridge

	activity   persistence.Session
	monitoring persistence.Session
	device     persistence.Session

	lapNum    int64
	recordNum int64
	warnings  []error
}

// route dispatches one message. A returned error is fatal for the file;
// reportable per-message conditions are collected as warnings instead.
func (r *fileRun) route(ctx context.Context, msg decoder.Message) error {
	recordMessage(string(msg.Type))
	switch msg.Type {
	case decoder.MessageSession:
		return r.writeSessionEntry(ctx, msg.Fields)
	case decoder.MessageLap:
		n := r.lapNum
		r.lapNum++
		return r.writeLapEntry(ctx, msg.Fields, n)
	case decoder.MessageRecord:
		n := r.recordNum
		r.recordNum++
		return r.writeRecordEntry(ctx, msg.Fields, n)
	case decoder.MessageMonitoringInfo:
		return r.writeMonitoringInfoEntry(ctx, msg.Fields)
	case decoder.MessageMonitoring:
		return r.writeMonitoringEntry(ctx, msg.Fields)
	case decoder.MessageRespiration:
		return r.writeRespirationEntry(ctx, msg.Fields)
	case decoder.MessagePulseOx:
		return r.writePulseOxEntry(ctx, msg.Fields)
	default:
		r.ing.logger.Debug("unhandled message type", "type", msg.Type, "file", r.file.Name)
		return nil
	}
}

// warn records a reportable per-message condition without failing the file.
func (r *fileRun) warn(err error) {
	r.warnings = append(r.warnings, err)
	recordWarning(warningKind(err))
	r.ing.logger.Warn("message skipped", "file", r.file.Name, "error", err)
}

// str reads a string field, downgrading a type mismatch to a warning.
func (r *fileRun) str(msg fields.Map, name string) string {
	s, err := msg.String(name)
	if err != nil {
		r.warn(err)
	}
	return s
}

func (r *fileRun) writeSessionEntry(ctx context.Context, msg fields.Map) error {
	rec := persistence.Record{
		"activity_id":               r.id,
		"start_time":                timeOrNil(msg, "start_time"),
		"stop_time":                 timeOrNil(msg, "timestamp"),
		"elapsed_time":              msg.Get("total_elapsed_time", nil),
		"moving_time":               msg.Get("total_timer_time", nil),
		"start_lat":                 msg.Get("start_position_lat", nil),
		"start_long":                msg.Get("start_position_long", nil),
		"stop_lat":                  msg.Get("end_position_lat", nil),
		"stop_long":                 msg.Get("end_position_long", nil),
		"distance":                  msg.Get("total_distance", nil),
		"cycles":                    msg.Get("total_cycles", nil),
		"laps":                      msg.Get("num_laps", nil),
		"avg_hr":                    msg.Get("avg_heart_rate", nil),
		"max_hr":                    msg.Get("max_heart_rate", nil),
		"avg_rr":                    msg.Get("avg_respiration_rate", nil),
		"max_rr":                    msg.Get("max_respiration_rate", nil),
		"calories":                  msg.Get("total_calories", nil),
		"avg_cadence":               msg.Get("avg_cadence", nil),
		"max_cadence":               msg.Get("max_cadence", nil),
		"avg_speed":                 msg.Get("avg_speed", nil),
		"max_speed":                 msg.Get("max_speed", nil),
		"ascent":                    msg.Get("total_ascent", nil),
		"descent":                   msg.Get("total_descent", nil),
		"max_temperature":           msg.Get("max_temperature", nil),
		"avg_temperature":           msg.Get("avg_temperature", nil),
		"training_effect":           msg.Get("total_training_effect", nil),
		"anaerobic_training_effect": msg.Get("total_anaerobic_training_effect", nil),
	}
	r.bridge.merge(rec, r.bridge.session(r.file, r.id, msg))

	newSport := domain.ParseSport(r.str(msg, "sport"))
	newSubSport := domain.ParseSubSport(r.str(msg, "sub_sport"))

	// Companion metadata can carry better sport labels than the device
	// stream, so an existing row's classification is only ever upgraded.
	sport, subSport := newSport, newSubSport
	current, err := r.activity.GetByID(ctx, persistence.Activities, persistence.Record{"activity_id": r.id})
	if err != nil {
		return err
	}
	if current != nil {
		sport, subSport = domain.ChooseSport(asString(current["sport"]), asString(current["sub_sport"]), newSport, newSubSport)
	}
	if sport != domain.SportUnknown {
		rec["sport"] = sport.String()
	}
	if subSport != domain.SubSportUnknown {
		rec["sub_sport"] = subSport.String()
	}

	opts := persistence.UpsertOptions{IgnoreNone: true, IgnoreZero: true}
	if err := persistence.Upsert(ctx, r.activity, persistence.Activities, rec, opts); err != nil {
		return err
	}
	return r.dispatchSport(ctx, sport, subSport, msg)
}

func (r *fileRun) dispatchSport(ctx context.Context, sport domain.Sport, subSport domain.SubSport, msg fields.Map) error {
	if sport == domain.SportFitnessEquipment {
		// The sub-sport names the real sport for gym equipment sessions.
		second := domain.ParseSport(subSport.String())
		if handler, ok := sportHandlers[second]; ok {
			return handler(r, ctx, subSport, msg)
		}
		r.ing.logger.Info("no sub sport handler", "sub_sport", subSport.String(), "file", r.file.Name)
		return nil
	}
	handler, ok := sportHandlers[sport]
	if !ok {
		r.ing.logger.Info("no sport handler", "sport", sport.String(), "file", r.file.Name)
		return nil
	}
	return handler(r, ctx, subSport, msg)
}

func (r *fileRun) writeStepsEntry(ctx context.Context, subSport domain.SubSport, msg fields.Map) error {
	rec := persistence.Record{
		"activity_id":              r.id,
		"steps":                    msg.Get("total_steps", nil),
		"avg_pace":                 paceOrNil(msg, "avg_speed"),
		"max_pace":                 paceOrNil(msg, "max_speed"),
		"avg_steps_per_min":        msg.Get("avg_steps_per_min", nil),
		"max_steps_per_min":        msg.Get("max_steps_per_min", nil),
		"avg_step_length":          msg.Get("avg_step_length", nil),
		"avg_vertical_ratio":       msg.Get("avg_vertical_ratio", nil),
		"avg_vertical_oscillation": msg.Get("avg_vertical_oscillation", nil),
		"avg_gct_balance":          msg.Get("avg_stance_time_balance", nil),
		"avg_ground_contact_time":  msg.Get("avg_stance_time", nil),
		"avg_stance_time_percent":  msg.Get("avg_stance_time_percent", nil),
	}
	r.bridge.merge(rec, r.bridge.steps(r.file, r.id, subSport, msg))
	return persistence.Upsert(ctx, r.activity, persistence.StepsActivities, rec,
		persistence.UpsertOptions{IgnoreNone: true, IgnoreZero: true})
}

func (r *fileRun) writeCycleEntry(ctx context.Context, subSport domain.SubSport, msg fields.Map) error {
	rec := persistence.Record{
		"activity_id": r.id,
		"strokes":     msg.Get("total_strokes", nil),
	}
	r.bridge.merge(rec, r.bridge.cycle(r.file, r.id, subSport, msg))
	return persistence.Upsert(ctx, r.activity, persistence.CycleActivities, rec,
		persistence.UpsertOptions{IgnoreNone: true, IgnoreZero: true})
}

func (r *fileRun) writePaddleEntry(ctx context.Context, subSport domain.SubSport, msg fields.Map) error {
	rec := persistence.Record{
		"activity_id":         r.id,
		"strokes":             msg.Get("total_strokes", nil),
		"avg_stroke_distance": msg.Get("avg_stroke_distance", nil),
	}
	r.bridge.merge(rec, r.bridge.paddle(r.file, r.id, subSport, msg))
	return persistence.Upsert(ctx, r.activity, persistence.PaddleActivities, rec,
		persistence.UpsertOptions{IgnoreNone: true, IgnoreZero: true})
}

// Laps arrive from a single authoritative source, so they are write-once per
// (activity_id, lap): a key that already exists is a silent no-op.
func (r *fileRun) writeLapEntry(ctx context.Context, msg fields.Map, lap int64) error {
	key := persistence.Record{"activity_id": r.id, "lap": lap}
	exists, err := r.activity.Exists(ctx, persistence.ActivityLaps, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	rec := persistence.Record{
		"activity_id":     r.id,
		"lap":             lap,
		"start_time":      timeOrNil(msg, "start_time"),
		"stop_time":       timeOrNil(msg, "timestamp"),
		"elapsed_time":    msg.Get("total_elapsed_time", nil),
		"moving_time":     msg.Get("total_timer_time", nil),
		"start_lat":       msg.Get("start_position_lat", nil),
		"start_long":      msg.Get("start_position_long", nil),
		"stop_lat":        msg.Get("end_position_lat", nil),
		"stop_long":       msg.Get("end_position_long", nil),
		"distance":        msg.Get("total_distance", nil),
		"cycles":          msg.Get("total_cycles", nil),
		"avg_hr":          msg.Get("avg_heart_rate", nil),
		"max_hr":          msg.Get("max_heart_rate", nil),
		"avg_rr":          msg.Get("avg_respiration_rate", nil),
		"max_rr":          msg.Get("max_respiration_rate", nil),
		"calories":        msg.Get("total_calories", nil),
		"avg_cadence":     msg.Get("avg_cadence", nil),
		"max_cadence":     msg.Get("max_cadence", nil),
		"avg_speed":       msg.Get("avg_speed", nil),
		"max_speed":       msg.Get("max_speed", nil),
		"ascent":          msg.Get("total_ascent", nil),
		"descent":         msg.Get("total_descent", nil),
		"max_temperature": msg.Get("max_temperature", nil),
		"avg_temperature": msg.Get("avg_temperature", nil),
	}
	r.bridge.merge(rec, r.bridge.lap(r.file, r.id, msg, lap))
	return persistence.Upsert(ctx, r.activity, persistence.ActivityLaps, rec,
		persistence.UpsertOptions{IgnoreNone: true})
}

// Records share the lap policy: write-once per (activity_id, record).
func (r *fileRun) writeRecordEntry(ctx context.Context, msg fields.Map, record int64) error {
	key := persistence.Record{"activity_id": r.id, "record": record}
	exists, err := r.activity.Exists(ctx, persistence.ActivityRecords, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	rec := persistence.Record{
		"activity_id":   r.id,
		"record":        record,
		"timestamp":     timeOrNil(msg, "timestamp"),
		"position_lat":  msg.Get("position_lat", nil),
		"position_long": msg.Get("position_long", nil),
		"distance":      msg.Get("distance", nil),
		"cadence":       msg.Get("cadence", nil),
		"hr":            msg.Get("heart_rate", nil),
		"rr":            msg.Get("respiration_rate", nil),
		"altitude":      msg.Get("altitude", nil),
		"speed":         msg.Get("speed", nil),
		"temperature":   msg.Get("temperature", nil),
	}
	r.bridge.merge(rec, r.bridge.record(r.file, r.id, msg, record))
	return persistence.Upsert(ctx, r.activity, persistence.ActivityRecords, rec,
		persistence.UpsertOptions{IgnoreNone: true})
}

// A monitoring_info message can report several simultaneous activity-type
// contexts; each list element becomes its own row, paired with the same index
// of the parallel conversion-factor lists.
func (r *fileRun) writeMonitoringInfoEntry(ctx context.Context, msg fields.Map) error {
	activityTypes, err := msg.List("activity_type")
	if err != nil {
		r.warn(err)
		return nil
	}
	if len(activityTypes) == 0 {
		return nil
	}
	toDistance, err := msg.List("cycles_to_distance")
	if err != nil {
		r.warn(err)
		return nil
	}
	toCalories, err := msg.List("cycles_to_calories")
	if err != nil {
		r.warn(err)
		return nil
	}
	if len(toDistance) != len(activityTypes) {
		r.warn(&ListLengthMismatchError{Field: "cycles_to_distance", Want: len(activityTypes), Got: len(toDistance)})
		return nil
	}
	if len(toCalories) != len(activityTypes) {
		r.warn(&ListLengthMismatchError{Field: "cycles_to_calories", Want: len(activityTypes), Got: len(toCalories)})
		return nil
	}

	ts, err := msg.Time("local_timestamp")
	if err != nil {
		r.warn(err)
		return nil
	}
	if ts.IsZero() {
		if ts, err = msg.Time("timestamp"); err != nil {
			r.warn(err)
			return nil
		}
	}
	if ts.IsZero() {
		return nil
	}

	var metabolicRate any
	if v, ok, err := msg.Int("resting_metabolic_rate"); err != nil {
		r.warn(err)
	} else if ok {
		metabolicRate = v
	}

	for i, activityType := range activityTypes {
		entry := persistence.Record{
			"timestamp":              ts,
			"activity_type":          asString(activityType),
			"file_id":                r.file.ID,
			"resting_metabolic_rate": metabolicRate,
			"cycles_to_distance":     toDistance[i],
			"cycles_to_calories":     toCalories[i],
		}
		if err := persistence.Upsert(ctx, r.monitoring, persistence.MonitoringInfo, entry,
			persistence.UpsertOptions{IgnoreNone: true}); err != nil {
			return err
		}
	}
	return nil
}

// writeMonitoringEntry coalesces four parallel views (heart rate, intensity,
// climb, generic) from one monitoring message; each is written only when the
// intersection with its table carries a real value.
func (r *fileRun) writeMonitoringEntry(ctx context.Context, msg fields.Map) error {
	ts, err := msg.Time("timestamp")
	if err != nil {
		r.warn(err)
		return nil
	}
	if ts.IsZero() {
		return nil
	}

	entry := persistence.Record{}
	for k, v := range msg {
		if v != nil {
			entry[k] = v
		}
	}
	// Daily summaries are stamped at local midnight but describe the day
	// that just ended; shift them one second back so they land on it.
	if isLocalMidnight(ts) {
		ts = ts.Add(-time.Second)
	}
	entry["timestamp"] = ts

	opts := persistence.UpsertOptions{IgnoreNone: true}

	hr, hasHR, err := msg.Float("heart_rate")
	if err != nil {
		r.warn(err)
		hasHR = false
	}
	if hasHR && (hr > 0 || !r.ing.policy.DropImplausible) {
		if err := persistence.Upsert(ctx, r.monitoring, persistence.MonitoringHeartRate, entry, opts); err != nil {
			return err
		}
	}
	if err := persistence.Upsert(ctx, r.monitoring, persistence.MonitoringIntensity, entry, opts); err != nil {
		return err
	}
	if err := persistence.Upsert(ctx, r.monitoring, persistence.MonitoringClimb, entry, opts); err != nil {
		return err
	}
	if !msg.Has("activity_type") {
		// The generic view is keyed (timestamp, activity_type); messages
		// that carry no context land under the generic label.
		entry["activity_type"] = domain.SportGeneric.String()
	}
	return persistence.Upsert(ctx, r.monitoring, persistence.Monitoring, entry, opts)
}

// Respiration messages are only legal in monitoring_b files. A non-positive
// rate is an absent reading, not an observation.
func (r *fileRun) writeRespirationEntry(ctx context.Context, msg fields.Map) error {
	if r.file.Type != decoder.FileTypeMonitoringB {
		r.warn(&TaxonomyError{Message: decoder.MessageRespiration, FileType: r.file.Type})
		return nil
	}
	rr, ok, err := msg.Float("respiration_rate")
	if err != nil {
		r.warn(err)
		return nil
	}
	if !ok || (rr <= 0 && r.ing.policy.DropImplausible) {
		return nil
	}
	ts, err := msg.Time("timestamp")
	if err != nil {
		r.warn(err)
		return nil
	}
	if ts.IsZero() {
		return nil
	}
	return persistence.Upsert(ctx, r.monitoring, persistence.MonitoringRespirationRate,
		persistence.Record{"timestamp": ts, "rr": rr},
		persistence.UpsertOptions{IgnoreNone: true})
}

// Pulse ox shares the respiration taxonomy rule; any present value is stored.
func (r *fileRun) writePulseOxEntry(ctx context.Context, msg fields.Map) error {
	if r.file.Type != decoder.FileTypeMonitoringB {
		r.warn(&TaxonomyError{Message: decoder.MessagePulseOx, FileType: r.file.Type})
		return nil
	}
	pulseOx, ok, err := msg.Float("pulse_ox")
	if err != nil {
		r.warn(err)
		return nil
	}
	if !ok {
		return nil
	}
	ts, err := msg.Time("timestamp")
	if err != nil {
		r.warn(err)
		return nil
	}
	if ts.IsZero() {
		return nil
	}
	return persistence.Upsert(ctx, r.monitoring, persistence.MonitoringPulseOx,
		persistence.Record{"timestamp": ts, "pulse_ox": pulseOx},
		persistence.UpsertOptions{IgnoreNone: true})
}

func timeOrNil(msg fields.Map, name string) any {
	ts, err := msg.Time(name)
	if err != nil || ts.IsZero() {
		return nil
	}
	return ts
}

// paceOrNil converts a speed in m/s into seconds per kilometre.
func paceOrNil(msg fields.Map, name string) any {
	speed, ok, err := msg.Float(name)
	if err != nil || !ok || speed <= 0 {
		return nil
	}
	return 1000 / speed
}

func isLocalMidnight(ts time.Time) bool {
	return ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 && ts.Nanosecond() == 0
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
