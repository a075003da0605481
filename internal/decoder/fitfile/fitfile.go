// Package fitfile adapts binary FIT activity files onto the decoder contract.
// Monitoring files reach the ingestion core pre-decoded over the message bus,
// so this adapter only handles the activity file type.
package fitfile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	fitdecoder "github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"example.com/fitingest/internal/decoder"
	"example.com/fitingest/internal/fields"
)

// FIT invalid sentinels per scalar width.
const (
	invalidUint8  = 0xFF
	invalidUint16 = 0xFFFF
	invalidUint32 = 0xFFFFFFFF
	invalidSint32 = 0x7FFFFFFF
)

// semicircleDegrees converts FIT semicircles to decimal degrees (2^31 / 180).
const semicircleDegrees = 11930464.7111

// Decode parses one FIT activity file. Messages come out grouped session,
// lap, record, each group in file order; FIT devices emit records before the
// summaries, so grouping restores the order downstream expects.
func Decode(name string, data []byte) (*decoder.File, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("fitfile: empty data")
	}

	file := &decoder.File{
		ID:   filepath.Base(name),
		Name: filepath.Base(name),
	}
	var sessions, laps, records []decoder.Message

	fitDec := fitdecoder.New(bytes.NewReader(data))
	for fitDec.Next() {
		fitData, err := fitDec.Decode()
		if err != nil {
			return nil, fmt.Errorf("fitfile: decode %s: %w", name, err)
		}
		for i := range fitData.Messages {
			msg := &fitData.Messages[i]
			switch msg.Num {
			case typedef.MesgNumFileId:
				fileID := mesgdef.NewFileId(msg)
				file.Type = fileType(fileID.Type)
				if fileID.SerialNumber != invalidUint32 {
					file.Serial = int64(fileID.SerialNumber)
				}
			case typedef.MesgNumSession:
				sessions = append(sessions, decoder.Message{
					Type:   decoder.MessageSession,
					Fields: sessionFields(mesgdef.NewSession(msg)),
				})
			case typedef.MesgNumLap:
				laps = append(laps, decoder.Message{
					Type:   decoder.MessageLap,
					Fields: lapFields(mesgdef.NewLap(msg)),
				})
			case typedef.MesgNumRecord:
				records = append(records, decoder.Message{
					Type:   decoder.MessageRecord,
					Fields: recordFields(mesgdef.NewRecord(msg)),
				})
			}
		}
	}

	if file.Type != decoder.FileTypeActivity {
		return nil, fmt.Errorf("fitfile: %s: unsupported file type %q", name, file.Type)
	}
	file.Messages = append(file.Messages, sessions...)
	file.Messages = append(file.Messages, laps...)
	file.Messages = append(file.Messages, records...)
	return file, nil
}

func fileType(t typedef.File) decoder.FileType {
	switch t {
	case typedef.FileActivity:
		return decoder.FileTypeActivity
	case typedef.FileMonitoringA:
		return decoder.FileTypeMonitoringA
	case typedef.FileMonitoringB:
		return decoder.FileTypeMonitoringB
	default:
		return decoder.FileTypeUnknown
	}
}

func sessionFields(s *mesgdef.Session) fields.Map {
	m := fields.Map{
		"sport":     s.Sport.String(),
		"sub_sport": s.SubSport.String(),
	}
	putTime(m, "start_time", s.StartTime)
	putTime(m, "timestamp", s.Timestamp)
	putScaledUint32(m, "total_elapsed_time", uint32(s.TotalElapsedTime), 1000)
	putScaledUint32(m, "total_timer_time", uint32(s.TotalTimerTime), 1000)
	putScaledUint32(m, "total_distance", uint32(s.TotalDistance), 100)
	putUint32(m, "total_cycles", uint32(s.TotalCycles))
	putUint16(m, "num_laps", s.NumLaps)
	putUint16(m, "total_calories", s.TotalCalories)
	putUint8(m, "avg_heart_rate", s.AvgHeartRate)
	putUint8(m, "max_heart_rate", s.MaxHeartRate)
	putUint8(m, "avg_cadence", s.AvgCadence)
	putUint8(m, "max_cadence", s.MaxCadence)
	putScaledUint16(m, "avg_speed", s.AvgSpeed, 1000)
	putScaledUint16(m, "max_speed", s.MaxSpeed, 1000)
	putUint16(m, "total_ascent", s.TotalAscent)
	putUint16(m, "total_descent", s.TotalDescent)
	putSemicircles(m, "start_position_lat", s.StartPositionLat)
	putSemicircles(m, "start_position_long", s.StartPositionLong)
	putSemicircles(m, "end_position_lat", s.EndPositionLat)
	putSemicircles(m, "end_position_long", s.EndPositionLong)
	return m
}

func lapFields(l *mesgdef.Lap) fields.Map {
	m := fields.Map{}
	putTime(m, "start_time", l.StartTime)
	putTime(m, "timestamp", l.Timestamp)
	putScaledUint32(m, "total_elapsed_time", uint32(l.TotalElapsedTime), 1000)
	putScaledUint32(m, "total_timer_time", uint32(l.TotalTimerTime), 1000)
	putScaledUint32(m, "total_distance", uint32(l.TotalDistance), 100)
	putUint32(m, "total_cycles", uint32(l.TotalCycles))
	putUint16(m, "total_calories", l.TotalCalories)
	putUint8(m, "avg_heart_rate", l.AvgHeartRate)
	putUint8(m, "max_heart_rate", l.MaxHeartRate)
	putUint8(m, "avg_cadence", l.AvgCadence)
	putUint8(m, "max_cadence", l.MaxCadence)
	putScaledUint16(m, "avg_speed", l.AvgSpeed, 1000)
	putScaledUint16(m, "max_speed", l.MaxSpeed, 1000)
	putUint16(m, "total_ascent", l.TotalAscent)
	putUint16(m, "total_descent", l.TotalDescent)
	putSemicircles(m, "start_position_lat", l.StartPositionLat)
	putSemicircles(m, "start_position_long", l.StartPositionLong)
	putSemicircles(m, "end_position_lat", l.EndPositionLat)
	putSemicircles(m, "end_position_long", l.EndPositionLong)
	return m
}

func recordFields(r *mesgdef.Record) fields.Map {
	m := fields.Map{}
	putTime(m, "timestamp", r.Timestamp)
	putSemicircles(m, "position_lat", r.PositionLat)
	putSemicircles(m, "position_long", r.PositionLong)
	putScaledUint32(m, "distance", r.Distance, 100)
	putUint8(m, "heart_rate", r.HeartRate)
	putUint8(m, "cadence", r.Cadence)
	putScaledUint16(m, "speed", r.Speed, 1000)
	if r.Altitude != invalidUint16 {
		m["altitude"] = float64(r.Altitude)/5 - 500
	}
	if r.Temperature != 0x7F {
		m["temperature"] = float64(r.Temperature)
	}
	return m
}

func putTime(m fields.Map, name string, ts time.Time) {
	if !ts.IsZero() {
		m[name] = ts.UTC()
	}
}

func putUint8(m fields.Map, name string, v uint8) {
	if v != invalidUint8 {
		m[name] = int64(v)
	}
}

func putUint16(m fields.Map, name string, v uint16) {
	if v != invalidUint16 {
		m[name] = int64(v)
	}
}

func putUint32(m fields.Map, name string, v uint32) {
	if v != invalidUint32 {
		m[name] = int64(v)
	}
}

func putScaledUint16(m fields.Map, name string, v uint16, scale float64) {
	if v != invalidUint16 {
		m[name] = float64(v) / scale
	}
}

func putScaledUint32(m fields.Map, name string, v uint32, scale float64) {
	if v != invalidUint32 {
		m[name] = float64(v) / scale
	}
}

func putSemicircles(m fields.Map, name string, v int32) {
	if v != invalidSint32 {
		m[name] = float64(v) / semicircleDegrees
	}
}
