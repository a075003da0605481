package ingest

import (
	"example.com/fitingest/internal/decoder"
	"example.com/fitingest/internal/domain"
	"example.com/fitingest/internal/fields"
	"example.com/fitingest/internal/persistence"
)

// Plugin contributes extra fields to the records built from a file's
// messages. Every handler is present on the interface; a plugin embeds
// NoopPlugin and overrides only what it cares about, so dispatch is a direct
// call rather than a capability probe. A nil return contributes nothing.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// MatchesFile reports whether the plugin applies to the file. Checked
	// once per file, before any message is processed.
	MatchesFile(file *decoder.File) bool

	SessionEntry(file *decoder.File, activityID string, msg fields.Map) persistence.Record
	LapEntry(file *decoder.File, activityID string, msg fields.Map, lap int64) persistence.Record
	RecordEntry(file *decoder.File, activityID string, msg fields.Map, record int64) persistence.Record
	StepsEntry(file *decoder.File, activityID string, subSport domain.SubSport, msg fields.Map) persistence.Record
	CycleEntry(file *decoder.File, activityID string, subSport domain.SubSport, msg fields.Map) persistence.Record
	PaddleEntry(file *decoder.File, activityID string, subSport domain.SubSport, msg fields.Map) persistence.Record
}

// NoopPlugin is the embeddable default implementation of Plugin.
type NoopPlugin struct{}

func (NoopPlugin) Name() string                        { return "noop" }
func (NoopPlugin) MatchesFile(*decoder.File) bool      { return false }

func (NoopPlugin) SessionEntry(*decoder.File, string, fields.Map) persistence.Record {
	return nil
}

func (NoopPlugin) LapEntry(*decoder.File, string, fields.Map, int64) persistence.Record {
	return nil
}

func (NoopPlugin) RecordEntry(*decoder.File, string, fields.Map, int64) persistence.Record {
	return nil
}

func (NoopPlugin) StepsEntry(*decoder.File, string, domain.SubSport, fields.Map) persistence.Record {
	return nil
}

func (NoopPlugin) CycleEntry(*decoder.File, string, domain.SubSport, fields.Map) persistence.Record {
	return nil
}

func (NoopPlugin) PaddleEntry(*decoder.File, string, domain.SubSport, fields.Map) persistence.Record {
	return nil
}

// bridge holds the plugins that matched the current file and merges their
// contributions. Later plugins overwrite earlier ones on key collisions.
type bridge struct {
	plugins []Plugin
}

func newBridge(file *decoder.File, all []Plugin) *bridge {
	b := &bridge{}
	for _, p := range all {
		if p.MatchesFile(file) {
			b.plugins = append(b.plugins, p)
		}
	}
	return b
}

func (b *bridge) merge(into persistence.Record, contributions ...persistence.Record) {
	for _, c := range contributions {
		for k, v := range c {
			into[k] = v
		}
	}
}

func (b *bridge) session(file *decoder.File, activityID string, msg fields.Map) persistence.Record {
	out := persistence.Record{}
	for _, p := range b.plugins {
		b.merge(out, p.SessionEntry(file, activityID, msg))
	}
	return out
}

func (b *bridge) lap(file *decoder.File, activityID string, msg fields.Map, lap int64) persistence.Record {
	out := persistence.Record{}
	for _, p := range b.plugins {
		b.merge(out, p.LapEntry(file, activityID, msg, lap))
	}
	return out
}

func (b *bridge) record(file *decoder.File, activityID string, msg fields.Map, record int64) persistence.Record {
	out := persistence.Record{}
	for _, p := range b.plugins {
		b.merge(out, p.RecordEntry(file, activityID, msg, record))
	}
	return out
}

func (b *bridge) steps(file *decoder.File, activityID string, subSport domain.SubSport, msg fields.Map) persistence.Record {
	out := persistence.Record{}
	for _, p := range b.plugins {
		b.merge(out, p.StepsEntry(file, activityID, subSport, msg))
	}
	return out
}

func (b *bridge) cycle(file *decoder.File, activityID string, subSport domain.SubSport, msg fields.Map) persistence.Record {
	out := persistence.Record{}
	for _, p := range b.plugins {
		b.merge(out, p.CycleEntry(file, activityID, subSport, msg))
	}
	return out
}

func (b *bridge) paddle(file *decoder.File, activityID string, subSport domain.SubSport, msg fields.Map) persistence.Record {
	out := persistence.Record{}
	for _, p := range b.plugins {
		b.merge(out, p.PaddleEntry(file, activityID, subSport, msg))
	}
	return out
}
