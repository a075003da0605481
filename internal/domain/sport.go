// Package domain defines the sport taxonomy and identity rules for ingested activities.
package domain

// Sport is the closed set of activity classifications we accept from a device
// or companion metadata. Labels derived from richer metadata (trail_running,
// road_cycling, ...) are marked preferred and outrank the generic labels a
// device guesses on its own.
type Sport uint8

const (
	SportUnknown Sport = iota
	SportGeneric
	SportRunning
	SportTrailRunning
	SportStreetRunning
	SportTrackRunning
	SportTreadmillRunning
	SportWalking
	SportCasualWalking
	SportSpeedWalking
	SportHiking
	SportCycling
	SportRoadCycling
	SportMountainBiking
	SportGravelCycling
	SportIndoorCycling
	SportSwimming
	SportLapSwimming
	SportOpenWaterSwimming
	SportRowing
	SportStandUpPaddleboarding
	SportBoating
	SportFitnessEquipment
	SportAlpineSkiing
	SportSnowboarding
	SportTraining
	SportTransition
	SportAll
)

type sportInfo struct {
	name      string
	preferred bool
}

var sports = map[Sport]sportInfo{
	SportGeneric:               {"generic", false},
	SportRunning:               {"running", false},
	SportTrailRunning:          {"trail_running", true},
	SportStreetRunning:         {"street_running", true},
	SportTrackRunning:          {"track_running", true},
	SportTreadmillRunning:      {"treadmill_running", true},
	SportWalking:               {"walking", false},
	SportCasualWalking:         {"casual_walking", true},
	SportSpeedWalking:          {"speed_walking", true},
	SportHiking:                {"hiking", false},
	SportCycling:               {"cycling", false},
	SportRoadCycling:           {"road_cycling", true},
	SportMountainBiking:        {"mountain_biking", true},
	SportGravelCycling:         {"gravel_cycling", true},
	SportIndoorCycling:         {"indoor_cycling", true},
	SportSwimming:              {"swimming", false},
	SportLapSwimming:           {"lap_swimming", true},
	SportOpenWaterSwimming:     {"open_water_swimming", true},
	SportRowing:                {"rowing", false},
	SportStandUpPaddleboarding: {"stand_up_paddleboarding", false},
	SportBoating:               {"boating", false},
	SportFitnessEquipment:      {"fitness_equipment", false},
	SportAlpineSkiing:          {"alpine_skiing", false},
	SportSnowboarding:          {"snowboarding", false},
	SportTraining:              {"training", false},
	SportTransition:            {"transition", false},
	SportAll:                   {"all", false},
}

var sportsByName = func() map[string]Sport {
	byName := make(map[string]Sport, len(sports))
	for s, info := range sports {
		byName[info.name] = s
	}
	return byName
}()

// String returns the canonical lower_snake name, or "" for SportUnknown.
func (s Sport) String() string {
	return sports[s].name
}

// Preferred reports whether the label is specific enough to outrank a generic one.
func (s Sport) Preferred() bool {
	return sports[s].preferred
}

// ParseSport maps a stored or decoded label back onto the enumeration.
// Unrecognised or empty labels parse as SportUnknown.
func ParseSport(name string) Sport {
	return sportsByName[name]
}

// SubSport refines a Sport. The same preference rule applies: generic
// sub-classifications never replace specific ones.
type SubSport uint8

const (
	SubSportUnknown SubSport = iota
	SubSportGeneric
	SubSportTrail
	SubSportStreet
	SubSportTrack
	SubSportTreadmill
	SubSportRoad
	SubSportMountain
	SubSportGravelCycling
	SubSportIndoorCycling
	SubSportSpin
	SubSportIndoorRowing
	SubSportElliptical
	SubSportStairClimbing
	SubSportLapSwimming
	SubSportOpenWater
	SubSportStrengthTraining
	SubSportCardioTraining
	SubSportYoga
	SubSportAll
)

var subSports = map[SubSport]sportInfo{
	SubSportGeneric:          {"generic", false},
	SubSportTrail:            {"trail", true},
	SubSportStreet:           {"street", true},
	SubSportTrack:            {"track", true},
	SubSportTreadmill:        {"treadmill", true},
	SubSportRoad:             {"road", true},
	SubSportMountain:         {"mountain", true},
	SubSportGravelCycling:    {"gravel_cycling", true},
	SubSportIndoorCycling:    {"indoor_cycling", true},
	SubSportSpin:             {"spin", true},
	SubSportIndoorRowing:     {"indoor_rowing", true},
	SubSportElliptical:       {"elliptical", true},
	SubSportStairClimbing:    {"stair_climbing", true},
	SubSportLapSwimming:      {"lap_swimming", true},
	SubSportOpenWater:        {"open_water", true},
	SubSportStrengthTraining: {"strength_training", true},
	SubSportCardioTraining:   {"cardio_training", true},
	SubSportYoga:             {"yoga", true},
	SubSportAll:              {"all", false},
}

var subSportsByName = func() map[string]SubSport {
	byName := make(map[string]SubSport, len(subSports))
	for s, info := range subSports {
		byName[info.name] = s
	}
	return byName
}()

// String returns the canonical lower_snake name, or "" for SubSportUnknown.
func (s SubSport) String() string {
	return subSports[s].name
}

// Preferred reports whether the label is specific enough to outrank a generic one.
func (s SubSport) Preferred() bool {
	return subSports[s].preferred
}

// ParseSubSport maps a stored or decoded label back onto the enumeration.
func ParseSubSport(name string) SubSport {
	return subSportsByName[name]
}

// ChooseSport resolves the canonical sport/sub-sport for an activity that has
// been reported by more than one source. Current values arrive as the stored
// strings; each axis is resolved independently. A new value is adopted only
// when nothing is stored yet, or when it upgrades a non-preferred label to a
// preferred one. A specific label is never downgraded.
func ChooseSport(currentSport, currentSubSport string, newSport Sport, newSubSport SubSport) (Sport, SubSport) {
	sport := ParseSport(currentSport)
	subSport := ParseSubSport(currentSubSport)
	if newSport != SportUnknown && (sport == SportUnknown || (!sport.Preferred() && newSport.Preferred())) {
		sport = newSport
	}
	if newSubSport != SubSportUnknown && (subSport == SubSportUnknown || (!subSport.Preferred() && newSubSport.Preferred())) {
		subSport = newSubSport
	}
	return sport, subSport
}
