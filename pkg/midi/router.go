package midi

import (
	"sync"
	"time"

	"github.com/noiseloop/midicollab/pkg/expression"
)

// Per-note controller assignments, following spec.md §9's open question:
// the source's controller-type enum collides several numeric values (e.g.
// Brightness and Timbre both land on CC74). The numeric value is
// authoritative here; MIR resolves any such collision to slide, matching
// the common MPE third-dimension mapping, and leaves finer semantic
// disambiguation to the caller.
const (
	ccVolume     = 7
	ccExpression = 11
	ccSlide      = 74
)

// NoteKey identifies an active note within a UMP function-block group,
// channel, and note number — the keying spec.md §4.1 specifies for the
// active-notes table (broader than expression.NoteID, which omits group).
type NoteKey struct {
	Group   int
	Channel int
	Note    int
}

type zoneGlobals struct {
	volume     float64
	expression float64
}

// Router is the MIDI Ingest & Routing component: it normalizes MIDI 1.0
// bytes, MIDI 2.0 UMP words, and MPE zone messages into expression.Record
// updates and classified Events.
type Router struct {
	mu sync.Mutex

	zones ZoneConfig
	mcm   *MCMDetector

	active   map[NoteKey]*expression.Record
	bindings map[int]NoteKey // channel -> currently bound note key, for per-note routing

	globals map[int]*zoneGlobals // keyed by zone master channel (0 or 15)

	sink *EventSink
	now  func() time.Time
}

// NewRouter constructs a Router with no configured MPE zones. Zones are
// configured via ConfigureZone or detected automatically from RPN traffic
// via ObserveControlChange.
func NewRouter(sink *EventSink) *Router {
	return &Router{
		mcm:      NewMCMDetector(),
		active:   make(map[NoteKey]*expression.Record),
		bindings: make(map[int]NoteKey),
		globals:  make(map[int]*zoneGlobals),
		sink:     sink,
		now:      time.Now,
	}
}

// ConfigureZone installs or disables an MPE zone. memberCount == 0 disables
// the zone on that master's side.
func (r *Router) ConfigureZone(master ZoneMaster, memberCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configureZoneLocked(master, memberCount)
}

func (r *Router) configureZoneLocked(master ZoneMaster, memberCount int) {
	if memberCount <= 0 {
		if master == ZoneLower {
			r.zones.Lower = nil
		} else {
			r.zones.Upper = nil
		}
		return
	}
	var z Zone
	if master == ZoneLower {
		z = NewLowerZone(memberCount)
		r.zones.Lower = &z
	} else {
		z = NewUpperZone(memberCount)
		r.zones.Upper = &z
	}
}

// Zones returns the currently configured MPE zone set.
func (r *Router) Zones() ZoneConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zones
}

// ActiveRecord returns the expression record bound to a channel, if any.
func (r *Router) ActiveRecord(group, channel int) (*expression.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.bindings[channel]
	if !ok || key.Group != group {
		return nil, false
	}
	rec, ok := r.active[key]
	return rec, ok
}

// ProcessChannelVoice routes one decoded channel-voice message (from either
// the MIDI 1.0 byte-stream parser or DecodeUMP) into expression updates.
// data1/data2 are MIDI-1 7-bit values, which the router maps to 0-1 itself;
// callers holding MIDI-2 values narrow them first (VelocityMidi1 /
// ControllerMidi1 in ump.go).
func (r *Router) ProcessChannelVoice(group, channel int, status byte, data1, data2 byte, hasData2 bool) {
	now := r.now()
	statusHi := status & 0xF0

	r.mu.Lock()
	defer r.mu.Unlock()

	switch statusHi {
	case 0x90: // Note On (velocity 0 is Note Off)
		if data2 == 0 {
			r.noteOffLocked(group, channel, int(data1), 0, now)
			return
		}
		r.noteOnLocked(group, channel, int(data1), float64(data2)/127.0, now)

	case 0x80: // Note Off
		liftVel := 0.0
		if hasData2 {
			liftVel = float64(data2) / 127.0
		}
		r.noteOffLocked(group, channel, int(data1), liftVel, now)

	case 0xE0: // Pitch bend: data1=LSB, data2=MSB in MIDI-1 wire order
		bend14 := (int(data2) << 7) | int(data1)
		semis := (float64(bend14) - 8192) / 8192
		if rec, ok := r.boundRecordLocked(group, channel); ok {
			rec.SetPitchBend(semis*rec.BendRange, now)
			r.emit(EventExpressionChanged, rec, now)
		}

	case 0xD0: // Channel pressure
		pressure := float64(data1) / 127.0
		r.applyPressureLocked(group, channel, pressure, now)

	case 0xB0: // Control change
		r.applyControlChangeLocked(group, channel, int(data1), int(data2), now)

	case 0xA0: // Polyphonic key pressure: per-note, addressed by note number directly
		key := NoteKey{Group: group, Channel: channel, Note: int(data1)}
		if rec, ok := r.active[key]; ok {
			rec.SetPressure(float64(data2)/127.0, now)
			r.emit(EventExpressionChanged, rec, now)
		}
	}
}

// ObservePerNoteManagement handles a MIDI-2 per-note management message
// (status 0xF0 in the MIDI-2 channel-voice group). flags bit0 = reset,
// bit1 = detach: reset clears this note's controllers; detach unbinds the
// channel from the note without releasing it.
func (r *Router) ObservePerNoteManagement(group, channel, note int, flags byte) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	key := NoteKey{Group: group, Channel: channel, Note: note}
	rec, ok := r.active[key]
	if !ok {
		return
	}
	if flags&0x01 != 0 { // reset
		rec.Slide = 0.5
		rec.Pressure = 0
		rec.PitchBend = 0
		rec.LastUpdated = now
		r.emit(EventExpressionChanged, rec, now)
	}
	if flags&0x02 != 0 { // detach
		if bound, ok := r.bindings[channel]; ok && bound == key {
			delete(r.bindings, channel)
		}
	}
}

// ObserveControlChange feeds a raw CC into the MPE Configuration Message
// detector and, if it completes an MCM sequence, applies the resulting zone
// change before any other CC handling runs. Returns true if this CC was an
// MCM-sequence CC and should not additionally be treated as volume/
// expression/slide.
func (r *Router) ObserveControlChange(channel, controller, value int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if res, ok := r.mcm.Observe(channel, controller, value); ok {
		r.configureZoneLocked(res.Master, res.MemberCount)
		return true
	}
	return controller == 101 || controller == 100
}

func (r *Router) noteOnLocked(group, channel, note int, velocity float64, now time.Time) {
	key := NoteKey{Group: group, Channel: channel, Note: note}
	bendRange := expression.DefaultBendRangeSemitones
	rec := expression.NewRecord(channel, note, velocity, float64(bendRange), now)
	r.active[key] = rec
	r.bindings[channel] = key
	r.emit(EventNoteTriggered, rec, now)
}

func (r *Router) noteOffLocked(group, channel, note int, liftVelocity float64, now time.Time) {
	key := NoteKey{Group: group, Channel: channel, Note: note}
	rec, ok := r.active[key]
	if !ok {
		return
	}
	rec.NoteOff(liftVelocity, now)
	delete(r.active, key)
	if bound, ok := r.bindings[channel]; ok && bound == key {
		delete(r.bindings, channel)
	}
	r.emit(EventNoteReleased, rec, now)
}

func (r *Router) boundRecordLocked(group, channel int) (*expression.Record, bool) {
	key, ok := r.bindings[channel]
	if !ok || key.Group != group {
		return nil, false
	}
	rec, ok := r.active[key]
	return rec, ok
}

// applyPressureLocked implements spec.md §4.1: channel pressure on a zone's
// master channel broadcasts to every active note in the zone; on a member
// channel it applies only to the bound note.
func (r *Router) applyPressureLocked(group, channel int, pressure float64, now time.Time) {
	if zone, ok := r.zones.ZoneFor(channel); ok && channel == zone.MasterChannel {
		r.broadcastToZoneLocked(group, *zone, func(rec *expression.Record) {
			rec.SetPressure(pressure, now)
		}, now)
		return
	}
	if rec, ok := r.boundRecordLocked(group, channel); ok {
		rec.SetPressure(pressure, now)
		r.emit(EventExpressionChanged, rec, now)
	}
}

// applyControlChangeLocked handles master-channel global CCs (volume,
// expression), per-note slide broadcast (CC74 on a master channel), and
// ordinary per-note CC74 on member channels.
func (r *Router) applyControlChangeLocked(group, channel, controller, value int, now time.Time) {
	if zone, ok := r.zones.ZoneFor(channel); ok && channel == zone.MasterChannel {
		g := r.globals[zone.MasterChannel]
		if g == nil {
			g = &zoneGlobals{}
			r.globals[zone.MasterChannel] = g
		}
		switch controller {
		case ccVolume:
			g.volume = float64(value) / 127.0
			return
		case ccExpression:
			g.expression = float64(value) / 127.0
			return
		case ccSlide:
			r.broadcastToZoneLocked(group, *zone, func(rec *expression.Record) {
				rec.SetSlide(float64(value)/127.0, now)
			}, now)
			return
		}
	}

	if controller == ccSlide {
		if rec, ok := r.boundRecordLocked(group, channel); ok {
			rec.SetSlide(float64(value)/127.0, now)
			r.emit(EventExpressionChanged, rec, now)
		}
	}
}

func (r *Router) broadcastToZoneLocked(group int, zone Zone, apply func(*expression.Record), now time.Time) {
	for key, rec := range r.active {
		if key.Group != group || !zone.Contains(key.Channel) {
			continue
		}
		apply(rec)
		r.emit(EventExpressionChanged, rec, now)
	}
}

func (r *Router) emit(t EventType, rec *expression.Record, now time.Time) {
	if r.sink == nil {
		return
	}
	r.sink.Push(Event{Type: t, Record: rec, Timestamp: now})
}
