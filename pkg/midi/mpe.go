package midi

// ZoneMaster identifies which half of the channel space an MPE zone's
// master channel occupies.
type ZoneMaster int

const (
	// ZoneLower has its master on channel 0 and member channels counting up.
	ZoneLower ZoneMaster = iota
	// ZoneUpper has its master on channel 15 and member channels counting down.
	ZoneUpper
)

// Zone is an MPE zone configuration: a master channel and a contiguous run
// of member channels carrying per-note expression.
type Zone struct {
	Master       ZoneMaster
	MasterChannel int // 0 or 15
	FirstMember   int
	MemberCount   int // 1-15
}

// Contains reports whether ch is a member channel of this zone.
func (z Zone) Contains(ch int) bool {
	if z.MemberCount <= 0 {
		return false
	}
	if z.Master == ZoneLower {
		return ch >= z.FirstMember && ch < z.FirstMember+z.MemberCount
	}
	return ch <= z.FirstMember && ch > z.FirstMember-z.MemberCount
}

// NewLowerZone builds a Lower-Zone MPE configuration with memberCount
// channels starting at channel 1.
func NewLowerZone(memberCount int) Zone {
	return Zone{Master: ZoneLower, MasterChannel: 0, FirstMember: 1, MemberCount: memberCount}
}

// NewUpperZone builds an Upper-Zone MPE configuration with memberCount
// channels counting down from channel 14.
func NewUpperZone(memberCount int) Zone {
	return Zone{Master: ZoneUpper, MasterChannel: 15, FirstMember: 14, MemberCount: memberCount}
}

// ZoneConfig holds the zero, one, or two active MPE zones a device can run
// simultaneously (one per channel half).
type ZoneConfig struct {
	Lower *Zone
	Upper *Zone
}

// ZoneFor returns the zone owning ch (as master or member), if any.
func (c ZoneConfig) ZoneFor(ch int) (*Zone, bool) {
	if c.Lower != nil && (ch == c.Lower.MasterChannel || c.Lower.Contains(ch)) {
		return c.Lower, true
	}
	if c.Upper != nil && (ch == c.Upper.MasterChannel || c.Upper.Contains(ch)) {
		return c.Upper, true
	}
	return nil, false
}

// rpnState tracks the CC101/CC100/CC6 sequence needed to recognize an MPE
// Configuration Message per channel.
type rpnState struct {
	msb, lsb   int
	haveMSB    bool
	haveLSB    bool
}

// MCMDetector recognizes the RPN 0:6 sequence (CC101 MSB, CC100 LSB, CC6
// Data Entry MSB) that reconfigures MPE zones, tracking per-channel RPN
// state across calls.
type MCMDetector struct {
	perChannel [16]rpnState
}

// NewMCMDetector returns a detector with no pending RPN state.
func NewMCMDetector() *MCMDetector {
	return &MCMDetector{}
}

// MCMResult describes a recognized MPE Configuration Message.
type MCMResult struct {
	Channel     int
	MemberCount int // 0 disables the zone on this channel's side
	Master      ZoneMaster
}

// Observe feeds one control-change (controller, value) pair on channel ch
// into the detector. It returns a non-nil result only once the full
// CC101/CC100/CC6 sequence with RPN (0,6) has been observed on that
// channel; a CC6 under any other RPN number is not reported, and the
// tracked RPN state is left as it is.
func (d *MCMDetector) Observe(channel, controller, value int) (*MCMResult, bool) {
	if channel < 0 || channel > 15 {
		return nil, false
	}
	st := &d.perChannel[channel]
	switch controller {
	case 101: // RPN MSB
		st.msb = value
		st.haveMSB = true
		st.haveLSB = false
	case 100: // RPN LSB
		st.lsb = value
		st.haveLSB = true
	case 6: // Data Entry MSB
		if st.haveMSB && st.haveLSB && st.msb == 0 && st.lsb == 6 {
			master := ZoneLower
			if channel == 15 {
				master = ZoneUpper
			}
			return &MCMResult{Channel: channel, MemberCount: value, Master: master}, true
		}
	}
	return nil, false
}
