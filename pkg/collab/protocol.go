package collab

// MessageType names the payload carried by an Envelope.
type MessageType string

const (
	MsgJoin          MessageType = "Join"
	MsgLeave         MessageType = "Leave"
	MsgPing          MessageType = "Ping"
	MsgPong          MessageType = "Pong"
	MsgNoteOp        MessageType = "NoteOperation"
	MsgTrackOp       MessageType = "TrackOperation"
	MsgClipOp        MessageType = "ClipOperation"
	MsgParameterOp   MessageType = "ParameterChange"
	MsgTransportSync MessageType = "TransportSync"
	MsgChat          MessageType = "Chat"
	MsgCursor        MessageType = "Cursor"
	MsgAcknowledge   MessageType = "Acknowledge"
	MsgSyncRequest   MessageType = "SyncRequest"
	MsgSyncResponse  MessageType = "SyncResponse"
	MsgError         MessageType = "Error"
)

// ProtocolVersion is the current wire protocol version (spec.md §6.4).
const ProtocolVersion = 1

// Envelope is the common header every application message carries. Payload
// holds the type-specific body as a raw map so a single struct can
// round-trip any MessageType through JSON; typed accessors below decode it
// into the concrete payload structs.
type Envelope struct {
	Type        MessageType    `json:"type"`
	MessageID   MessageID      `json:"messageId"`
	PeerID      PeerID         `json:"peerId"`
	Timestamp   int64          `json:"timestamp"`
	SessionID   SessionID      `json:"sessionId"`
	VectorClock VectorClock    `json:"vectorClock"`
	Version     int            `json:"version"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope with a fresh MessageID and the current
// protocol version, ready to have its Payload filled in.
func NewEnvelope(msgType MessageType, peer PeerID, session SessionID, clock VectorClock, timestamp int64) Envelope {
	return Envelope{
		Type:        msgType,
		MessageID:   NewMessageID(),
		PeerID:      peer,
		Timestamp:   timestamp,
		SessionID:   session,
		VectorClock: clock,
		Version:     ProtocolVersion,
	}
}

// JoinPayload requests entry into a session.
type JoinPayload struct {
	PeerName string `json:"peerName"`
	Role     Role   `json:"role"`
	Color    string `json:"color"`
	Password string `json:"password,omitempty"`
}

// LeavePayload announces voluntary departure.
type LeavePayload struct {
	Reason string `json:"reason,omitempty"`
}

// PingPayload carries a liveness probe.
type PingPayload struct {
	Sequence uint64 `json:"sequence"`
}

// PongPayload answers a PingPayload.
type PongPayload struct {
	Sequence        uint64 `json:"sequence"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

// NoteOperationPayload carries a note-domain edit.
type NoteOperationPayload struct {
	Type            OperationType  `json:"type"`
	PatternID       EntityID       `json:"patternId"`
	NoteID          EntityID       `json:"noteId"`
	NoteNumber      int            `json:"noteNumber"`
	StartBeat       float64        `json:"startBeat"`
	Duration        float64        `json:"duration"`
	Velocity        float64        `json:"velocity"`
	Channel         int            `json:"channel"`
	PreviousValues  map[string]any `json:"previousValues,omitempty"`
}

// TrackOperationPayload carries a track-domain edit.
type TrackOperationPayload struct {
	Type           OperationType  `json:"type"`
	TrackID        EntityID       `json:"trackId"`
	Name           string         `json:"name,omitempty"`
	Position       int            `json:"position"`
	PreviousValues map[string]any `json:"previousValues,omitempty"`
}

// ClipOperationPayload carries a clip-domain edit.
type ClipOperationPayload struct {
	Type           OperationType  `json:"type"`
	ClipID         EntityID       `json:"clipId"`
	TrackID        EntityID       `json:"trackId"`
	StartBeat      float64        `json:"startBeat"`
	LengthBeats    float64        `json:"lengthBeats"`
	PreviousValues map[string]any `json:"previousValues,omitempty"`
}

// ParameterChangePayload carries a single parameter update.
type ParameterChangePayload struct {
	TargetID      EntityID `json:"targetId"`
	TargetType    string   `json:"targetType"`
	ParameterName string   `json:"parameterName"`
	Value         float64  `json:"value"`
	PreviousValue *float64 `json:"previousValue,omitempty"`
}

// TransportState is the playback engine's run state.
type TransportState string

const (
	TransportStopped TransportState = "Stopped"
	TransportPlaying TransportState = "Playing"
	TransportPaused  TransportState = "Paused"
)

// TransportSyncPayload broadcasts global playback position and settings.
type TransportSyncPayload struct {
	State         TransportState `json:"state"`
	PositionBeats float64        `json:"positionBeats"`
	Tempo         float64        `json:"tempo"`
	TimeSig       [2]int         `json:"timeSig"`
	LoopEnabled   bool           `json:"loopEnabled"`
	LoopStart     float64        `json:"loopStart"`
	LoopEnd       float64        `json:"loopEnd"`
}

// ChatPayload carries a text message, optionally targeted to one peer.
type ChatPayload struct {
	Text         string  `json:"text"`
	TargetPeerID *PeerID `json:"targetPeerId,omitempty"`
}

// CursorPayload broadcasts a peer's UI focus/selection.
type CursorPayload struct {
	ViewType       string   `json:"viewType"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	TrackID        *EntityID `json:"trackId,omitempty"`
	SelectionStart *float64 `json:"selectionStart,omitempty"`
	SelectionEnd   *float64 `json:"selectionEnd,omitempty"`
}

// AcknowledgePayload confirms or rejects receipt of a prior message.
type AcknowledgePayload struct {
	AcknowledgedMessageID MessageID `json:"acknowledgedMessageId"`
	Success               bool      `json:"success"`
	ErrorMessage          string    `json:"errorMessage,omitempty"`
}

// SyncRequestPayload asks the server to replay missed state.
type SyncRequestPayload struct {
	IncludeProjectData bool `json:"includeProjectData"`
}

// SyncResponsePayload answers a Join or SyncRequest with a catch-up
// snapshot.
type SyncResponsePayload struct {
	ProjectState any                     `json:"projectState,omitempty"`
	Peers        []PeerSnapshot          `json:"peers,omitempty"`
	Transport    *TransportSyncPayload   `json:"transport,omitempty"`
}

// PeerSnapshot is the subset of Peer state shared with other participants.
type PeerSnapshot struct {
	ID    PeerID `json:"id"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
	Color string `json:"color"`
}

// ErrorPayload reports a typed, fatal-or-not protocol failure.
type ErrorPayload struct {
	ErrorCode        ErrorCode  `json:"errorCode"`
	ErrorDescription string     `json:"errorDescription"`
	RelatedMessageID *MessageID `json:"relatedMessageId,omitempty"`
}
