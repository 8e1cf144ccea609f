package collab

import "github.com/google/uuid"

// PeerID, SessionID, MessageID, OperationID, and EntityID are opaque
// 128-bit identifiers. Equality is structural; PeerID additionally has a
// deterministic total order used only for OT tie-breaking.
type (
	PeerID      string
	SessionID   string
	MessageID   string
	OperationID string
	EntityID    string
)

func NewPeerID() PeerID           { return PeerID(uuid.NewString()) }
func NewSessionID() SessionID     { return SessionID(uuid.NewString()) }
func NewMessageID() MessageID     { return MessageID(uuid.NewString()) }
func NewOperationID() OperationID { return OperationID(uuid.NewString()) }
func NewEntityID() EntityID       { return EntityID(uuid.NewString()) }

// Less gives PeerID a strict total order for deterministic tie-breaking in
// winner selection (spec V6). Lexicographic string comparison over the
// UUID's canonical text form is sufficient since no two distinct PeerIDs
// are ever equal.
func (p PeerID) Less(other PeerID) bool { return p < other }
