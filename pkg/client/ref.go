package client

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ChatRef is a tagged chat identity: either a server-assigned id or a
// client-generated local id for a chat created while degraded. The two are
// distinct variants so call sites must decide explicitly which case they are
// in instead of sniffing id shapes.
type ChatRef struct {
	remote   bool
	serverId int64
	localId  uuid.UUID
}

func RemoteRef(serverId int64) ChatRef {
	return ChatRef{remote: true, serverId: serverId}
}

func LocalRef() ChatRef {
	return ChatRef{localId: uuid.New()}
}

func (r ChatRef) IsRemote() bool {
	return r.remote
}

// ServerId returns the server identity, or false for local-only chats, which
// must be promoted before any operation that needs one.
func (r ChatRef) ServerId() (int64, bool) {
	return r.serverId, r.remote
}

func (r ChatRef) String() string {
	if r.remote {
		return fmt.Sprintf("remote:%d", r.serverId)
	}
	return "local:" + r.localId.String()
}

type refJSON struct {
	ServerId *int64     `json:"serverId,omitempty"`
	LocalId  *uuid.UUID `json:"localId,omitempty"`
}

func (r ChatRef) MarshalJSON() ([]byte, error) {
	if r.remote {
		return json.Marshal(refJSON{ServerId: &r.serverId})
	}
	return json.Marshal(refJSON{LocalId: &r.localId})
}

func (r *ChatRef) UnmarshalJSON(data []byte) error {
	var raw refJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.ServerId != nil:
		*r = RemoteRef(*raw.ServerId)
	case raw.LocalId != nil:
		*r = ChatRef{localId: *raw.LocalId}
	default:
		return fmt.Errorf("chat ref has neither server nor local id")
	}
	return nil
}
