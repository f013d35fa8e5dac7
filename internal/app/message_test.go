package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMessageKeepsRawVerbatim(t *testing.T) {
	raw := []byte(`{"type":"offer","userId":"alice","roomId":"r1","sdp":"v=0","extra":{"k":1}}`)

	msg, err := ParseMessage(raw)
	require.NoError(t, err)
	require.Equal(t, TypeOffer, msg.Type)
	require.Equal(t, "alice", string(msg.UserID))
	require.Equal(t, "r1", string(msg.RoomID))
	require.Equal(t, raw, []byte(msg.Raw()))
}

func TestParseMessageMalformed(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":`))
	require.Error(t, err)
}

func TestMessageIsRelay(t *testing.T) {
	for _, typ := range []MessageType{TypeOffer, TypeAnswer, TypeCandidate} {
		require.True(t, (&Message{Type: typ}).IsRelay())
	}
	for _, typ := range []MessageType{TypeJoin, TypeLeave, MessageType("wave")} {
		require.False(t, (&Message{Type: typ}).IsRelay())
	}
}

func TestNoticeOmitsAbsentUser(t *testing.T) {
	b, err := json.Marshal(Notice{Type: TypeLeave, RoomID: "r1"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.Equal(t, "leave", m["type"])
	require.Equal(t, "r1", m["roomId"])
	_, present := m["userId"]
	require.False(t, present, "userId must be absent, not fabricated")
}
