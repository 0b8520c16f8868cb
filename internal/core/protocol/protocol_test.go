package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/pkg/encoding"
)

func TestWelcomeOpensEverySyncChannel(t *testing.T) {
	events, err := FrameEvents(encoding.Frame{Kind: encoding.FrameWelcome, ClientID: "me"})
	require.NoError(t, err)
	require.Len(t, events, 1+len(SyncChannels))

	assert.Equal(t, Event{Kind: EventConnected, ClientID: "me"}, events[0])
	for i, ch := range SyncChannels {
		assert.Equal(t, EventChannelOpen, events[i+1].Kind)
		assert.Equal(t, ch, events[i+1].Channel)
	}
}

func TestFrameEvents(t *testing.T) {
	cases := []struct {
		frame encoding.Frame
		want  Event
	}{
		{encoding.Frame{Kind: encoding.FramePeerJoined, ClientID: "a"}, Event{Kind: EventPeerJoined, ClientID: "a"}},
		{encoding.Frame{Kind: encoding.FramePeerLeft, ClientID: "a"}, Event{Kind: EventPeerLeft, ClientID: "a"}},
		{
			encoding.Frame{Kind: encoding.FrameData, ClientID: "a", Channel: ChannelIsVR, Payload: []byte("a|1")},
			Event{Kind: EventMessage, ClientID: "a", Channel: ChannelIsVR, Payload: []byte("a|1")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.frame.Kind.String(), func(t *testing.T) {
			events, err := FrameEvents(tc.frame)
			require.NoError(t, err)
			assert.Equal(t, []Event{tc.want}, events)
		})
	}

	_, err := FrameEvents(encoding.Frame{Kind: encoding.FrameKind(99)})
	assert.ErrorIs(t, err, ErrUnknownFrame)
}

func TestPoseChannels(t *testing.T) {
	for _, part := range pose.Parts {
		ch := PoseChannel(part)
		got, ok := ParsePoseChannel(ch)
		require.True(t, ok, ch)
		assert.Equal(t, part, got)
		assert.False(t, Reliable(ch))
		assert.Contains(t, SyncChannels, ch)
	}
	assert.Equal(t, "avatar-LEFT", PoseChannel(pose.LeftHand))

	for _, ch := range []string{ChannelAvatarID, ChannelIsVR, "avatar-TAIL", "chat"} {
		_, ok := ParsePoseChannel(ch)
		assert.False(t, ok, ch)
	}
	assert.True(t, Reliable(ChannelAvatarID))
	assert.True(t, Reliable(ChannelIsVR))
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "peer-joined", EventPeerJoined.String())
	assert.Equal(t, "EventKind(42)", EventKind(42).String())
}
