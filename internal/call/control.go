package call

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// controlChannelLabel names the per-link data channel used for in-call
// state that need not round-trip through the signaling server.
const controlChannelLabel = "control"

// MediaState mirrors a participant's local track toggles.
type MediaState struct {
	AudioEnabled bool `msgpack:"audio_enabled"`
	VideoEnabled bool `msgpack:"video_enabled"`
}

const controlKindMediaState = "media-state"

// controlMessage is the envelope for everything on the control channel.
type controlMessage struct {
	Kind  string     `msgpack:"kind"`
	Media MediaState `msgpack:"media"`
}

func encodeMediaState(ms MediaState) ([]byte, error) {
	return msgpack.Marshal(controlMessage{Kind: controlKindMediaState, Media: ms})
}

func decodeControl(data []byte) (controlMessage, error) {
	var msg controlMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return controlMessage{}, fmt.Errorf("decode control message: %w", err)
	}
	return msg, nil
}
