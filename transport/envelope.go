package transport

import (
	"encoding/json"
	"fmt"
)

// Event names shared by the client and the assistant service.
const (
	EventAudioStart     = "audioStart"
	EventAudioChunk     = "audioChunk"
	EventAudioEnd       = "audioEnd"
	EventServerResponse = "serverResponse"

	// Text-only conversation events accepted by the dev server.
	EventSendMessage    = "sendMessage"
	EventAskForMoreInfo = "askForMoreInfo"
)

// Envelope is the JSON frame carried in every websocket text message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Marshal builds the wire frame for an event. A nil payload produces an
// envelope without data.
func Marshal(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func Unmarshal(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decoding frame: missing event name")
	}
	return env, nil
}

// ChunkPayload is the data of an audioChunk event.
type ChunkPayload struct {
	Data     string         `json:"data"`
	Metadata *ChunkMetadata `json:"metadata,omitempty"`
}

type ChunkMetadata struct {
	SampleRate int    `json:"sampleRate"`
	Format     string `json:"format,omitempty"`
}
