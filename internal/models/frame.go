package models

import (
	"bytes"
	"fmt"
)

// framePrefix is the sensor's SSE-style frame prefix. Frames arrive as
// "data: {json}" with optional trailing newlines; bare JSON is accepted
// for transports that strip the prefix themselves.
var framePrefix = []byte("data:")

// ParseFrame decodes one push channel frame into a SensorEvent.
func ParseFrame(frame []byte) (SensorEvent, error) {
	body := bytes.TrimSpace(frame)
	if bytes.HasPrefix(body, framePrefix) {
		body = bytes.TrimSpace(body[len(framePrefix):])
	}
	if len(body) == 0 {
		return SensorEvent{}, fmt.Errorf("empty frame")
	}
	var ev SensorEvent
	if err := ev.UnmarshalJSON(body); err != nil {
		return SensorEvent{}, fmt.Errorf("decode frame: %w", err)
	}
	if ev.Type == "" {
		return SensorEvent{}, fmt.Errorf("frame missing type")
	}
	return ev, nil
}

// EncodeFrame renders a SensorEvent in the sensor's wire form. Used by the
// simulator's publishers and by the engine's own SSE re-serving.
func EncodeFrame(ev SensorEvent) ([]byte, error) {
	body, err := ev.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(framePrefix)+len(body)+3)
	out = append(out, framePrefix...)
	out = append(out, ' ')
	out = append(out, body...)
	out = append(out, '\n', '\n')
	return out, nil
}
