package natsx

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultPrefix is prepended to window ids to form their subjects.
const DefaultPrefix = "bricbus.window"

// Subject returns the subject a window with id listens on.
func Subject(prefix, id string) string {
	return strings.TrimSuffix(prefix, ".") + "." + id
}

var errInvalidFrame = errors.New("natsx: invalid frame")

// frame is the NATS payload carrying one posted message. JSON data is
// embedded as is under "data"; anything else travels as a string under "text".
type frame struct {
	sourceID     string
	sourceOrigin string
	targetOrigin string
	data         []byte
}

func encodeFrame(f frame) ([]byte, error) {
	out := []byte(`{}`)
	var err error
	if f.sourceID != "" {
		if out, err = sjson.SetBytes(out, "source.id", f.sourceID); err != nil {
			return nil, err
		}
		if out, err = sjson.SetBytes(out, "source.origin", f.sourceOrigin); err != nil {
			return nil, err
		}
	}
	if out, err = sjson.SetBytes(out, "targetOrigin", f.targetOrigin); err != nil {
		return nil, err
	}
	if len(f.data) > 0 && gjson.ValidBytes(f.data) {
		return sjson.SetRawBytes(out, "data", f.data)
	}
	return sjson.SetBytes(out, "text", string(f.data))
}

func decodeFrame(b []byte) (frame, error) {
	if !gjson.ValidBytes(b) {
		return frame{}, errInvalidFrame
	}
	root := gjson.ParseBytes(b)
	if !root.IsObject() {
		return frame{}, errInvalidFrame
	}
	f := frame{
		sourceID:     root.Get("source.id").String(),
		sourceOrigin: root.Get("source.origin").String(),
		targetOrigin: root.Get("targetOrigin").String(),
	}
	if data := root.Get("data"); data.Exists() {
		f.data = []byte(data.Raw)
	} else if text := root.Get("text"); text.Exists() {
		f.data = []byte(text.String())
	} else {
		return frame{}, errInvalidFrame
	}
	return f, nil
}
