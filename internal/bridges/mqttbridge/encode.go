package mqttbridge

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/google/xdtk/internal/device"
)

// Payload formats.
const (
	FormatJSON = "json"
	FormatCBOR = "cbor"
)

// Encoder serialises an event record for publishing.
type Encoder func(rec device.EventRecord) ([]byte, error)

// EncoderFor returns the encoder for format. An empty format means JSON.
func EncoderFor(format string) (Encoder, error) {
	switch format {
	case "", FormatJSON:
		return func(rec device.EventRecord) ([]byte, error) { return json.Marshal(rec) }, nil
	case FormatCBOR:
		return func(rec device.EventRecord) ([]byte, error) { return cbor.Marshal(rec) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
