package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/xdtk/internal/protocol"
)

type hapticsCommand struct {
	Effect    string `json:"effect"`
	Millis    int    `json:"millis"`
	Amplitude int    `json:"amplitude"`
}

// DecodeHaptics parses a haptics command payload.
func DecodeHaptics(payload []byte) (protocol.Haptics, error) {
	var cmd hapticsCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return protocol.Haptics{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	effect, err := protocol.ParseHapticEffect(cmd.Effect)
	if err != nil {
		return protocol.Haptics{}, err
	}
	h := protocol.Haptics{Effect: effect, Millis: cmd.Millis, Amplitude: cmd.Amplitude}
	if err := h.Validate(); err != nil {
		return protocol.Haptics{}, err
	}
	return h, nil
}

// handleHaptics runs on a paho goroutine. Errors are returned to the
// client wrapper, which logs them.
func (b *Bridge) handleHaptics(topic string, payload []byte) error {
	b.commands.Add(1)

	id, err := b.topics.ParseHapticsCommand(topic)
	if err != nil {
		b.commandErrors.Add(1)
		return err
	}
	h, err := DecodeHaptics(payload)
	if err != nil {
		b.commandErrors.Add(1)
		return fmt.Errorf("device %d: %w", id, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.haptics.SendHaptics(ctx, id, h); err != nil {
		b.commandErrors.Add(1)
		return fmt.Errorf("device %d: %w", id, err)
	}
	b.log().Debug("haptics command delivered", "device_id", id, "effect", h.Effect)
	return nil
}
