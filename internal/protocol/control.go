package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Controller→device control messages.
const (
	// WhoAreYou asks an unknown sender to identify itself with DEVICE_INFO.
	WhoAreYou = "WHOAREYOU"

	// Heartbeat acknowledges a datagram from a registered device.
	Heartbeat = "HEARTBEAT"
)

// HapticEffect names a vibration pattern the device can play.
type HapticEffect string

// Supported haptic effects.
const (
	HapticClick       HapticEffect = "click"
	HapticDoubleClick HapticEffect = "double_click"
	HapticHeavyClick  HapticEffect = "heavy_click"
	HapticTick        HapticEffect = "tick"
	HapticOneShot     HapticEffect = "oneshot"
)

var hapticHeaders = map[HapticEffect]string{
	HapticClick:       "HAPTICS_CLICK",
	HapticDoubleClick: "HAPTICS_DOUBLE_CLICK",
	HapticHeavyClick:  "HAPTICS_HEAVY_CLICK",
	HapticTick:        "HAPTICS_TICK",
	HapticOneShot:     "HAPTICS_ONESHOT",
}

// MaxAmplitude is the strongest one-shot vibration.
const MaxAmplitude = 255

// Haptics is a vibration command. Millis and Amplitude apply to
// HapticOneShot only.
type Haptics struct {
	Effect    HapticEffect `json:"effect"`
	Millis    int          `json:"millis,omitempty"`
	Amplitude int          `json:"amplitude,omitempty"`
}

// ParseHapticEffect accepts an effect name in any case.
func ParseHapticEffect(s string) (HapticEffect, error) {
	e := HapticEffect(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := hapticHeaders[e]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEffect, s)
	}
	return e, nil
}

// Validate checks the effect name and one-shot parameters.
func (h Haptics) Validate() error {
	if _, ok := hapticHeaders[h.Effect]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEffect, h.Effect)
	}
	if h.Effect != HapticOneShot {
		return nil
	}
	if h.Millis <= 0 {
		return fmt.Errorf("%w: millis must be positive", ErrInvalidHaptics)
	}
	if h.Amplitude < 0 || h.Amplitude > MaxAmplitude {
		return fmt.Errorf("%w: amplitude must be 0-%d", ErrInvalidHaptics, MaxAmplitude)
	}
	return nil
}

// Encode renders the command in wire form, e.g. "HAPTICS_ONESHOT,100,128".
func (h Haptics) Encode() (string, error) {
	if err := h.Validate(); err != nil {
		return "", err
	}
	header := hapticHeaders[h.Effect]
	if h.Effect != HapticOneShot {
		return header, nil
	}
	return header + Separator + strconv.Itoa(h.Millis) + Separator + strconv.Itoa(h.Amplitude), nil
}
