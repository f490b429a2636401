package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic prefixes.
const (
	// TopicPrefix is the root of every controller topic.
	TopicPrefix = "xdtk"

	// TopicPrefixEvent is the base for device event topics.
	TopicPrefixEvent = "xdtk/event"

	// TopicPrefixCommand is the base for inbound command topics.
	TopicPrefixCommand = "xdtk/command"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "xdtk/system"
)

// Topics provides builders for controller MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceEvent(2, "tap")
//	// Returns: "xdtk/event/2/tap"
type Topics struct{}

// DeviceEvent returns the topic for one kind of event from one device.
//
// Example: xdtk/event/2/touch_down
func (Topics) DeviceEvent(deviceID int, kind string) string {
	return fmt.Sprintf("%s/%d/%s", TopicPrefixEvent, deviceID, kind)
}

// HapticsCommand returns the topic consumers publish haptics commands on.
//
// Example: xdtk/command/haptics/2
func (Topics) HapticsCommand(deviceID int) string {
	return fmt.Sprintf("%s/haptics/%d", TopicPrefixCommand, deviceID)
}

// SystemStatus returns the retained controller online/offline topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllDeviceEvents returns a wildcard matching every device event.
func (Topics) AllDeviceEvents() string {
	return TopicPrefixEvent + "/#"
}

// AllHapticsCommands returns a wildcard matching haptics commands for any device.
func (Topics) AllHapticsCommands() string {
	return TopicPrefixCommand + "/haptics/+"
}

// AllTopics returns a wildcard matching every controller topic.
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseHapticsCommand extracts the device id from a haptics command topic.
func (Topics) ParseHapticsCommand(topic string) (int, error) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixCommand+"/haptics/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return 0, fmt.Errorf("%w: %q is not a haptics command topic", ErrInvalidTopic, topic)
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: bad device id in %q", ErrInvalidTopic, topic)
	}
	return id, nil
}
