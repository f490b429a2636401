// Package mqtt provides MQTT client connectivity for the XDTK controller.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT is an optional outbound surface. Device events are published for
// consumers that do not speak the device wire protocol, and haptics
// commands can be sent back the same way:
//
//	devices ↔ UDP ↔ xdtkd ↔ MQTT broker ↔ consumers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllHapticsCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(mqtt.Topics{}.DeviceEvent(0, "tap"), payload, 0, false)
package mqtt
