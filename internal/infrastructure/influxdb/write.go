package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceSensors holds one row per sampled device.
const MeasurementDeviceSensors = "device_sensors"

// NewSensorPoint builds a device_sensors point tagged with the device's
// id and reported name.
func NewSensorPoint(deviceID int, name string, fields map[string]any, ts time.Time) *write.Point {
	tags := map[string]string{"device_id": strconv.Itoa(deviceID)}
	if name != "" {
		tags["name"] = name
	}
	return write.NewPoint(MeasurementDeviceSensors, tags, fields, ts)
}

// WriteDeviceSensors queues one sensor sample. The write is non-blocking;
// failures are reported through the SetOnError callback.
func (c *Client) WriteDeviceSensors(deviceID int, name string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(NewSensorPoint(deviceID, name, fields, ts))
	c.points.Add(1)
}

// WritePointWithTime writes a custom point at timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
	c.points.Add(1)
}
