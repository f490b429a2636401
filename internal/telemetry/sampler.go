package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/geom"
)

// DefaultInterval is the sample interval used when none is configured.
const DefaultInterval = time.Second

// MeasurementController holds one row per sample with registry totals.
const MeasurementController = "controller"

// Writer queues points. *influxdb.Client satisfies it.
type Writer interface {
	WriteDeviceSensors(deviceID int, name string, fields map[string]any, ts time.Time)
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// Stats holds sampler counters.
type Stats struct {
	Samples    uint64    `json:"samples"`
	Points     uint64    `json:"points"`
	LastSample time.Time `json:"last_sample,omitzero"`
}

// Sampler writes rate-limited sensor samples.
type Sampler struct {
	writer   Writer
	interval time.Duration
	session  string

	mu   sync.Mutex
	last time.Time

	samples atomic.Uint64
	points  atomic.Uint64
}

// NewSampler creates a sampler writing to w every interval. session tags
// the controller point so restarts can be told apart.
func NewSampler(w Writer, interval time.Duration, session string) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{writer: w, interval: interval, session: session}
}

// Observe implements controller.Observer.
func (s *Sampler) Observe(now time.Time, snapshots []device.State) {
	s.mu.Lock()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		s.mu.Unlock()
		return
	}
	s.last = now
	s.mu.Unlock()

	s.samples.Add(1)
	registered, stale := 0, 0
	for _, st := range snapshots {
		if !st.HasID() || st.Address == "" {
			continue
		}
		registered++
		if st.Stale {
			stale++
			continue
		}
		if st.LastSeen.IsZero() {
			continue
		}
		s.writer.WriteDeviceSensors(st.ID, st.Name, SensorFields(st), now)
		s.points.Add(1)
	}

	tags := map[string]string{}
	if s.session != "" {
		tags["session"] = s.session
	}
	s.writer.WritePointWithTime(MeasurementController, tags, map[string]any{
		"devices":            len(snapshots),
		"registered_devices": registered,
		"stale_devices":      stale,
	}, now)
	s.points.Add(1)
}

// Stats returns current sampler counters.
func (s *Sampler) Stats() Stats {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	return Stats{
		Samples:    s.samples.Load(),
		Points:     s.points.Load(),
		LastSample: last,
	}
}

// SensorFields flattens the sensor readings of st into InfluxDB fields.
func SensorFields(st device.State) map[string]any {
	fields := make(map[string]any, 32)
	addVec3(fields, "accel", st.Accelerometer)
	addVec3(fields, "gyro", st.Gyroscope)
	addVec3(fields, "gravity", st.Gravity)
	addVec3(fields, "linear_accel", st.LinearAcceleration)
	addVec3(fields, "magnetic", st.MagneticField)
	addVec3(fields, "ar_position", st.ARPosition)
	fields["proximity"] = st.Proximity
	fields["light"] = st.Light
	fields["ambient_temperature"] = st.AmbientTemperature
	fields["pressure"] = st.Pressure
	fields["pinch_span"] = st.PinchSpan

	touching := 0
	for _, tp := range st.Touches {
		if tp.Touched {
			touching++
		}
	}
	fields["touches"] = touching
	return fields
}

func addVec3(fields map[string]any, prefix string, v geom.Vec3) {
	fields[prefix+"_x"] = v.X
	fields[prefix+"_y"] = v.Y
	fields[prefix+"_z"] = v.Z
}
