// Package telemetry provides injection statistics, performance timing,
// CSV output and cloud snapshots.
package telemetry

import "github.com/pthm-cable/spray/parcel"

// EventType identifies telemetry events.
type EventType uint8

const (
	EventInjected EventType = iota
	EventRejected
)

func (t EventType) String() string {
	switch t {
	case EventInjected:
		return "injected"
	case EventRejected:
		return "rejected"
	}
	return "unknown"
}

// Event represents a single telemetry event.
type Event struct {
	Type     EventType
	Time     float64
	Injector int
	ParcelI  int

	// Set for injected parcels only.
	Diameter float64
	Speed    float64
	Mass     float64
}

// NewInjectedEvent records a parcel added to the cloud.
func NewInjectedEvent(parcelI int, p parcel.Parcel) Event {
	return Event{
		Type:     EventInjected,
		Time:     p.Time,
		Injector: p.Injector,
		ParcelI:  parcelI,
		Diameter: p.Diameter,
		Speed:    p.Speed,
		Mass:     p.Mass,
	}
}

// NewRejectedEvent records a parcel dropped because its sample missed the mesh.
func NewRejectedEvent(t float64, injector, parcelI int) Event {
	return Event{
		Type:     EventRejected,
		Time:     t,
		Injector: injector,
		ParcelI:  parcelI,
	}
}
