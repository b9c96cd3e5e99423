package projection

import (
	"log/slog"
	"time"

	"github.com/gyaneshwarpardhi/hooklog/internal/event"
	"github.com/gyaneshwarpardhi/hooklog/internal/metrics"
)

// Placeholder stands in for any field the payload does not carry.
const Placeholder = "not available"

// Record is the flattened, display-only view of one event.
type Record struct {
	ReceivedAt       time.Time `json:"receivedAt"`
	EventType        string    `json:"eventType"`
	Timestamp        string    `json:"timestamp"`
	OrganisationID   string    `json:"organisationId"`
	OrganisationName string    `json:"organisationName"`
	EndpointID       string    `json:"endpointId"`
	EndpointName     string    `json:"endpointName"`
	EndpointIP       string    `json:"endpointIp"`
	IMEI             string    `json:"imei"`
	Country          string    `json:"country"`
	RATType          string    `json:"ratType"`
	APN              string    `json:"apn"`
	VolumeRx         string    `json:"volumeRx"`
	VolumeTx         string    `json:"volumeTx"`
	VolumeTotal      string    `json:"volumeTotal"`
}

// field binds a payload path to the record slot it fills.
type field struct {
	path string
	set  func(r *Record, v string)
}

var fields = []field{
	{"event_type.description", func(r *Record, v string) { r.EventType = v }},
	{"timestamp", func(r *Record, v string) { r.Timestamp = v }},
	{"organisation.id", func(r *Record, v string) { r.OrganisationID = v }},
	{"organisation.name", func(r *Record, v string) { r.OrganisationName = v }},
	{"endpoint.id", func(r *Record, v string) { r.EndpointID = v }},
	{"endpoint.name", func(r *Record, v string) { r.EndpointName = v }},
	{"endpoint.ip_address", func(r *Record, v string) { r.EndpointIP = v }},
	{"endpoint.imei", func(r *Record, v string) { r.IMEI = v }},
	{"detail.country.name", func(r *Record, v string) { r.Country = v }},
	{"detail.pdp_context.rat_type", func(r *Record, v string) { r.RATType = v }},
	{"detail.pdp_context.apn", func(r *Record, v string) { r.APN = v }},
	{"detail.volume.rx", func(r *Record, v string) { r.VolumeRx = v }},
	{"detail.volume.tx", func(r *Record, v string) { r.VolumeTx = v }},
	{"detail.volume.total", func(r *Record, v string) { r.VolumeTotal = v }},
}

// Empty returns a record whose every payload field is the placeholder.
func Empty(receivedAt time.Time) Record {
	r := Record{ReceivedAt: receivedAt}
	for _, f := range fields {
		f.set(&r, Placeholder)
	}
	return r
}

// Project flattens ev for display. It never panics; if extraction fails for
// any reason the all-placeholder record is returned for this event only.
func Project(ev event.Event) (rec Record) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ProjectionFallbacks.Inc()
			slog.Warn("event projection failed, using placeholders", "received_at", ev.ReceivedAt, "panic", r)
			rec = Empty(ev.ReceivedAt)
		}
	}()

	rec = Record{ReceivedAt: ev.ReceivedAt}
	for _, f := range fields {
		f.set(&rec, GetPath(ev.Payload, f.path, Placeholder))
	}
	return rec
}

// ProjectAll projects every event in order.
func ProjectAll(events []event.Event) []Record {
	out := make([]Record, 0, len(events))
	for _, ev := range events {
		out = append(out, Project(ev))
	}
	return out
}
