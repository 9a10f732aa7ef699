// Package models holds the plain data types shared across the
// generation pipeline: subscribers, cells, events, subscriber-history
// events and the per-shard/per-day stats structures.
package models

import "github.com/shiimaxx/cdrgen/internal/distributions"

// RAT is a radio access technology used by cells and DATA sessions.
type RAT string

const (
	RATWCDMA RAT = "WCDMA"
	RATLTE   RAT = "LTE"
	RATNR    RAT = "NR"
)

// Direction is the call/SMS origination direction.
type Direction string

const (
	DirectionMO Direction = "MO"
	DirectionMT Direction = "MT"
)

// EventType identifies which of the three generators produced a row.
type EventType string

const (
	EventTypeCall EventType = "CALL"
	EventTypeSMS  EventType = "SMS"
	EventTypeData EventType = "DATA"
)

// Subscriber is the identity tuple plus a Zipf-weighted contact pool.
// ContactIdx/ContactWeight are parallel slices; ContactWeight sums to 1.
type Subscriber struct {
	Index         int
	MSISDN        string
	IMSI          string
	IMEI          string
	MCCMNC        string
	ContactIdx    []int
	ContactWeight []float64
	// ContactAlias is the precomputed alias table over ContactWeight,
	// built once at bootstrap and never rebuilt in the hot loop.
	ContactAlias distributions.AliasTable
}

// Cell is a physical radio cell in the catalog.
type Cell struct {
	ID  string
	Lat float64
	Lon float64
	RAT RAT
}

// Event is the union record written to the rotating CSV writer. Only
// the fields relevant to EventType are populated; the rest are left at
// zero value. Zero-valued string fields and zero sms_segments,
// data_bytes_in, data_bytes_out and data_duration_sec are serialized as
// empty strings; the timestamps, tz_offset_min and duration_sec are
// always written as integers, so an SMS row carries duration_sec 0.
type Event struct {
	EventType   EventType
	MSISDNSrc   string
	MSISDNDst   string
	Direction   Direction
	StartTsMs   int64
	EndTsMs     int64
	TzName      string
	TzOffsetMin int
	DurationSec int64
	MCCMNC      string
	IMSI        string
	IMEI        string
	CellID      string
	RecordType  string
	CauseForRecordClosing string

	SMSSegments int
	SMSStatus   string

	DataBytesIn     int64
	DataBytesOut    int64
	DataDurationSec int64
	APN             string
	RAT             RAT
}

// HistoryEventKind enumerates the subscriber-history event log's kinds.
type HistoryEventKind string

const (
	KindNewSubscriber  HistoryEventKind = "NEW_SUBSCRIBER"
	KindChangeDevice   HistoryEventKind = "CHANGE_DEVICE"
	KindChangeSIM      HistoryEventKind = "CHANGE_SIM"
	KindReleaseNumber  HistoryEventKind = "RELEASE_NUMBER"
	KindAssignNumber   HistoryEventKind = "ASSIGN_NUMBER"
)

// HistoryEvent is one row of the append-only subscriber-history log.
type HistoryEvent struct {
	TimestampMs int64
	Kind        HistoryEventKind
	IMSI        string
	MSISDN      string
	IMEI        string
	MCCMNC      string
}

// Snapshot is the identity tuple valid over [From, To) for one imsi.
// To == 0 means "still active" (open interval).
type Snapshot struct {
	IMSI   string
	MSISDN string
	IMEI   string
	MCCMNC string
	From   int64
	To     int64
}

// Active reports whether the snapshot covers instant t. An open
// snapshot (To == 0) covers every t >= From.
func (s Snapshot) Active(t int64) bool {
	if t < s.From {
		return false
	}
	if s.To == 0 {
		return true
	}
	return t < s.To
}

// EventCounts tallies rows written per event type.
type EventCounts struct {
	Call int64 `json:"CALL"`
	SMS  int64 `json:"SMS"`
	Data int64 `json:"DATA"`
}

// ShardStats accumulates counters for one worker's slice of a day.
type ShardStats struct {
	ShardIndex        int         `json:"shard_index"`
	Events            EventCounts `json:"events"`
	BytesInTotal      int64       `json:"bytes_in_total"`
	BytesOutTotal     int64       `json:"bytes_out_total"`
	DurationSecTotal  int64       `json:"duration_sec_total"`
	SkippedNoIdentity int64       `json:"skipped_no_identity"`
	Failed            bool        `json:"failed"`
	FailureReason     string      `json:"failure_reason,omitempty"`
}

// Add folds e into the shard's running totals.
func (s *ShardStats) Add(e Event) {
	switch e.EventType {
	case EventTypeCall:
		s.Events.Call++
		s.DurationSecTotal += e.DurationSec
	case EventTypeSMS:
		s.Events.SMS++
	case EventTypeData:
		s.Events.Data++
		s.BytesInTotal += e.DataBytesIn
		s.BytesOutTotal += e.DataBytesOut
		s.DurationSecTotal += e.DataDurationSec
	}
}

// DaySummary is the reduced, single-threaded view of a day's shards,
// serialized as summary.json per the output layout.
type DaySummary struct {
	Day              string      `json:"day"`
	Shards           int         `json:"shards"`
	Events           EventCounts `json:"events"`
	BytesInTotal     int64       `json:"bytes_in_total"`
	BytesOutTotal    int64       `json:"bytes_out_total"`
	DurationSecTotal int64       `json:"duration_sec_total"`
	FailedShards     []int       `json:"failed_shards,omitempty"`
}

// Merge folds one shard's stats into the summary.
func (d *DaySummary) Merge(s ShardStats) {
	d.Events.Call += s.Events.Call
	d.Events.SMS += s.Events.SMS
	d.Events.Data += s.Events.Data
	d.BytesInTotal += s.BytesInTotal
	d.BytesOutTotal += s.BytesOutTotal
	d.DurationSecTotal += s.DurationSecTotal
	if s.Failed {
		d.FailedShards = append(d.FailedShards, s.ShardIndex)
	}
}
