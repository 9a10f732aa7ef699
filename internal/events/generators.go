// Package events implements the CALL, SMS, and DATA generators that
// share the temporal shaper and distribution primitives to synthesize
// individual CDR rows for one subscriber-day.
package events

import (
	"math"
	"math/rand"
	"time"

	"github.com/shiimaxx/cdrgen/internal/distributions"
	"github.com/shiimaxx/cdrgen/internal/identity"
	"github.com/shiimaxx/cdrgen/internal/models"
	"github.com/shiimaxx/cdrgen/internal/subscriberdb"
)

// IdentityResolver fills in the msisdn/imsi/imei/mccmnc for an event
// at a given instant, either from the bootstrap subscriber (no store
// supplied) or from a subscriber-history store's point-in-time
// snapshot. Returns ok=false when the event should be skipped because
// no identity was active at that instant (spec.md §9's inactive-
// snapshot resolution).
type IdentityResolver struct {
	Store *subscriberdb.Store
}

// Resolve returns the identity tuple for sub at instant atMs.
func (r *IdentityResolver) Resolve(sub models.Subscriber, atMs int64) (msisdn, imsi, imei, mccmnc string, ok bool) {
	if r.Store == nil {
		return sub.MSISDN, sub.IMSI, sub.IMEI, sub.MCCMNC, true
	}
	snap, found := r.Store.SnapshotAt(sub.IMSI, atMs)
	if !found {
		return "", "", "", "", false
	}
	return snap.MSISDN, snap.IMSI, snap.IMEI, snap.MCCMNC, true
}

// ResolveMSISDN returns just the msisdn valid for sub at atMs, used for
// counterparty resolution where only the dialable number is needed.
func (r *IdentityResolver) ResolveMSISDN(sub models.Subscriber, atMs int64) (string, bool) {
	msisdn, _, _, _, ok := r.Resolve(sub, atMs)
	return msisdn, ok
}

// Counterparty resolves a destination msisdn for sub's event at atMs:
// sampled from sub's contact alias table when non-empty (falling back
// to synthesis if that contact has no active identity at atMs),
// otherwise synthesized directly.
func Counterparty(rng *rand.Rand, sub models.Subscriber, population []models.Subscriber, resolver *IdentityResolver, atMs int64, prefixes, foreignPrefixes []string, interconnectShare float64, msisdnLength int) string {
	if len(sub.ContactIdx) > 0 {
		pick := sub.ContactAlias.Sample(rng)
		otherIdx := sub.ContactIdx[pick]
		if otherIdx >= 0 && otherIdx < len(population) {
			if msisdn, ok := resolver.ResolveMSISDN(population[otherIdx], atMs); ok {
				return msisdn
			}
		}
	}
	return identity.SynthesizeCounterparty(rng, prefixes, foreignPrefixes, interconnectShare, msisdnLength)
}

func clampDuration(sec int64) int64 {
	if sec <= 0 {
		return 1
	}
	return sec
}

// dispositionParams holds the per-disposition ring/duration shape
// adopted from the original generator's CallGenerator.
type dispositionParams struct {
	Name         string
	Weight       float64
	Cause        string
	AnsweredLike bool // true only for ANSWERED: duration from log-normal
	UniformLoSec float64
	UniformHiSec float64
}

// DefaultDispositions is the CALL generator's weighted disposition
// table: ANSWERED gets a ring time plus a log-normal talk duration, the
// rest a short uniform ring/attempt time and a mapped closing cause.
// The uniform ranges and the ANSWERED ring range match the original
// CallGenerator's match arms exactly (NO_ANSWER 5-30s, BUSY 2-10s,
// FAILED/CONGESTION 1-5s, ring 2-25s).
func DefaultDispositions() []dispositionParams {
	return []dispositionParams{
		{Name: "ANSWERED", Weight: 0.65, Cause: "normal", AnsweredLike: true},
		{Name: "NO_ANSWER", Weight: 0.15, Cause: "no_answer", UniformLoSec: 5, UniformHiSec: 30},
		{Name: "BUSY", Weight: 0.10, Cause: "busy", UniformLoSec: 2, UniformHiSec: 10},
		{Name: "FAILED", Weight: 0.06, Cause: "failed", UniformLoSec: 1, UniformHiSec: 5},
		{Name: "CONGESTION", Weight: 0.04, Cause: "congestion", UniformLoSec: 1, UniformHiSec: 5},
	}
}

// answeredRingLoSec and answeredRingHiSec bound the ring-before-pickup
// time added on top of the log-normal talk duration for ANSWERED calls.
const (
	answeredRingLoSec = 2
	answeredRingHiSec = 25
)

// CallGenerator synthesizes CALL events.
type CallGenerator struct {
	MOShare           float64
	Dispositions      []dispositionParams
	dispositionAlias  distributions.AliasTable
	DurationMu        float64
	DurationSigma     float64
	Prefixes          []string
	ForeignPrefixes   []string
	InterconnectShare float64
	MSISDNLength      int
}

// NewCallGenerator precomputes the disposition alias table once at
// construction, never inside the hot event loop.
func NewCallGenerator(moShare, durationP50, durationP90 float64, prefixes, foreignPrefixes []string, interconnectShare float64, msisdnLength int) *CallGenerator {
	disp := DefaultDispositions()
	weights := make([]float64, len(disp))
	for i, d := range disp {
		weights[i] = d.Weight
	}
	mu, sigma := distributions.LognormParamsFromQuantiles(durationP50, durationP90)
	return &CallGenerator{
		MOShare:           moShare,
		Dispositions:      disp,
		dispositionAlias:  distributions.NewAliasTable(weights),
		DurationMu:        mu,
		DurationSigma:     sigma,
		Prefixes:          prefixes,
		ForeignPrefixes:   foreignPrefixes,
		InterconnectShare: interconnectShare,
		MSISDNLength:      msisdnLength,
	}
}

// Generate synthesizes one CALL event for subscriber sub, starting at
// UTC epoch millis startMs, filling dst (the shard's reused scratch
// record). Returns ok=false if identity resolution skipped the event.
func (g *CallGenerator) Generate(rng *rand.Rand, sub models.Subscriber, population []models.Subscriber, resolver *IdentityResolver, startMs int64, tzName string, tzOffsetMin int, cellID string, dst *models.Event) bool {
	msisdn, imsi, imei, mccmnc, ok := resolver.Resolve(sub, startMs)
	if !ok {
		return false
	}

	direction := models.DirectionMT
	if rng.Float64() < g.MOShare {
		direction = models.DirectionMO
	}

	dispIdx := g.dispositionAlias.Sample(rng)
	disp := g.Dispositions[dispIdx]

	var durationSec int64
	if disp.AnsweredLike {
		ring := answeredRingLoSec + rng.Int63n(answeredRingHiSec-answeredRingLoSec+1)
		d := distributions.LogNormal(rng, g.DurationMu, g.DurationSigma)
		durationSec = clampDuration(ring + int64(d))
	} else {
		span := disp.UniformHiSec - disp.UniformLoSec
		durationSec = clampDuration(int64(disp.UniformLoSec + rng.Float64()*span))
	}

	counterparty := Counterparty(rng, sub, population, resolver, startMs, g.Prefixes, g.ForeignPrefixes, g.InterconnectShare, g.MSISDNLength)

	dst.EventType = models.EventTypeCall
	dst.Direction = direction
	dst.MSISDNSrc = msisdn
	dst.MSISDNDst = counterparty
	dst.StartTsMs = startMs
	dst.EndTsMs = startMs + durationSec*1000
	dst.TzName = tzName
	dst.TzOffsetMin = tzOffsetMin
	dst.DurationSec = durationSec
	dst.IMSI = imsi
	dst.IMEI = imei
	dst.MCCMNC = mccmnc
	dst.CellID = cellID
	dst.RecordType = "mscVoiceRecord"
	dst.CauseForRecordClosing = disp.Cause
	dst.SMSSegments = 0
	dst.SMSStatus = ""
	dst.DataBytesIn = 0
	dst.DataBytesOut = 0
	dst.DataDurationSec = 0
	dst.APN = ""
	dst.RAT = ""
	return true
}

// smsStatus pairs an SMS delivery status with its selection weight.
type smsStatus struct {
	Name   string
	Weight float64
}

func defaultSMSStatuses() []smsStatus {
	return []smsStatus{
		{"DELIVERED", 0.85},
		{"SENT", 0.10},
		{"FAILED", 0.05},
	}
}

// SMSGenerator synthesizes SMS events.
type SMSGenerator struct {
	MOShare           float64
	statusAlias       distributions.AliasTable
	statuses          []smsStatus
	segmentAlias      distributions.AliasTable
	Prefixes          []string
	ForeignPrefixes   []string
	InterconnectShare float64
	MSISDNLength      int
}

// NewSMSGenerator precomputes the status and segment-count alias
// tables once at construction.
func NewSMSGenerator(moShare float64, prefixes, foreignPrefixes []string, interconnectShare float64, msisdnLength int) *SMSGenerator {
	statuses := defaultSMSStatuses()
	weights := make([]float64, len(statuses))
	for i, s := range statuses {
		weights[i] = s.Weight
	}
	// Segment counts 1..3, weighted toward 1 (Zipf-like decay).
	segWeights := distributions.ZipfWeights(3, 1.5)
	return &SMSGenerator{
		MOShare:           moShare,
		statusAlias:       distributions.NewAliasTable(weights),
		statuses:          statuses,
		segmentAlias:      distributions.NewAliasTable(segWeights),
		Prefixes:          prefixes,
		ForeignPrefixes:   foreignPrefixes,
		InterconnectShare: interconnectShare,
		MSISDNLength:      msisdnLength,
	}
}

// Generate synthesizes one SMS event.
func (g *SMSGenerator) Generate(rng *rand.Rand, sub models.Subscriber, population []models.Subscriber, resolver *IdentityResolver, startMs int64, tzName string, tzOffsetMin int, cellID string, dst *models.Event) bool {
	msisdn, imsi, imei, mccmnc, ok := resolver.Resolve(sub, startMs)
	if !ok {
		return false
	}

	direction := models.DirectionMT
	if rng.Float64() < g.MOShare {
		direction = models.DirectionMO
	}

	segments := g.segmentAlias.Sample(rng) + 1
	status := g.statuses[g.statusAlias.Sample(rng)].Name

	recordType := "sgsnSMTRecord"
	if direction == models.DirectionMO {
		recordType = "sgsnSMORecord"
	}

	counterparty := Counterparty(rng, sub, population, resolver, startMs, g.Prefixes, g.ForeignPrefixes, g.InterconnectShare, g.MSISDNLength)

	dst.EventType = models.EventTypeSMS
	dst.Direction = direction
	dst.MSISDNSrc = msisdn
	dst.MSISDNDst = counterparty
	dst.StartTsMs = startMs
	dst.EndTsMs = startMs
	dst.TzName = tzName
	dst.TzOffsetMin = tzOffsetMin
	dst.DurationSec = 0
	dst.IMSI = imsi
	dst.IMEI = imei
	dst.MCCMNC = mccmnc
	dst.CellID = cellID
	dst.RecordType = recordType
	dst.CauseForRecordClosing = ""
	dst.SMSSegments = segments
	dst.SMSStatus = status
	dst.DataBytesIn = 0
	dst.DataBytesOut = 0
	dst.DataDurationSec = 0
	dst.APN = ""
	dst.RAT = ""
	return true
}

// ratParams holds the per-RAT byte/duration shaping adopted verbatim
// from the original DataGenerator's per-RAT means and std-devs (bytes,
// not kilobytes, matching the original's raw-byte Normal draws).
type ratParams struct {
	RAT               models.RAT
	Weight            float64
	DownlinkMeanBytes float64
	DownlinkSDBytes   float64
	UplinkRatioLo     float64
	UplinkRatioHi     float64
	DurationMeanSec   float64
	DurationSDSec     float64
}

func defaultRATParams() []ratParams {
	return []ratParams{
		{RAT: models.RATWCDMA, Weight: 0.3, DownlinkMeanBytes: 1_000_000, DownlinkSDBytes: 600_000, UplinkRatioLo: 0.08, UplinkRatioHi: 0.25, DurationMeanSec: 420, DurationSDSec: 240},
		{RAT: models.RATLTE, Weight: 0.5, DownlinkMeanBytes: 4_000_000, DownlinkSDBytes: 2_000_000, UplinkRatioLo: 0.1, UplinkRatioHi: 0.3, DurationMeanSec: 300, DurationSDSec: 180},
		{RAT: models.RATNR, Weight: 0.2, DownlinkMeanBytes: 12_000_000, DownlinkSDBytes: 8_000_000, UplinkRatioLo: 0.1, UplinkRatioHi: 0.35, DurationMeanSec: 240, DurationSDSec: 180},
	}
}

// DataGenerator synthesizes DATA events. It carries no counterparty.
type DataGenerator struct {
	ratAlias distributions.AliasTable
	rats     []ratParams
	apns     []string
	apnAlias distributions.AliasTable
}

// NewDataGenerator precomputes the RAT and APN alias tables once at
// construction. apnWeights may be nil for a uniform choice.
func NewDataGenerator(apns []string, apnWeights []float64) *DataGenerator {
	rats := defaultRATParams()
	weights := make([]float64, len(rats))
	for i, r := range rats {
		weights[i] = r.Weight
	}
	if len(apnWeights) == 0 {
		apnWeights = make([]float64, len(apns))
		for i := range apnWeights {
			apnWeights[i] = 1
		}
	}
	return &DataGenerator{
		ratAlias: distributions.NewAliasTable(weights),
		rats:     rats,
		apns:     apns,
		apnAlias: distributions.NewAliasTable(apnWeights),
	}
}

// Generate synthesizes one DATA event.
func (g *DataGenerator) Generate(rng *rand.Rand, sub models.Subscriber, resolver *IdentityResolver, startMs int64, tzName string, tzOffsetMin int, cellID string, dst *models.Event) bool {
	msisdn, imsi, imei, mccmnc, ok := resolver.Resolve(sub, startMs)
	if !ok {
		return false
	}

	rat := g.rats[g.ratAlias.Sample(rng)]
	apn := g.apns[g.apnAlias.Sample(rng)]

	downlink := math.Max(math.Abs(distributions.Normal(rng, rat.DownlinkMeanBytes, rat.DownlinkSDBytes)), 2000)
	uplinkRatio := rat.UplinkRatioLo + rng.Float64()*(rat.UplinkRatioHi-rat.UplinkRatioLo)
	uplink := math.Max(downlink*uplinkRatio, 1000)
	bytesOut := int64(downlink)
	bytesIn := int64(uplink)
	durationSec := clampDuration(int64(math.Max(math.Abs(distributions.Normal(rng, rat.DurationMeanSec, rat.DurationSDSec)), 5)))

	dst.EventType = models.EventTypeData
	dst.Direction = ""
	dst.MSISDNSrc = msisdn
	dst.MSISDNDst = ""
	dst.StartTsMs = startMs
	dst.EndTsMs = startMs + durationSec*1000
	dst.TzName = tzName
	dst.TzOffsetMin = tzOffsetMin
	dst.DurationSec = durationSec
	dst.IMSI = imsi
	dst.IMEI = imei
	dst.MCCMNC = mccmnc
	dst.CellID = cellID
	dst.RecordType = "sgsnPDPRecord"
	dst.CauseForRecordClosing = ""
	dst.SMSSegments = 0
	dst.SMSStatus = ""
	dst.DataBytesIn = bytesIn
	dst.DataBytesOut = bytesOut
	dst.DataDurationSec = durationSec
	dst.APN = apn
	dst.RAT = rat.RAT
	return true
}

// DayContext bundles once-per-subscriber-day values: the date, its
// precomputed date string, and the timezone name. The generators do
// not take a DayContext; their callers pass the timezone name and the
// event timestamp to Generate directly.
type DayContext struct {
	Date    time.Time
	DateStr string
	TzName  string
}
