package subscriberdb

import (
	"math"
	"math/rand"
	"sort"

	"github.com/shiimaxx/cdrgen/internal/identity"
	"github.com/shiimaxx/cdrgen/internal/models"
)

// GeneratorConfig parameterizes the synthetic subscriber-history
// database produced by --generate-db, adopting the annual-rate
// conversion and cooldown bookkeeping of the original generator.
type GeneratorConfig struct {
	Size                 int
	HistoryDays          int
	Prefixes             []string
	MCCMNCPool           []string
	IMSILength           int
	MSISDNLength         int
	DeviceChangeAnnual   float64 // e.g. 0.3 => ~30% of subscribers change device per year
	NumberReleaseAnnual  float64
	ReassignCooldownDays int
	NewSubscriberAnnual  float64 // rate at which entirely new subscribers appear over the window
}

// dailyProbability converts an annual rate into an equivalent daily
// probability: 1 - (1-rate)^(1/365).
func dailyProbability(annualRate float64) float64 {
	if annualRate <= 0 {
		return 0
	}
	if annualRate >= 1 {
		return 1
	}
	return 1 - math.Pow(1-annualRate, 1.0/365.0)
}

type liveSubscriber struct {
	imsi, msisdn, imei, mccmnc string
	releasedAtDay              int // -1 while active
}

// Generate builds a chronologically sorted synthetic history-database
// event log spanning cfg.HistoryDays days, starting at startEpochMs.
func Generate(rng *rand.Rand, cfg GeneratorConfig, startEpochMs int64) []models.HistoryEvent {
	const dayMs = 24 * 3600 * 1000

	live := make([]*liveSubscriber, 0, cfg.Size)
	var events []models.HistoryEvent
	var releasedPool []*liveSubscriber

	newIdentity := func() *liveSubscriber {
		prefix := cfg.Prefixes[rng.Intn(len(cfg.Prefixes))]
		mccmnc := cfg.MCCMNCPool[rng.Intn(len(cfg.MCCMNCPool))]
		return &liveSubscriber{
			imsi:          identity.GenIMSI(rng, mccmnc, cfg.IMSILength),
			msisdn:        identity.GenMSISDN(rng, prefix, cfg.MSISDNLength),
			imei:          identity.GenIMEI(rng),
			mccmnc:        mccmnc,
			releasedAtDay: -1,
		}
	}

	for i := 0; i < cfg.Size; i++ {
		sub := newIdentity()
		live = append(live, sub)
		events = append(events, models.HistoryEvent{
			TimestampMs: startEpochMs,
			Kind:        models.KindNewSubscriber,
			IMSI:        sub.imsi,
			MSISDN:      sub.msisdn,
			IMEI:        sub.imei,
			MCCMNC:      sub.mccmnc,
		})
	}

	deviceP := dailyProbability(cfg.DeviceChangeAnnual)
	releaseP := dailyProbability(cfg.NumberReleaseAnnual)
	newSubP := dailyProbability(cfg.NewSubscriberAnnual)

	for day := 1; day < cfg.HistoryDays; day++ {
		ts := startEpochMs + int64(day)*dayMs

		for _, sub := range live {
			if sub.releasedAtDay >= 0 {
				continue
			}
			if rng.Float64() < deviceP {
				sub.imei = identity.GenIMEI(rng)
				events = append(events, models.HistoryEvent{
					TimestampMs: ts, Kind: models.KindChangeDevice,
					IMSI: sub.imsi, MSISDN: sub.msisdn, IMEI: sub.imei, MCCMNC: sub.mccmnc,
				})
			}
			if rng.Float64() < releaseP {
				sub.releasedAtDay = day
				events = append(events, models.HistoryEvent{
					TimestampMs: ts, Kind: models.KindReleaseNumber,
					IMSI: sub.imsi, MSISDN: sub.msisdn, MCCMNC: sub.mccmnc,
				})
				releasedPool = append(releasedPool, sub)
			}
		}

		// Reassign numbers whose cooldown has elapsed.
		var stillCooling []*liveSubscriber
		for _, sub := range releasedPool {
			if day-sub.releasedAtDay < cfg.ReassignCooldownDays {
				stillCooling = append(stillCooling, sub)
				continue
			}
			newSub := newIdentity()
			newSub.msisdn = sub.msisdn // reuse the released number
			live = append(live, newSub)
			events = append(events, models.HistoryEvent{
				TimestampMs: ts, Kind: models.KindAssignNumber,
				IMSI: newSub.imsi, MSISDN: newSub.msisdn, IMEI: newSub.imei, MCCMNC: newSub.mccmnc,
			})
		}
		releasedPool = stillCooling

		if rng.Float64() < newSubP {
			sub := newIdentity()
			live = append(live, sub)
			events = append(events, models.HistoryEvent{
				TimestampMs: ts, Kind: models.KindNewSubscriber,
				IMSI: sub.imsi, MSISDN: sub.msisdn, IMEI: sub.imei, MCCMNC: sub.mccmnc,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].TimestampMs < events[j].TimestampMs })
	return events
}
