// Package subscriberdb implements the optional event-sourced
// subscriber-identity store: an append-only chronological log loaded
// from CSV, a validator enforcing the ordering/overlap/format rules,
// and a per-imsi snapshot index queried by binary search.
package subscriberdb

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shiimaxx/cdrgen/internal/identity"
	"github.com/shiimaxx/cdrgen/internal/models"
)

// Store is the loaded, validated, and snapshot-indexed subscriber
// history. It is immutable after Build and safe for concurrent
// read-only use across shards.
type Store struct {
	events []models.HistoryEvent

	// byIMSI holds each imsi's sorted snapshot timeline for
	// snapshotAt(imsi, t).
	byIMSI map[string][]models.Snapshot
	// byMSISDN holds each msisdn's sorted ownership timeline for
	// msisdnOwnerAt(msisdn, t).
	byMSISDN map[string][]ownershipInterval
}

type ownershipInterval struct {
	IMSI string
	From int64
	To   int64
}

// LoadCSV reads a subscriber-history event log in
// timestamp_ms,event_type,imsi,msisdn,imei,mccmnc format. Parsing is
// strict line-by-line: a header row (detected by a non-numeric first
// field) is skipped if present, and every data row must have exactly
// six fields.
func LoadCSV(path string) ([]models.HistoryEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("subscriberdb: open: %w", err)
	}
	defer f.Close()

	var events []models.HistoryEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 6 {
			if _, perr := strconv.ParseInt(fields[0], 10, 64); lineNo == 1 && perr != nil {
				// Tolerate a header row.
				continue
			}
			return nil, fmt.Errorf("subscriberdb: line %d: expected 6 fields, got %d", lineNo, len(fields))
		}
		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			if lineNo == 1 {
				continue
			}
			return nil, fmt.Errorf("subscriberdb: line %d: parse timestamp: %w", lineNo, err)
		}
		events = append(events, models.HistoryEvent{
			TimestampMs: ts,
			Kind:        models.HistoryEventKind(fields[1]),
			IMSI:        fields[2],
			MSISDN:      fields[3],
			IMEI:        fields[4],
			MCCMNC:      fields[5],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("subscriberdb: scan: %w", err)
	}
	return events, nil
}

// SaveCSV writes events in the same six-field format, with a header.
func SaveCSV(path string, events []models.HistoryEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("subscriberdb: create: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp_ms", "event_type", "imsi", "msisdn", "imei", "mccmnc"}); err != nil {
		return fmt.Errorf("subscriberdb: write header: %w", err)
	}
	for _, e := range events {
		row := []string{
			strconv.FormatInt(e.TimestampMs, 10),
			string(e.Kind),
			e.IMSI,
			e.MSISDN,
			e.IMEI,
			e.MCCMNC,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("subscriberdb: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// Validate enforces spec's five-part validation contract: chronological
// order, no overlapping msisdn ownership, imsi/msisdn/imei format
// (including Luhn), and referential integrity of CHANGE_*/RELEASE_NUMBER
// events. Returns the first violation found.
func Validate(events []models.HistoryEvent) error {
	var lastTs int64
	activeIMSI := map[string]bool{}       // imsi -> currently has an active identity
	msisdnOwner := map[string]string{}    // msisdn -> owning imsi, "" if released/unowned
	msisdnActiveFrom := map[string]int64{}

	for i, e := range events {
		if e.TimestampMs < lastTs {
			return fmt.Errorf("subscriberdb: event %d: timestamp %d out of order (previous %d)", i, e.TimestampMs, lastTs)
		}
		lastTs = e.TimestampMs

		if err := identity.ValidateIMSI(e.IMSI, ""); err != nil {
			return fmt.Errorf("subscriberdb: event %d: %w", i, err)
		}
		if err := identity.ValidateMSISDN(e.MSISDN); err != nil {
			return fmt.Errorf("subscriberdb: event %d: %w", i, err)
		}
		if e.IMEI != "" {
			if err := identity.ValidateIMEI(e.IMEI); err != nil {
				return fmt.Errorf("subscriberdb: event %d: %w", i, err)
			}
		}

		switch e.Kind {
		case models.KindNewSubscriber:
			if owner, ok := msisdnOwner[e.MSISDN]; ok && owner != "" {
				return fmt.Errorf("subscriberdb: event %d: msisdn %s already owned by %s", i, e.MSISDN, owner)
			}
			activeIMSI[e.IMSI] = true
			msisdnOwner[e.MSISDN] = e.IMSI
			msisdnActiveFrom[e.MSISDN] = e.TimestampMs

		case models.KindChangeDevice:
			if !activeIMSI[e.IMSI] {
				return fmt.Errorf("subscriberdb: event %d: CHANGE_DEVICE references unknown imsi %s", i, e.IMSI)
			}
			if msisdnOwner[e.MSISDN] != e.IMSI {
				return fmt.Errorf("subscriberdb: event %d: CHANGE_DEVICE msisdn %s not owned by imsi %s", i, e.MSISDN, e.IMSI)
			}

		case models.KindChangeSIM:
			if msisdnOwner[e.MSISDN] == "" {
				return fmt.Errorf("subscriberdb: event %d: CHANGE_SIM references unowned msisdn %s", i, e.MSISDN)
			}
			old := msisdnOwner[e.MSISDN]
			activeIMSI[old] = false
			activeIMSI[e.IMSI] = true
			msisdnOwner[e.MSISDN] = e.IMSI

		case models.KindReleaseNumber:
			if msisdnOwner[e.MSISDN] == "" {
				return fmt.Errorf("subscriberdb: event %d: RELEASE_NUMBER references unowned msisdn %s", i, e.MSISDN)
			}
			if e.IMEI != "" {
				return fmt.Errorf("subscriberdb: event %d: RELEASE_NUMBER must not carry an imei", i)
			}
			msisdnOwner[e.MSISDN] = ""

		case models.KindAssignNumber:
			if owner, ok := msisdnOwner[e.MSISDN]; !ok {
				return fmt.Errorf("subscriberdb: event %d: ASSIGN_NUMBER references never-seen msisdn %s", i, e.MSISDN)
			} else if owner != "" {
				return fmt.Errorf("subscriberdb: event %d: ASSIGN_NUMBER msisdn %s still owned by %s", i, e.MSISDN, owner)
			}
			activeIMSI[e.IMSI] = true
			msisdnOwner[e.MSISDN] = e.IMSI
			msisdnActiveFrom[e.MSISDN] = e.TimestampMs

		default:
			return fmt.Errorf("subscriberdb: event %d: unknown kind %q", i, e.Kind)
		}
	}
	return nil
}

// Build validates events and constructs the queryable Store. Callers
// that already validated (e.g. via --validate-db) may skip re-running
// Validate before Build, but Build always re-validates because a
// corrupt store must never be used for generation.
func Build(events []models.HistoryEvent) (*Store, error) {
	if err := Validate(events); err != nil {
		return nil, err
	}
	s := &Store{
		events:   events,
		byIMSI:   map[string][]models.Snapshot{},
		byMSISDN: map[string][]ownershipInterval{},
	}
	s.buildSnapshots()
	return s, nil
}

// buildSnapshots runs the per-event-kind state machine that turns the
// flat event log into per-imsi snapshot timelines and per-msisdn
// ownership intervals. CHANGE_SIM is treated as an atomic pair: it
// closes the old imsi's open interval at t and opens the new imsi's
// interval at the same instant t, carrying forward msisdn and, unless
// the event overrides them, the previous imei/mccmnc — see DESIGN.md's
// Open Question decision on CHANGE_SIM encoding.
func (s *Store) buildSnapshots() {
	openByIMSI := map[string]*models.Snapshot{}
	openMSISDNOwner := map[string]*ownershipInterval{}
	lastKnownDevice := map[string]struct{ imei, mccmnc string }{} // by msisdn

	closeIMSI := func(imsi string, at int64) {
		if snap, ok := openByIMSI[imsi]; ok {
			snap.To = at
			delete(openByIMSI, imsi)
		}
	}
	closeMSISDN := func(msisdn string, at int64) {
		if iv, ok := openMSISDNOwner[msisdn]; ok {
			iv.To = at
			delete(openMSISDNOwner, msisdn)
		}
	}
	openIMSI := func(imsi, msisdn, imei, mccmnc string, at int64) {
		snap := models.Snapshot{IMSI: imsi, MSISDN: msisdn, IMEI: imei, MCCMNC: mccmnc, From: at}
		s.byIMSI[imsi] = append(s.byIMSI[imsi], snap)
		openByIMSI[imsi] = &s.byIMSI[imsi][len(s.byIMSI[imsi])-1]
		lastKnownDevice[msisdn] = struct{ imei, mccmnc string }{imei, mccmnc}
	}
	openOwnership := func(msisdn, imsi string, at int64) {
		iv := ownershipInterval{IMSI: imsi, From: at}
		s.byMSISDN[msisdn] = append(s.byMSISDN[msisdn], iv)
		openMSISDNOwner[msisdn] = &s.byMSISDN[msisdn][len(s.byMSISDN[msisdn])-1]
	}

	for _, e := range s.events {
		switch e.Kind {
		case models.KindNewSubscriber:
			openIMSI(e.IMSI, e.MSISDN, e.IMEI, e.MCCMNC, e.TimestampMs)
			openOwnership(e.MSISDN, e.IMSI, e.TimestampMs)

		case models.KindChangeDevice:
			closeIMSI(e.IMSI, e.TimestampMs)
			openIMSI(e.IMSI, e.MSISDN, e.IMEI, e.MCCMNC, e.TimestampMs)

		case models.KindChangeSIM:
			var oldIMSI string
			if iv, ok := openMSISDNOwner[e.MSISDN]; ok {
				oldIMSI = iv.IMSI
			}
			closeIMSI(oldIMSI, e.TimestampMs)
			closeMSISDN(e.MSISDN, e.TimestampMs)

			imei, mccmnc := e.IMEI, e.MCCMNC
			if imei == "" {
				prev := lastKnownDevice[e.MSISDN]
				imei, mccmnc = prev.imei, prev.mccmnc
			}
			openIMSI(e.IMSI, e.MSISDN, imei, mccmnc, e.TimestampMs)
			openOwnership(e.MSISDN, e.IMSI, e.TimestampMs)

		case models.KindReleaseNumber:
			if iv, ok := openMSISDNOwner[e.MSISDN]; ok {
				closeIMSI(iv.IMSI, e.TimestampMs)
			}
			closeMSISDN(e.MSISDN, e.TimestampMs)

		case models.KindAssignNumber:
			prev := lastKnownDevice[e.MSISDN]
			imei, mccmnc := prev.imei, prev.mccmnc
			if e.IMEI != "" {
				imei = e.IMEI
			}
			if e.MCCMNC != "" {
				mccmnc = e.MCCMNC
			}
			openIMSI(e.IMSI, e.MSISDN, imei, mccmnc, e.TimestampMs)
			openOwnership(e.MSISDN, e.IMSI, e.TimestampMs)
		}
	}
}

// SnapshotAt returns the (msisdn, imei, mccmnc) valid for imsi at
// instant t via binary search over its sorted timeline, and whether an
// active snapshot exists.
func (s *Store) SnapshotAt(imsi string, t int64) (models.Snapshot, bool) {
	timeline := s.byIMSI[imsi]
	if len(timeline) == 0 {
		return models.Snapshot{}, false
	}
	// timeline is naturally sorted by From because events are loaded
	// in non-decreasing timestamp order (enforced by Validate).
	i := sort.Search(len(timeline), func(i int) bool { return timeline[i].From > t })
	if i == 0 {
		return models.Snapshot{}, false
	}
	snap := timeline[i-1]
	if !snap.Active(t) {
		return models.Snapshot{}, false
	}
	return snap, true
}

// MSISDNOwnerAt returns the imsi owning msisdn at instant t, if any.
func (s *Store) MSISDNOwnerAt(msisdn string, t int64) (string, bool) {
	timeline := s.byMSISDN[msisdn]
	if len(timeline) == 0 {
		return "", false
	}
	i := sort.Search(len(timeline), func(i int) bool { return timeline[i].From > t })
	if i == 0 {
		return "", false
	}
	iv := timeline[i-1]
	if iv.To != 0 && t >= iv.To {
		return "", false
	}
	return iv.IMSI, true
}

// Events exposes the underlying flat log, e.g. for reporting event and
// unique-imsi counts after --validate-db.
func (s *Store) Events() []models.HistoryEvent {
	return s.events
}

// RootIMSIs returns the sorted set of every imsi that ever appears in
// the store, in the deterministic order used to assign subscriber
// arena indices.
func (s *Store) RootIMSIs() []string {
	imsis := make([]string, 0, len(s.byIMSI))
	for imsi := range s.byIMSI {
		imsis = append(imsis, imsi)
	}
	sort.Strings(imsis)
	return imsis
}

// PopulationFromStore builds the subscriber arena that generation
// shards over when a subscriber-history store is supplied: one
// Subscriber per distinct imsi the store has ever seen, seeded with
// that imsi's earliest snapshot as its bootstrap identity so that
// IdentityResolver.Resolve's later point-in-time lookups key correctly
// into the store. Contact pools are built exactly as in the store-less
// path (identity.BuildContactPool), over this store-derived arena.
func PopulationFromStore(store *Store, rng *rand.Rand, contactPoolSize int, zipfS float64) []models.Subscriber {
	imsis := store.RootIMSIs()
	subs := make([]models.Subscriber, len(imsis))
	for i, imsi := range imsis {
		timeline := store.byIMSI[imsi]
		var first models.Snapshot
		if len(timeline) > 0 {
			first = timeline[0]
		}
		subs[i] = models.Subscriber{
			Index:  i,
			MSISDN: first.MSISDN,
			IMSI:   imsi,
			IMEI:   first.IMEI,
			MCCMNC: first.MCCMNC,
		}
	}
	for i := range subs {
		idx, weight, alias := identity.BuildContactPool(rng, i, len(subs), contactPoolSize, zipfS)
		subs[i].ContactIdx = idx
		subs[i].ContactWeight = weight
		subs[i].ContactAlias = alias
	}
	return subs
}
