package metrics

import (
	"math"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Snapshot is a point-in-time summary of the booking counters for the admin
// stats endpoint.
type Snapshot struct {
	Bookings       map[string]int64 `json:"bookings"`
	Cancellations  map[string]int64 `json:"cancellations"`
	SlotRejections map[string]int64 `json:"slot_rejections"`
	Completions    int64            `json:"completions"`
	BookingP95Ms   float64          `json:"booking_p95_ms"`
}

// TakeSnapshot reads the booking families from gatherer, which defaults to
// the global registry.
func TakeSnapshot(gatherer prometheus.Gatherer) Snapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	snap := Snapshot{
		Bookings:       map[string]int64{},
		Cancellations:  map[string]int64{},
		SlotRejections: map[string]int64{},
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case "echannel_booking_bookings_total":
			sumCounterByLabel(mf, "result", snap.Bookings)
		case "echannel_booking_cancellations_total":
			sumCounterByLabel(mf, "refunded", snap.Cancellations)
		case "echannel_booking_slot_rejections_total":
			sumCounterByLabel(mf, "reason", snap.SlotRejections)
		case "echannel_booking_completions_total":
			for _, metric := range mf.Metric {
				snap.Completions += int64(metric.GetCounter().GetValue())
			}
		case "echannel_booking_booking_latency_seconds":
			snap.BookingP95Ms = latencyQuantile(mf, 0.95) * 1000.0
		}
	}
	return snap
}

func sumCounterByLabel(mf *dto.MetricFamily, label string, out map[string]int64) {
	for _, metric := range mf.Metric {
		if metric == nil {
			continue
		}
		out[labelValue(metric, label)] += int64(metric.GetCounter().GetValue())
	}
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// latencyQuantile merges the histogram across labels and returns the upper
// bound of the bucket holding quantile q.
func latencyQuantile(mf *dto.MetricFamily, q float64) float64 {
	cumulative := map[float64]uint64{}
	var total uint64
	for _, metric := range mf.Metric {
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		total += h.GetSampleCount()
		for _, b := range h.Bucket {
			cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if total == 0 {
		return 0
	}

	uppers := make([]float64, 0, len(cumulative))
	for upper := range cumulative {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	target := uint64(math.Ceil(q * float64(total)))
	var lastFinite float64
	for _, upper := range uppers {
		if math.IsInf(upper, 1) {
			continue
		}
		lastFinite = upper
		if cumulative[upper] >= target {
			return upper
		}
	}
	return lastFinite
}
