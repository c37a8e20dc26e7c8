package orders

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shinefiling/filing-admin/internal/admin/servicetype"
)

const defaultCurrency = "INR"

// Summary aggregates quick metrics for a set of orders.
type Summary struct {
	TotalOrders        int
	TotalRevenueMinor  int64
	FormattedRevenue   string
	PrimaryCurrency    string
	CompletedCount     int
	PendingCount       int
	RejectedCount      int
	CompletionRate     float64
	StatusDistribution []StatusCount
	FamilyDistribution []FamilyCount
	LastRefreshedAt    time.Time
}

// StatusCount captures counts per status.
type StatusCount struct {
	Status string
	Count  int
}

// FamilyCount captures order count and revenue per service family.
type FamilyCount struct {
	Family       servicetype.Family
	Label        string
	Count        int
	RevenueMinor int64
}

// Summarize derives analytics from orders. It never mutates its input.
func Summarize(list []Order, registry *servicetype.Registry, now time.Time) Summary {
	if registry == nil {
		registry = servicetype.Default()
	}

	primary := primaryCurrency(list)
	var revenue int64
	var completed, pending, rejected int

	for _, order := range list {
		if strings.EqualFold(orderCurrency(order), primary) {
			revenue += order.AmountMinor
		}
		switch statusBucket(order.Status) {
		case bucketCompleted:
			completed++
		case bucketRejected:
			rejected++
		default:
			pending++
		}
	}

	rate := 0.0
	if len(list) > 0 {
		rate = float64(completed) / float64(len(list))
	}

	return Summary{
		TotalOrders:        len(list),
		TotalRevenueMinor:  revenue,
		FormattedRevenue:   FormatMinor(revenue, primary),
		PrimaryCurrency:    primary,
		CompletedCount:     completed,
		PendingCount:       pending,
		RejectedCount:      rejected,
		CompletionRate:     rate,
		StatusDistribution: statusDistribution(list),
		FamilyDistribution: familyDistribution(list, registry),
		LastRefreshedAt:    now,
	}
}

// FormatMinor renders an amount in minor units with the currency symbol.
func FormatMinor(amount int64, code string) string {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		unit = currency.MustParseISO(defaultCurrency)
	}
	p := message.NewPrinter(language.English)
	return p.Sprint(currency.Symbol(unit.Amount(float64(amount) / 100)))
}

type bucket int

const (
	bucketPending bucket = iota
	bucketCompleted
	bucketRejected
)

func statusBucket(status string) bucket {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "registered", "certificate issued", "gstin issued", "acknowledged":
		return bucketCompleted
	case "rejected", "cancelled":
		return bucketRejected
	default:
		return bucketPending
	}
}

func statusDistribution(list []Order) []StatusCount {
	counts := map[string]int{}
	labels := map[string]string{}
	for _, order := range list {
		status := strings.TrimSpace(order.Status)
		if status == "" {
			status = "Unknown"
		}
		key := strings.ToLower(status)
		if _, ok := labels[key]; !ok {
			labels[key] = status
		}
		counts[key]++
	}

	result := make([]StatusCount, 0, len(counts))
	for key, count := range counts {
		result = append(result, StatusCount{Status: labels[key], Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count == result[j].Count {
			return result[i].Status < result[j].Status
		}
		return result[i].Count > result[j].Count
	})
	return result
}

func familyDistribution(list []Order, registry *servicetype.Registry) []FamilyCount {
	byFamily := map[servicetype.Family]*FamilyCount{}
	for _, order := range list {
		entry := registry.Resolve(order.Ref())
		fc, ok := byFamily[entry.Family]
		if !ok {
			fc = &FamilyCount{Family: entry.Family, Label: entry.Label}
			byFamily[entry.Family] = fc
		}
		fc.Count++
		fc.RevenueMinor += order.AmountMinor
	}

	result := make([]FamilyCount, 0, len(byFamily))
	for _, fc := range byFamily {
		result = append(result, *fc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count == result[j].Count {
			return result[i].Family < result[j].Family
		}
		return result[i].Count > result[j].Count
	})
	return result
}

func orderCurrency(order Order) string {
	if cur := strings.ToUpper(strings.TrimSpace(order.Currency)); cur != "" {
		return cur
	}
	return defaultCurrency
}

func primaryCurrency(list []Order) string {
	counts := map[string]int{}
	var best string
	bestCount := -1
	for _, order := range list {
		cur := orderCurrency(order)
		counts[cur]++
		if counts[cur] > bestCount {
			best = cur
			bestCount = counts[cur]
		}
	}
	if best == "" {
		return defaultCurrency
	}
	return best
}
