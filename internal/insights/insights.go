// Package insights reduces a filtered read into the figures the dashboard
// shows: headline KPIs, monthly volume and a few ranked breakdowns. Every
// function tolerates missing columns.
package insights

import (
	"sort"
	"strings"

	"ouvidoria/internal/query"
	"ouvidoria/internal/schema"
	"ouvidoria/internal/transformer"
)

// Columns is every column the reductions in this package look at.
var Columns = []string{
	schema.RegistrationDate,
	schema.RegistrationYear,
	schema.DaysToResolution,
	schema.DaysOverdue,
	schema.ComplainantState,
	schema.AgencyName,
	schema.Status,
	schema.SatisfactionLabel,
}

// resolved is the status vocabulary counted as a resolved complaint.
var resolved = map[string]bool{
	"concluída":  true,
	"concluido":  true,
	"atendida":   true,
	"resolvida":  true,
	"finalizada": true,
}

// KPI is the headline block. Nil means "not available".
type KPI struct {
	Volume               int64    `json:"volume"`
	ResolutionRate       float64  `json:"resolution_rate"`
	MeanSatisfaction     *float64 `json:"mean_satisfaction"`
	MeanDaysToResolution *float64 `json:"mean_days_to_resolution"`
}

// KPIs computes the headline figures. The resolution rate uses the status
// column when present and otherwise counts complaints without overdue days.
func KPIs(t *query.Table) KPI {
	k := KPI{Volume: t.NumRows()}
	if k.Volume == 0 {
		return k
	}
	n := float64(k.Volume)

	if status, ok := t.Strings(schema.Status); ok {
		var done int
		for _, s := range status {
			if resolved[strings.ToLower(s)] {
				done++
			}
		}
		k.ResolutionRate = float64(done) / n
	} else {
		k.ResolutionRate = 1 - float64(overdueCount(t))/n
	}

	if labels, ok := t.Strings(schema.SatisfactionLabel); ok {
		var sum, cnt int
		for _, l := range labels {
			if c, ok := transformer.SatisfactionCode(l); ok {
				sum += c
				cnt++
			}
		}
		if cnt > 0 {
			m := float64(sum) / float64(cnt)
			k.MeanSatisfaction = &m
		}
	}

	if days, ok := t.Float64s(schema.DaysToResolution); ok {
		var sum float64
		for _, d := range days {
			sum += d
		}
		m := sum / n
		k.MeanDaysToResolution = &m
	}
	return k
}

// MonthCount is the complaint volume of one calendar month.
type MonthCount struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// MonthlyVolume groups by registration month, ordered chronologically.
func MonthlyVolume(t *query.Table) []MonthCount {
	dates, valid, ok := t.Times(schema.RegistrationDate)
	if !ok {
		return nil
	}
	type key struct{ y, m int }
	counts := map[key]int64{}
	for i, d := range dates {
		if valid[i] {
			counts[key{d.Year(), int(d.Month())}]++
		}
	}
	out := make([]MonthCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, MonthCount{Year: k.y, Month: k.m, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// StateScore is the mean satisfaction code of one state.
type StateScore struct {
	State string  `json:"state"`
	Mean  float64 `json:"mean"`
	Count int64   `json:"count"`
}

// SatisfactionByState returns the n best-rated states, best first. Rows
// without a satisfaction code are ignored.
func SatisfactionByState(t *query.Table, n int) []StateScore {
	states, ok1 := t.Strings(schema.ComplainantState)
	labels, ok2 := t.Strings(schema.SatisfactionLabel)
	if !ok1 || !ok2 {
		return nil
	}
	type acc struct{ sum, cnt int64 }
	by := map[string]*acc{}
	for i, l := range labels {
		c, ok := transformer.SatisfactionCode(l)
		if !ok {
			continue
		}
		a := by[states[i]]
		if a == nil {
			a = &acc{}
			by[states[i]] = a
		}
		a.sum += int64(c)
		a.cnt++
	}
	out := make([]StateScore, 0, len(by))
	for s, a := range by {
		out = append(out, StateScore{State: s, Mean: float64(a.sum) / float64(a.cnt), Count: a.cnt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mean != out[j].Mean {
			return out[i].Mean > out[j].Mean
		}
		return out[i].State < out[j].State
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Count is one value's frequency.
type Count struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// TopCounts counts the values of a text column, most frequent first (ties by
// value), keeping at most n entries when n > 0.
func TopCounts(t *query.Table, column string, n int) []Count {
	vals, ok := t.Strings(column)
	if !ok {
		return nil
	}
	by := map[string]int64{}
	for _, v := range vals {
		by[v]++
	}
	out := make([]Count, 0, len(by))
	for v, c := range by {
		out = append(out, Count{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Deadline splits complaints into overdue (days_overdue > 0) and on time.
type Deadline struct {
	Overdue int64 `json:"overdue"`
	OnTime  int64 `json:"on_time"`
}

// DeadlineStatus counts overdue and on-time complaints. Without a
// days_overdue column every complaint is on time.
func DeadlineStatus(t *query.Table) Deadline {
	o := overdueCount(t)
	return Deadline{Overdue: o, OnTime: t.NumRows() - o}
}

// Overdue summarizes days_overdue.
type Overdue struct {
	Rows        int64   `json:"rows"`
	Count       int64   `json:"count"`
	MeanOverdue float64 `json:"mean_overdue"`
	Max         float64 `json:"max"`
}

// OverdueStats reports how many complaints are overdue, their mean delay and
// the largest delay.
func OverdueStats(t *query.Table) Overdue {
	st := Overdue{Rows: t.NumRows()}
	days, ok := t.Float64s(schema.DaysOverdue)
	if !ok {
		return st
	}
	var sum float64
	for i, d := range days {
		if i == 0 || d > st.Max {
			st.Max = d
		}
		if d > 0 {
			st.Count++
			sum += d
		}
	}
	if st.Count > 0 {
		st.MeanOverdue = sum / float64(st.Count)
	}
	return st
}

func overdueCount(t *query.Table) int64 {
	days, ok := t.Float64s(schema.DaysOverdue)
	if !ok {
		return 0
	}
	var n int64
	for _, d := range days {
		if d > 0 {
			n++
		}
	}
	return n
}

// Summary bundles the breakdowns served together.
type Summary struct {
	KPI                 KPI          `json:"kpi"`
	Monthly             []MonthCount `json:"monthly"`
	SatisfactionByState []StateScore `json:"satisfaction_by_state"`
	TopAgencies         []Count      `json:"top_agencies"`
	Deadline            Deadline     `json:"deadline"`
}

// Breakdowns fills every field of Summary except KPI.
func Breakdowns(t *query.Table) Summary {
	return Summary{
		Monthly:             MonthlyVolume(t),
		SatisfactionByState: SatisfactionByState(t, 15),
		TopAgencies:         TopCounts(t, schema.AgencyName, 10),
		Deadline:            DeadlineStatus(t),
	}
}
