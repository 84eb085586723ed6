// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transition labels for the transitions counter.
const (
	TransitionEnlist         = "enlist"
	TransitionLeave          = "leave"
	TransitionForceEnd       = "force_end"
	TransitionCompleteDetach = "complete_detach"
)

// Transitions counts lifecycle transitions driven by the coordinator.
// Use RegisterMetrics to register this with a Prometheus registry.
var Transitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "muster_transitions_total",
		Help: "Total number of enlistment lifecycle transitions",
	},
	[]string{"transition"},
)

// ForcedDischarges counts services ended by maintenance.
var ForcedDischarges = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "muster_forced_discharges_total",
		Help: "Total number of services ended without the player asking",
	},
	[]string{"reason"},
)

// WagesPaid counts currency credited as wages.
var WagesPaid = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "muster_wages_paid_total",
		Help: "Total currency paid as daily wages",
	},
)

// XPAwarded counts XP awarded by source.
var XPAwarded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "muster_xp_awarded_total",
		Help: "Total XP awarded",
	},
	[]string{"source"},
)

// Promotions counts tiers gained.
var Promotions = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "muster_promotions_total",
		Help: "Total number of tiers gained",
	},
)

// CurrentTier is the player's current tier.
var CurrentTier = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "muster_current_tier",
		Help: "Current progression tier of the player",
	},
)

// OperationDuration observes coordinator operation latency.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "muster_operation_duration_seconds",
		Help:    "Coordinator operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RegisterMetrics registers service metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Transitions)
	reg.MustRegister(ForcedDischarges)
	reg.MustRegister(WagesPaid)
	reg.MustRegister(XPAwarded)
	reg.MustRegister(Promotions)
	reg.MustRegister(CurrentTier)
	reg.MustRegister(OperationDuration)
}

func recordTransition(transition string) {
	Transitions.WithLabelValues(transition).Inc()
}

func recordForcedDischarge(reason string) {
	ForcedDischarges.WithLabelValues(reason).Inc()
}

func recordWage(amount int) {
	WagesPaid.Add(float64(amount))
}

func recordXP(source string, amount, tiersGained, tier int) {
	XPAwarded.WithLabelValues(source).Add(float64(amount))
	if tiersGained > 0 {
		Promotions.Add(float64(tiersGained))
	}
	CurrentTier.Set(float64(tier))
}

func observeDuration(operation string, start time.Time) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
