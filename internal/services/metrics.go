package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spiritrealm/earn-engine/internal/models"
)

var rewardAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "earn_reward_attempts_total",
	Help: "Reward attempts that passed the eligibility gate",
}, []string{"mechanic"})

var rewardDenials = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "earn_reward_denials_total",
	Help: "Attempts denied by the eligibility gate, by reason",
}, []string{"mechanic", "reason"})

var rewardCommits = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "earn_reward_commits_total",
	Help: "Committed reward grants, by tier",
}, []string{"mechanic", "tier"})

var rewardPayouts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "earn_reward_payout_stones_total",
	Help: "Spirit stones granted through committed rewards",
}, []string{"mechanic"})

var commitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "earn_commit_rejections_total",
	Help: "Ledger commits rejected, by reason",
}, []string{"mechanic", "reason"})

func recordAttempt(mechanic models.Mechanic) {
	rewardAttempts.WithLabelValues(string(mechanic)).Inc()
}

func recordDenial(mechanic models.Mechanic, reason string) {
	rewardDenials.WithLabelValues(string(mechanic), reason).Inc()
}

func recordCommit(mechanic models.Mechanic, tier string, payout int64) {
	rewardCommits.WithLabelValues(string(mechanic), tier).Inc()
	rewardPayouts.WithLabelValues(string(mechanic)).Add(float64(payout))
}

func recordReject(mechanic models.Mechanic, reason string) {
	commitRejections.WithLabelValues(string(mechanic), reason).Inc()
}
