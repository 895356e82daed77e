// Package model defines the value types exchanged between the storage
// layer, the analytics engine and the transports.
package model

import (
	"time"

	"github.com/google/uuid"
)

// StatusEvent is one observed status of a manuscript at a point in time.
type StatusEvent struct {
	ManuscriptID uuid.UUID
	Status       string
	ChangedAt    time.Time
}

// ActivityObservation counts a manuscript's activity inside a trailing
// window. DaysObserved is how long the manuscript existed inside that
// window, never less than one day.
type ActivityObservation struct {
	ManuscriptID   uuid.UUID
	ManuscriptName string
	ActivityCount  int
	DaysObserved   int
}

// StageRecord is one publishing-stage lifecycle slice. A nil FinishedAt
// means the stage is still in progress.
type StageRecord struct {
	Name       string
	CreatedAt  time.Time
	FinishedAt *time.Time
	DeadlineAt *time.Time
}

// Finished reports whether the stage has completed.
func (s StageRecord) Finished() bool { return s.FinishedAt != nil }

// ManuscriptProjection is the aggregate view consumed by the deadline
// predictor and the completion simulator.
type ManuscriptProjection struct {
	ManuscriptID   uuid.UUID
	ManuscriptName string
	Deadline       *time.Time
	Status         string
	Stages         []StageRecord
	CommentCount   int
}

// StageDuration is the observed duration of one finished historical stage.
type StageDuration struct {
	StageName    string
	DurationDays float64
}

// TransitionMatrix is the Markov chain fitted to status histories.
// Matrix[i][j] is the probability of moving from States[i] to States[j].
type TransitionMatrix struct {
	States               []string           `json:"states"`
	Matrix               [][]float64        `json:"matrix"`
	SteadyState          []float64          `json:"steady_state"`
	ExpectedHittingTimes map[string]float64 `json:"expected_hitting_times"`
	TargetState          string             `json:"target_state,omitempty"`
}

// ActivityRate is one manuscript's activity rate compared with its
// organization.
type ActivityRate struct {
	ManuscriptID   uuid.UUID `json:"manuscript_id"`
	ManuscriptName string    `json:"manuscript_name"`
	ObservedRate   float64   `json:"observed_rate"`
	ExpectedRate   float64   `json:"expected_rate"`
	ZScore         float64   `json:"z_score"`
	IsAnomaly      bool      `json:"is_anomaly"`
	PValue         float64   `json:"p_value"`
}

// ActivityAnomalyReport is the result of activity anomaly detection.
type ActivityAnomalyReport struct {
	GlobalMeanRate   float64        `json:"global_mean_rate"`
	GlobalStdDev     float64        `json:"global_std_dev"`
	AnomalyThreshold float64        `json:"anomaly_threshold"`
	DaysBack         int            `json:"days_back"`
	Manuscripts      []ActivityRate `json:"manuscripts"`
	Anomalies        []ActivityRate `json:"anomalies"`
}

// RiskLevel classifies schedule pressure on a manuscript.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ConfidenceInterval bounds a probability estimate.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PredictionFactors are the inputs that drove a deadline prediction.
type PredictionFactors struct {
	StagesCompleted  int     `json:"stages_completed"`
	TotalStages      int     `json:"total_stages"`
	AvgStageVelocity float64 `json:"avg_stage_velocity"`
	CommentActivity  int     `json:"comment_activity"`
}

// DeadlinePrediction is the Bayesian estimate of a manuscript meeting its
// deadline.
type DeadlinePrediction struct {
	ManuscriptID                 uuid.UUID          `json:"manuscript_id"`
	ManuscriptName               string             `json:"manuscript_name"`
	Deadline                     *time.Time         `json:"deadline"`
	ProbabilityOfMeetingDeadline float64            `json:"probability_of_meeting_deadline"`
	ExpectedRemainingDays        float64            `json:"expected_remaining_days"`
	ExpectedCompletionDays       float64            `json:"expected_completion_days"`
	ConfidenceInterval           ConfidenceInterval `json:"confidence_interval"`
	RiskLevel                    RiskLevel          `json:"risk_level"`
	Factors                      PredictionFactors  `json:"factors"`
}

// PercentileLadder summarises a simulated completion-time distribution.
type PercentileLadder struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
}

// DateProbability is one point of a cumulative completion curve. Date is
// an ISO calendar date (YYYY-MM-DD).
type DateProbability struct {
	Date        string  `json:"date"`
	Days        int     `json:"days"`
	Probability float64 `json:"probability"`
}

// SimulationResult is the Monte Carlo forecast for one manuscript.
type SimulationResult struct {
	ManuscriptID       uuid.UUID         `json:"manuscript_id"`
	ManuscriptName     string            `json:"manuscript_name"`
	Simulations        int               `json:"simulations"`
	Percentiles        PercentileLadder  `json:"percentiles"`
	MeanCompletionDays float64           `json:"mean_completion_days"`
	StdDevDays         float64           `json:"std_dev_days"`
	ProbabilityByDate  []DateProbability `json:"probability_by_date"`
}

// DurationDistribution is the fitted duration of one stage type, in days.
type DurationDistribution struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// MonteCarloReport holds per-manuscript forecasts plus the historical
// stage distributions they were sampled from.
type MonteCarloReport struct {
	Manuscripts        []SimulationResult              `json:"manuscripts"`
	StageDistributions map[string]DurationDistribution `json:"stage_distributions"`
}

// AnalyticsReport combines every analyzer's output for one organization.
type AnalyticsReport struct {
	GeneratedAt           time.Time             `json:"generated_at"`
	OrganizationID        uuid.UUID             `json:"organization_id"`
	TransitionAnalysis    TransitionMatrix      `json:"transition_analysis"`
	ActivityAnomalies     ActivityAnomalyReport `json:"activity_anomalies"`
	DeadlinePredictions   []DeadlinePrediction  `json:"deadline_predictions"`
	MonteCarloSimulations MonteCarloReport      `json:"monte_carlo_simulations"`
}

// Organization is the tenant every manuscript belongs to.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}
