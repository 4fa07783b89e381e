package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/sartorproj/healthcast/arima"
	"github.com/sartorproj/healthcast/pipeline"
	"github.com/sartorproj/healthcast/selection"
	"github.com/sartorproj/healthcast/stats"
	"github.com/sartorproj/healthcast/timeseries"
)

// ReportView is the JSON form of a run. Non-finite numbers become null.
type ReportView struct {
	RunID      string             `json:"run_id"`
	Region     string             `json:"region"`
	Metric     string             `json:"metric"`
	Units      string             `json:"units,omitempty"`
	State      string             `json:"state"`
	Usable     bool               `json:"usable"`
	Degraded   string             `json:"degraded,omitempty"`
	Cutoff     int                `json:"cutoff"`
	Quality    timeseries.Quality `json:"quality"`
	TrainSize  int                `json:"train_size"`
	TestSize   int                `json:"test_size"`
	Selection  *SelectionView     `json:"selection,omitempty"`
	FinalModel *ModelView         `json:"final_model,omitempty"`
	Forecast   []PointView        `json:"forecast,omitempty"`
	DurationMS float64            `json:"duration_ms"`
}

// SelectionView summarises the model search.
type SelectionView struct {
	Mode       string          `json:"mode"`
	Criterion  string          `json:"criterion"`
	Best       string          `json:"best"`
	Fallback   bool            `json:"fallback"`
	Accepted   []int           `json:"accepted"`
	Candidates []CandidateView `json:"candidates"`
}

// CandidateView is one evaluated catalog entry.
type CandidateView struct {
	Index     int        `json:"index"`
	Order     string     `json:"order"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Criterion *float64   `json:"criterion"`
	MAE       *float64   `json:"mae"`
	Forecast  []*float64 `json:"forecast,omitempty"`
	ARCoeffs  []float64  `json:"ar_coeffs,omitempty"`
	MACoeffs  []float64  `json:"ma_coeffs,omitempty"`
}

// ModelView describes the model refitted on the full series.
type ModelView struct {
	Order        string        `json:"order"`
	NObs         int           `json:"n_obs"`
	ARCoeffs     []float64     `json:"ar_coeffs,omitempty"`
	MACoeffs     []float64     `json:"ma_coeffs,omitempty"`
	Intercept    *float64      `json:"intercept"`
	Variance     *float64      `json:"variance"`
	LogLik       *float64      `json:"log_lik"`
	AIC          *float64      `json:"aic"`
	AICc         *float64      `json:"aicc"`
	BIC          *float64      `json:"bic"`
	LjungBox     *LjungBoxView `json:"ljung_box,omitempty"`
	DurbinWatson *float64      `json:"durbin_watson,omitempty"`
}

// LjungBoxView is the residual autocorrelation test of the final model.
type LjungBoxView struct {
	Statistic *float64 `json:"statistic"`
	PValue    *float64 `json:"p_value"`
	Lags      int      `json:"lags"`
	DOF       int      `json:"dof"`
}

// PointView is one forecast year.
type PointView struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// NewReportView converts a report for JSON output. Forecast values are only
// included when the report is usable.
func NewReportView(report *pipeline.Report, units string) ReportView {
	view := ReportView{
		RunID:      report.RunID,
		Region:     report.Region,
		Metric:     report.Metric,
		Units:      units,
		State:      report.State.String(),
		Usable:     report.Usable(),
		Cutoff:     report.Cutoff,
		Quality:    report.Quality,
		TrainSize:  report.TrainSize,
		TestSize:   report.TestSize,
		DurationMS: float64(report.Duration.Microseconds()) / 1000,
	}
	if report.Degraded != nil {
		view.Degraded = report.Degraded.Error()
	}

	if out := report.Selection; out != nil {
		sv := &SelectionView{
			Mode:      out.Mode.String(),
			Criterion: out.Criterion,
			Best:      out.Best.String(),
			Fallback:  out.Fallback,
			Accepted:  append([]int{}, out.Accepted...),
		}
		for _, r := range out.Evaluated {
			sv.Candidates = append(sv.Candidates, newCandidateView(r))
		}
		view.Selection = sv
	}

	if report.Forecast != nil && report.Forecast.Summary != nil {
		view.FinalModel = newModelView(report.Forecast.Summary)
	}

	if report.Usable() {
		for _, p := range report.Forecast.Points() {
			view.Forecast = append(view.Forecast, PointView{Period: p.Period, Value: p.Value})
		}
	}

	return view
}

func newCandidateView(r selection.FitResult) CandidateView {
	cv := CandidateView{
		Index:     r.Index,
		Order:     r.Order.String(),
		Status:    r.Status.String(),
		Criterion: finite(r.Criterion),
		MAE:       finite(r.MAE),
	}
	if r.Err != nil {
		cv.Error = r.Err.Error()
	}
	for _, v := range r.Forecast {
		cv.Forecast = append(cv.Forecast, finite(v))
	}
	if r.Summary != nil {
		cv.ARCoeffs = r.Summary.ARCoeffs
		cv.MACoeffs = r.Summary.MACoeffs
	}
	return cv
}

func newModelView(sum *arima.Summary) *ModelView {
	mv := &ModelView{
		Order:     sum.Order.String(),
		NObs:      sum.NObs,
		ARCoeffs:  sum.ARCoeffs,
		MACoeffs:  sum.MACoeffs,
		Intercept: finite(sum.Intercept),
		Variance:  finite(sum.Variance),
		LogLik:    finite(sum.LogLik),
		AIC:       finite(sum.AIC),
		AICc:      finite(sum.AICc),
		BIC:       finite(sum.BIC),
	}
	if lb := sum.LjungBox; lb != nil {
		mv.LjungBox = &LjungBoxView{
			Statistic: finite(lb.Statistic),
			PValue:    finite(lb.PValue),
			Lags:      lb.Lags,
			DOF:       lb.DOF,
		}
	}
	if dw := sum.DurbinWatson; dw != nil {
		mv.DurbinWatson = finite(dw.Statistic)
	}
	return mv
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func writeJSON(w io.Writer, report *pipeline.Report, units string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReportView(report, units))
}

func describeSeries(report *pipeline.Report) string {
	if report == nil || (report.Region == "" && report.Metric == "") {
		return "series"
	}
	return fmt.Sprintf("%s / %s", report.Region, report.Metric)
}

// writeText prints a human-readable report.
func writeText(w io.Writer, report *pipeline.Report, units string) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(w, "%s\nhealthcast forecast: %s\n%s\n", rule, describeSeries(report), rule)

	q := report.Quality
	fmt.Fprintf(w, "Run:       %s\n", report.RunID)
	fmt.Fprintf(w, "Data:      %d observations %d-%d (%d dropped), min %.4f, max %.4f, mean %.4f\n",
		q.Total-q.Dropped, q.FirstPeriod, q.LastPeriod, q.Dropped, q.Min, q.Max, q.Mean)

	out := report.Selection
	if out == nil {
		return
	}

	fmt.Fprintf(w, "Split:     cutoff %d, train %d, test %d (%s)\n\n",
		report.Cutoff, report.TrainSize, report.TestSize, out.Mode)

	fmt.Fprintf(w, "   %-3s %-9s %-17s %12s %12s\n", "#", "order", "status", "mae", out.Criterion)
	for _, r := range out.Evaluated {
		fmt.Fprintf(w, "   %-3d %-9s %-17s %12s %12s\n",
			r.Index, r.Order, r.Status, formatNumber(r.MAE), formatNumber(r.Criterion))
	}

	selected := fmt.Sprintf("ARIMA%s", out.Best)
	if out.Fallback {
		selected += " (fallback: no candidate was valid)"
	}
	fmt.Fprintf(w, "\nSelected:  %s\n", selected)

	if report.Forecast != nil && report.Forecast.Summary != nil {
		writeFinalModel(w, report.Forecast.Summary, out.Criterion)
	}

	if !report.Usable() {
		fmt.Fprintf(w, "\n%s\n!!! FORECAST UNUSABLE !!!\n", strings.Repeat("!", 80))
		if report.Degraded != nil {
			fmt.Fprintf(w, "   reason: %v\n", report.Degraded)
		}
		fmt.Fprintln(w, strings.Repeat("!", 80))
		return
	}

	label := "Forecast"
	if units != "" {
		label = fmt.Sprintf("Forecast (%s)", units)
	}
	fmt.Fprintf(w, "\n%s:\n", label)
	for _, p := range report.Forecast.Points() {
		fmt.Fprintf(w, "   %d  %.4f\n", p.Period, p.Value)
	}
	fmt.Fprintln(w, rule)
}

// writeFinalModel prints the criteria and residual diagnostics of the refit.
func writeFinalModel(w io.Writer, sum *arima.Summary, criterion string) {
	ic := stats.InformationCriteria{AIC: sum.AIC, AICc: sum.AICc, BIC: sum.BIC, LogLik: sum.LogLik}
	fmt.Fprintf(w, "Final fit: ARIMA%s on %d observations, %s %s (AIC %s, AICc %s, BIC %s)\n",
		sum.Order, sum.NObs, criterion, formatNumber(ic.Get(criterion)),
		formatNumber(sum.AIC), formatNumber(sum.AICc), formatNumber(sum.BIC))

	lb := "n/a (too few residuals)"
	if sum.LjungBox != nil {
		lb = fmt.Sprintf("Q=%s, p=%s (%d lags)",
			formatNumber(sum.LjungBox.Statistic), formatNumber(sum.LjungBox.PValue), sum.LjungBox.Lags)
	}
	dw := "n/a"
	if sum.DurbinWatson != nil {
		dw = formatNumber(sum.DurbinWatson.Statistic)
	}
	fmt.Fprintf(w, "Residuals: Ljung-Box %s, Durbin-Watson %s\n", lb, dw)
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}
