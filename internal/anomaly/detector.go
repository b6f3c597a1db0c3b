package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"docproc/constants"
	"docproc/internal/entity"
	"docproc/internal/validate"
)

// Record is the persisted-document projection the detector scans. It carries
// only what the checks need, decoupled from storage.
type Record struct {
	DocumentID     uuid.UUID
	VendorID       uuid.UUID
	DocumentNumber string
	IssueDate      *time.Time
	DueDate        *time.Time
	Amount         float64
	Tax            *entity.TaxSummary
	Paid           bool
}

// Config tunes the detector. Zero values fall back to defaults.
type Config struct {
	ZScoreThreshold float64 // flag |z| above this, default 3
	MinDistribution int     // minimum samples for amount statistics, default 5
	MinSequenceRun  int     // numeric document numbers needed per vendor, default 5
	MaxSequenceGap  int     // gaps wider than this are ignored, default 5
	RepeatThreshold int     // identical-amount occurrences to flag, default 5
	UnpaidAgeDays   int     // days past due before an open record is stale, default 90
}

func (c *Config) setDefaults() {
	if c.ZScoreThreshold <= 0 {
		c.ZScoreThreshold = 3
	}
	if c.MinDistribution <= 0 {
		c.MinDistribution = 5
	}
	if c.MinSequenceRun <= 0 {
		c.MinSequenceRun = 5
	}
	if c.MaxSequenceGap <= 0 {
		c.MaxSequenceGap = 5
	}
	if c.RepeatThreshold <= 0 {
		c.RepeatThreshold = 5
	}
	if c.UnpaidAgeDays <= 0 {
		c.UnpaidAgeDays = 90
	}
}

// Detector recomputes every check over the full record set on each run.
// Nothing is persisted between runs.
type Detector struct {
	cfg       Config
	validator *validate.Validator
	now       func() time.Time
	logger    *slog.Logger
}

func NewDetector(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.setDefaults()
	return &Detector{
		cfg:       cfg,
		validator: validate.NewValidator(),
		now:       time.Now,
		logger:    logger,
	}
}

// Scan runs all checks and aggregates the composite risk score.
func (d *Detector) Scan(records []Record) entity.AnomalyReport {
	var anomalies []entity.Anomaly

	anomalies = append(anomalies, d.amountOutliers(records)...)
	anomalies = append(anomalies, d.sequenceGaps(records)...)
	anomalies = append(anomalies, d.temporal(records)...)
	anomalies = append(anomalies, d.taxMismatches(records)...)
	anomalies = append(anomalies, d.repeatedAmounts(records)...)

	report := entity.AnomalyReport{
		Anomalies: anomalies,
		RiskScore: riskScore(anomalies),
		Scanned:   len(records),
	}
	d.logger.Info("anomaly.scan.done",
		"scanned", report.Scanned, "anomalies", len(anomalies), "risk_score", report.RiskScore)
	return report
}

// amountOutliers flags |z| above threshold. The per-vendor distribution is
// used when the vendor has enough samples, otherwise the global one.
func (d *Detector) amountOutliers(records []Record) []entity.Anomaly {
	byVendor := make(map[uuid.UUID][]Record)
	for _, r := range records {
		byVendor[r.VendorID] = append(byVendor[r.VendorID], r)
	}

	type stats struct {
		mean, std float64
		n         int
	}
	globalMean, globalStd := amountStats(records)
	vendorStats := make(map[uuid.UUID]stats, len(byVendor))
	for id, group := range byVendor {
		m, s := amountStats(group)
		vendorStats[id] = stats{mean: m, std: s, n: len(group)}
	}

	var out []entity.Anomaly
	for _, r := range records {
		mean, std, n := globalMean, globalStd, len(records)
		if vs := vendorStats[r.VendorID]; vs.n >= d.cfg.MinDistribution {
			mean, std, n = vs.mean, vs.std, vs.n
		}
		if n < d.cfg.MinDistribution || std == 0 {
			continue
		}

		z := (r.Amount - mean) / std
		if math.Abs(z) <= d.cfg.ZScoreThreshold {
			continue
		}

		sev := constants.SeverityHigh
		if math.Abs(z) > 2*d.cfg.ZScoreThreshold {
			sev = constants.SeverityCritical
		}
		out = append(out, entity.Anomaly{
			Type:        entity.AnomalyAmountOutlier,
			Severity:    sev,
			DocumentIDs: []uuid.UUID{r.DocumentID},
			Message:     fmt.Sprintf("amount %.2f is %.1f standard deviations from the mean %.2f", r.Amount, z, mean),
			Metadata:    map[string]any{"z_score": z, "mean": mean, "stddev": std},
		})
	}
	return out
}

var reTrailingNumber = regexp.MustCompile(`(\d+)\s*$`)

// sequenceGaps looks for missing document numbers per counterparty. Only
// small gaps are flagged: wide ones usually mean a different number series,
// not missing documents.
func (d *Detector) sequenceGaps(records []Record) []entity.Anomaly {
	type numbered struct {
		n   int
		doc uuid.UUID
	}
	byVendor := make(map[uuid.UUID][]numbered)
	for _, r := range records {
		m := reTrailingNumber.FindStringSubmatch(r.DocumentNumber)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		byVendor[r.VendorID] = append(byVendor[r.VendorID], numbered{n: n, doc: r.DocumentID})
	}

	var out []entity.Anomaly
	for vendorID, seq := range byVendor {
		if len(seq) < d.cfg.MinSequenceRun {
			continue
		}
		sort.Slice(seq, func(i, j int) bool { return seq[i].n < seq[j].n })

		for i := 1; i < len(seq); i++ {
			missing := seq[i].n - seq[i-1].n - 1
			if missing < 1 || missing > d.cfg.MaxSequenceGap {
				continue
			}
			out = append(out, entity.Anomaly{
				Type:        entity.AnomalySequenceGap,
				Severity:    constants.SeverityMedium,
				DocumentIDs: []uuid.UUID{seq[i-1].doc, seq[i].doc},
				Message: fmt.Sprintf("%d document number(s) missing between %d and %d",
					missing, seq[i-1].n, seq[i].n),
				Metadata: map[string]any{"vendor_id": vendorID.String(), "missing": missing},
			})
		}
	}
	return out
}

func (d *Detector) temporal(records []Record) []entity.Anomaly {
	now := d.now()
	staleCutoff := now.AddDate(0, 0, -d.cfg.UnpaidAgeDays)

	var out []entity.Anomaly
	for _, r := range records {
		if r.IssueDate != nil && r.IssueDate.After(now) {
			out = append(out, entity.Anomaly{
				Type:        entity.AnomalyFutureDated,
				Severity:    constants.SeverityMedium,
				DocumentIDs: []uuid.UUID{r.DocumentID},
				Message:     fmt.Sprintf("document dated %s is in the future", r.IssueDate.Format("2006-01-02")),
			})
		}
		if r.IssueDate != nil && r.DueDate != nil && r.DueDate.Before(*r.IssueDate) {
			out = append(out, entity.Anomaly{
				Type:        entity.AnomalyDueBeforeIssue,
				Severity:    constants.SeverityLow,
				DocumentIDs: []uuid.UUID{r.DocumentID},
				Message: fmt.Sprintf("due date %s precedes issue date %s",
					r.DueDate.Format("2006-01-02"), r.IssueDate.Format("2006-01-02")),
			})
		}
		if !r.Paid && r.DueDate != nil && r.DueDate.Before(staleCutoff) {
			out = append(out, entity.Anomaly{
				Type:        entity.AnomalyLongAgedUnpaid,
				Severity:    constants.SeverityMedium,
				DocumentIDs: []uuid.UUID{r.DocumentID},
				Message: fmt.Sprintf("unpaid %d days past due date %s",
					int(now.Sub(*r.DueDate).Hours()/24), r.DueDate.Format("2006-01-02")),
			})
		}
	}
	return out
}

// taxMismatches replays the invoice tax rules over persisted summaries.
func (d *Detector) taxMismatches(records []Record) []entity.Anomaly {
	var out []entity.Anomaly
	for _, r := range records {
		if r.Tax == nil {
			continue
		}
		findings := d.validator.ValidateInvoice(&entity.InvoiceFields{TaxSummary: r.Tax})
		for _, f := range findings {
			sev := constants.SeverityMedium
			if f.Severity == constants.SeverityError {
				sev = constants.SeverityHigh
			}
			out = append(out, entity.Anomaly{
				Type:        entity.AnomalyTaxMismatch,
				Severity:    sev,
				DocumentIDs: []uuid.UUID{r.DocumentID},
				Message:     f.Message,
				Metadata:    map[string]any{"field_path": f.FieldPath},
			})
		}
	}
	return out
}

func (d *Detector) repeatedAmounts(records []Record) []entity.Anomaly {
	byAmount := make(map[float64][]uuid.UUID)
	for _, r := range records {
		if r.Amount > 0 {
			byAmount[r.Amount] = append(byAmount[r.Amount], r.DocumentID)
		}
	}

	var out []entity.Anomaly
	for amount, docs := range byAmount {
		if len(docs) < d.cfg.RepeatThreshold {
			continue
		}
		out = append(out, entity.Anomaly{
			Type:        entity.AnomalyRepeatedAmount,
			Severity:    constants.SeverityLow,
			DocumentIDs: docs,
			Message:     fmt.Sprintf("amount %.2f appears %d times", amount, len(docs)),
			Metadata:    map[string]any{"occurrences": len(docs)},
		})
	}
	return out
}

var severityWeights = map[constants.Severity]float64{
	constants.SeverityLow:      10,
	constants.SeverityMedium:   25,
	constants.SeverityHigh:     50,
	constants.SeverityCritical: 100,
}

// riskScore is the mean severity weight across detected anomalies, already
// on a 0-100 scale. No anomalies means zero risk.
func riskScore(anomalies []entity.Anomaly) float64 {
	if len(anomalies) == 0 {
		return 0
	}
	var sum float64
	for _, a := range anomalies {
		sum += severityWeights[a.Severity]
	}
	return sum / float64(len(anomalies))
}

// amountStats returns population mean and standard deviation.
func amountStats(records []Record) (mean, std float64) {
	if len(records) == 0 {
		return 0, 0
	}
	for _, r := range records {
		mean += r.Amount
	}
	mean /= float64(len(records))

	var variance float64
	for _, r := range records {
		d := r.Amount - mean
		variance += d * d
	}
	variance /= float64(len(records))
	return mean, math.Sqrt(variance)
}
