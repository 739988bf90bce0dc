package analysis

import "github.com/isitobservable/k8s-observer-mcp/pkg/types"

// ComparePeriods summarizes the same metric over two disjoint windows and
// reports the relative change of the mean. higherIsWorse declares which
// direction counts as a regression for this metric (memory growth is bad,
// free-capacity growth is good); it is a property of the metric, never
// inferred from the data.
//
// When the baseline mean is zero the delta is undefined: DeltaUndefined is
// set, DeltaPct stays 0, and Regressed stays false. Either window being
// empty fails with insufficient data.
func ComparePeriods(metric string, higherIsWorse bool, periodA, periodB []TimeSeriesPoint, th Thresholds) (*PeriodComparison, error) {
	a, err := Summarize(periodA, "period_a", th)
	if err != nil {
		return nil, types.NewError(types.KindInsufficientData,
			"baseline window for %s has no samples", metric)
	}
	b, err := Summarize(periodB, "period_b", th)
	if err != nil {
		return nil, types.NewError(types.KindInsufficientData,
			"comparison window for %s has no samples", metric)
	}

	cmp := &PeriodComparison{
		MetricName: metric,
		PeriodA:    *a,
		PeriodB:    *b,
	}

	if a.Mean == 0 {
		cmp.DeltaUndefined = true
		return cmp, nil
	}

	cmp.DeltaPct = (b.Mean - a.Mean) / a.Mean
	if higherIsWorse {
		cmp.Regressed = cmp.DeltaPct > th.RegressionThreshold
	} else {
		cmp.Regressed = cmp.DeltaPct < -th.RegressionThreshold
	}
	return cmp, nil
}
