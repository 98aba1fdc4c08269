package gateway

import (
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/fundshadow/fundshadow-client/types"
)

func readCounter(op string, err error) *metrics.Counter {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, types.ErrNotFound):
		result = "not_found"
	case types.IsRetryableRead(err):
		result = "transient"
	default:
		result = "error"
	}
	return metrics.GetOrCreateCounter(fmt.Sprintf(`fundshadow_reads_total{op=%q,result=%q}`, op, result))
}

func submitCounter(op string, err error) *metrics.Counter {
	result := "submitted"
	if err != nil {
		result = "error"
		if errors.Is(err, types.ErrSigningDeclined) {
			result = "declined"
		} else if _, ok := types.RejectionReason(err); ok {
			result = "rejected"
		} else if types.IsTransientWrite(err) {
			result = "transient"
		}
	}
	return metrics.GetOrCreateCounter(fmt.Sprintf(`fundshadow_writes_total{op=%q,result=%q}`, op, result))
}

func resolvedCounter(op string, phase Phase) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`fundshadow_writes_resolved_total{op=%q,phase=%q}`, op, phase))
}

var pendingWrites = metrics.NewCounter("fundshadow_writes_pending")
