package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("mail:status").End(nil))
	boom := errors.New("smtp down")
	require.ErrorIs(t, m.Track("mail:status").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:status", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:status", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("mail:status")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("noop").End(nil))
	m.EmailSent("PO")
}

func TestEmailSent(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.EmailSent("PO")
	m.EmailSent("PO")
	m.EmailSent("")
	require.Equal(t, 2.0, testutil.ToFloat64(m.emails.WithLabelValues("PO")))
}
