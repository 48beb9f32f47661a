package service

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK       = "ok"
	resultError    = "error"
	resultTooLarge = "too_large"
	resultRejected = "rejected"
	resultEmpty    = "empty"
)

// Metrics holds the drop counters. A nil *Metrics records nothing.
type Metrics struct {
	uploads     *prometheus.CounterVec
	downloads   *prometheus.CounterVec
	uploadBytes prometheus.Counter
}

// NewMetrics creates the drop counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedrop_uploads_total",
				Help: "Uploads handled, by result.",
			},
			[]string{"result"},
		),
		downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filedrop_downloads_total",
				Help: "Downloads handled, by result.",
			},
			[]string{"result"},
		),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filedrop_upload_bytes_total",
			Help: "Bytes written to the drop store.",
		}),
	}

	for _, c := range []prometheus.Collector{m.uploads, m.downloads, m.uploadBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) upload(result string, bytes int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) download(result string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(result).Inc()
}
