// Package metricspush ships the Prometheus registry to a remote endpoint for
// processes that expose no /metrics route.
package metricspush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/subsync/internal/config"
	obstracing "github.com/smallbiznis/subsync/internal/observability/tracing"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	ExporterRemoteWrite = "prometheus_remote_write"
	ExporterPushgateway = "prometheus_pushgateway"
	defaultPushTimeout  = 5 * time.Second
)

type Pusher interface {
	Push(ctx context.Context, gatherer prometheus.Gatherer) error
}

// NewPusher returns nil when pushing is disabled or misconfigured.
func NewPusher(cfg config.Config, log *zap.Logger) Pusher {
	if log == nil {
		log = zap.NewNop()
	}
	pushCfg := cfg.MetricsPush
	exporter := strings.ToLower(strings.TrimSpace(pushCfg.Exporter))
	if exporter == "" {
		return nil
	}
	endpoint := strings.TrimSpace(pushCfg.Endpoint)
	if endpoint == "" {
		log.Warn("metrics push disabled", zap.Error(errors.New("metrics push endpoint is required")))
		return nil
	}

	switch exporter {
	case ExporterRemoteWrite:
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			log.Warn("metrics push disabled", zap.Error(fmt.Errorf("invalid metrics push endpoint: %w", err)))
			return nil
		}
		return NewRemoteWritePusher(endpoint, pushCfg.AuthToken, processLabels(cfg))
	case ExporterPushgateway:
		labels := processLabels(cfg)
		job := labels["job"]
		delete(labels, "job")
		return NewPushgatewayPusher(endpoint, job, labels)
	default:
		log.Warn("metrics push disabled", zap.String("exporter", exporter))
		return nil
	}
}

// processLabels identify the pushing process. The API and the standalone
// sweeper share a registry layout, so job and environment keep them apart.
func processLabels(cfg config.Config) map[string]string {
	job := strings.TrimSpace(cfg.AppName)
	if job == "" {
		job = "subsync"
	}
	labels := map[string]string{"job": job}
	if env := strings.TrimSpace(cfg.Environment); env != "" {
		labels["environment"] = env
	}
	return labels
}

// RemoteWritePusher sends counters, gauges and histograms to a Prometheus
// remote_write endpoint.
type RemoteWritePusher struct {
	endpoint       string
	authToken      string
	externalLabels map[string]string
	httpClient     *http.Client
	now            func() time.Time
}

func NewRemoteWritePusher(endpoint, authToken string, externalLabels map[string]string) *RemoteWritePusher {
	return &RemoteWritePusher{
		endpoint:       endpoint,
		authToken:      strings.TrimSpace(authToken),
		externalLabels: externalLabels,
		httpClient: obstracing.WrapHTTPClient(&http.Client{
			Timeout: defaultPushTimeout,
		}),
		now: time.Now,
	}
}

func (p *RemoteWritePusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	if p == nil || gatherer == nil {
		return nil
	}

	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	series := buildRemoteWriteSeries(families, p.externalLabels, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	req := &prompb.WriteRequest{Timeseries: series}
	payload, err := proto.Marshal(protoadapt.MessageV2Of(req))
	if err != nil {
		return err
	}

	compressed := snappy.Encode(nil, payload)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(compressed))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("remote write returned %s", resp.Status)
	}
	return nil
}

type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	return &PushgatewayPusher{
		endpoint: endpoint,
		job:      strings.TrimSpace(job),
		grouping: grouping,
	}
}

func (p *PushgatewayPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	if p == nil || gatherer == nil {
		return nil
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).Gatherer(gatherer)
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}

// buildRemoteWriteSeries flattens families into remote_write series.
// Histograms become _bucket, _sum and _count series; summaries and untyped
// metrics are skipped. Metric labels win over external labels.
func buildRemoteWriteSeries(families []*dto.MetricFamily, external map[string]string, timestampMs int64) []prompb.TimeSeries {
	var series []prompb.TimeSeries
	emit := func(name string, metric *dto.Metric, value float64, extra ...prompb.Label) {
		labels := map[string]string{}
		for k, v := range external {
			labels[k] = v
		}
		for _, label := range metric.GetLabel() {
			labels[label.GetName()] = label.GetValue()
		}
		for _, label := range extra {
			labels[label.Name] = label.Value
		}
		labels["__name__"] = name

		out := make([]prompb.Label, 0, len(labels))
		for k, v := range labels {
			out = append(out, prompb.Label{Name: k, Value: v})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		series = append(series, prompb.TimeSeries{
			Labels:  out,
			Samples: []prompb.Sample{{Value: value, Timestamp: timestampMs}},
		})
	}

	for _, family := range families {
		name := family.GetName()
		for _, metric := range family.GetMetric() {
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				if c := metric.GetCounter(); c != nil {
					emit(name, metric, c.GetValue())
				}
			case dto.MetricType_GAUGE:
				if g := metric.GetGauge(); g != nil {
					emit(name, metric, g.GetValue())
				}
			case dto.MetricType_HISTOGRAM:
				h := metric.GetHistogram()
				if h == nil {
					continue
				}
				for _, bucket := range h.GetBucket() {
					if math.IsInf(bucket.GetUpperBound(), +1) {
						continue
					}
					le := strconv.FormatFloat(bucket.GetUpperBound(), 'g', -1, 64)
					emit(name+"_bucket", metric, float64(bucket.GetCumulativeCount()), prompb.Label{Name: "le", Value: le})
				}
				emit(name+"_bucket", metric, float64(h.GetSampleCount()), prompb.Label{Name: "le", Value: "+Inf"})
				emit(name+"_sum", metric, h.GetSampleSum())
				emit(name+"_count", metric, float64(h.GetSampleCount()))
			}
		}
	}
	return series
}
