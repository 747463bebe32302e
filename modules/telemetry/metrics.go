// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package telemetry

import (
	"context"

	"streamhub/modules/keys"
	"streamhub/modules/token"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics holds counters and histograms for HTTP endpoint instrumentation.
type HTTPMetrics struct {
	requestCounter    metric.Int64Counter
	durationHisto     metric.Float64Histogram
	responseSizeHisto metric.Int64Histogram
}

// NewHTTPMetrics registers the HTTP instruments on mp's meter.
func NewHTTPMetrics(mp metric.MeterProvider, serviceName string) (*HTTPMetrics, error) {
	meter := mp.Meter(serviceName)

	requestCounter, err := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	durationHisto, err := meter.Float64Histogram(
		"http_server_duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	responseSizeHisto, err := meter.Int64Histogram(
		"http_server_response_size",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		requestCounter:    requestCounter,
		durationHisto:     durationHisto,
		responseSizeHisto: responseSizeHisto,
	}, nil
}

// RecordRequest records one request. route must be a low-cardinality
// template such as "/api/stream/{streamId}", never the raw path.
func (m *HTTPMetrics) RecordRequest(ctx context.Context, method, route, statusCode string, durationMs float64, responseSize int64) {
	attrs := metric.WithAttributes(
		attribute.String("http_method", method),
		attribute.String("http_route", route),
		attribute.String("http_status_code", statusCode),
	)
	m.requestCounter.Add(ctx, 1, attrs)
	m.durationHisto.Record(ctx, durationMs, attrs)
	if responseSize > 0 {
		m.responseSizeHisto.Record(ctx, responseSize, attrs)
	}
}

var _ token.Recorder = (*TokenMetrics)(nil)

// TokenMetrics counts token issuance and verification failures per signing
// domain. It is handed to issuers and verifiers as their token.Recorder.
type TokenMetrics struct {
	issued   metric.Int64Counter
	rejected metric.Int64Counter
}

func NewTokenMetrics(mp metric.MeterProvider, serviceName string) (*TokenMetrics, error) {
	meter := mp.Meter(serviceName)

	issued, err := meter.Int64Counter(
		"tokens_issued_total",
		metric.WithDescription("Signed tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter(
		"tokens_rejected_total",
		metric.WithDescription("Tokens that failed verification"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}
	return &TokenMetrics{issued: issued, rejected: rejected}, nil
}

func (m *TokenMetrics) Issued(domain keys.Domain) {
	m.issued.Add(context.Background(), 1, metric.WithAttributes(attribute.String("token_domain", domain.String())))
}

func (m *TokenMetrics) Rejected(domain keys.Domain, reason string) {
	m.rejected.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("token_domain", domain.String()),
		attribute.String("reason", reason),
	))
}
