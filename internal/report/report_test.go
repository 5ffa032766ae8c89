package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "github.com/reillywatson/impact/internal/errors"
	"github.com/reillywatson/impact/internal/ledger"
	"github.com/reillywatson/impact/internal/logging"
	"github.com/reillywatson/impact/internal/metrics"
	"github.com/reillywatson/impact/internal/model"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testContext(t *testing.T) *metrics.Context {
	t.Helper()
	alice := model.User{ID: 1, Login: "alice", Type: model.UserTypeUser}
	merged := base.Add(10 * time.Hour)
	bundle := &model.Bundle{
		Users: []model.User{alice},
		PullRequests: []model.PullRequest{
			{ID: 1, Number: 1, State: model.PullRequestClosed, User: alice, CreatedAt: base, Merged: true, MergedAt: &merged, ClosedAt: &merged},
			{ID: 2, Number: 2, State: model.PullRequestOpen, User: alice, CreatedAt: base.Add(time.Hour)},
		},
	}
	end := base.AddDate(0, 0, 7)
	return &metrics.Context{Ledger: ledger.New(bundle), UserLogin: "alice", StartDate: &base, EndDate: &end}
}

func TestRunnerKeepsRequestOrder(t *testing.T) {
	runner := NewRunner(metrics.Default(), logging.Discard())

	slugs := []string{"review_leverage", "nope", "pr_throughput", "cycle_time"}
	rep, err := runner.Run(context.Background(), testContext(t), slugs)
	require.NoError(t, err)

	require.Len(t, rep.Outcomes, len(slugs))
	for i, o := range rep.Outcomes {
		assert.Equal(t, slugs[i], o.Slug)
	}

	unknown := rep.Outcomes[1]
	assert.Equal(t, StatusUnknownMetric, unknown.Status)
	assert.Nil(t, unknown.Result)

	throughput := rep.Outcomes[2]
	assert.Equal(t, StatusOK, throughput.Status)
	assert.Equal(t, "PR Throughput", throughput.Name)
	require.NotNil(t, throughput.Result)
	assert.Equal(t, "pr_throughput", throughput.Result.MetricSlug)
	assert.Equal(t, 2, throughput.Result.Details["opened_count"])
	assert.Equal(t, 1, throughput.Result.Details["merged_count"])

	assert.Equal(t, "alice", rep.User)
	assert.Equal(t, base, *rep.Since)
}

func TestRunnerDefaultsToAllMetrics(t *testing.T) {
	registry := metrics.Default()
	rep, err := NewRunner(registry, logging.Discard()).Run(context.Background(), testContext(t), nil)
	require.NoError(t, err)

	var slugs []string
	for _, o := range rep.Outcomes {
		assert.Equal(t, StatusOK, o.Status)
		slugs = append(slugs, o.Slug)
	}
	assert.Equal(t, registry.Slugs(), slugs)
}

func TestRunnerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(metrics.Default(), logging.Discard()).Run(ctx, testContext(t), []string{"cycle_time"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerIsDeterministic(t *testing.T) {
	runner := NewRunner(metrics.Default(), logging.Discard())
	mc := testContext(t)

	render := func() string {
		rep, err := runner.Run(context.Background(), mc, nil)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, "json", rep))
		return buf.String()
	}

	first := render()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, render())
	}
}

func sampleReport() *Report {
	since := base
	return &Report{
		User:  "alice",
		Since: &since,
		Outcomes: []Outcome{
			{
				Slug:   "cycle_time",
				Name:   "Cycle Time",
				Status: StatusOK,
				Result: &model.MetricResult{
					MetricSlug: "cycle_time",
					Summary:    "Median cycle time: 10.00h",
					Details: map[string]any{
						"median_hours": 10.0,
						"count":        1,
						"per_pr":       []map[string]any{{"pr_number": 1, "hours": 10.0}},
						"p75_hours":    nil,
					},
				},
			},
			{Slug: "bogus", Status: StatusUnknownMetric},
		},
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "text", sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Impact report for alice (2026-03-01 00:00 to -)")
	assert.Contains(t, out, "Cycle Time (cycle_time)\n  Median cycle time: 10.00h\n")
	assert.Contains(t, out, "  count: 1\n  median_hours: 10.00\n  p75_hours: -\n")
	assert.Contains(t, out, `  per_pr: [{"hours":10,"pr_number":1}]`)
	assert.Contains(t, out, "bogus: unknown metric")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "alice", decoded["user"])
	assert.NotContains(t, decoded, "until")

	outcomes := decoded["metrics"].([]any)
	require.Len(t, outcomes, 2)
	first := outcomes[0].(map[string]any)
	assert.Equal(t, "ok", first["status"])
	assert.Equal(t, "Median cycle time: 10.00h", first["result"].(map[string]any)["summary"])
	assert.NotContains(t, outcomes[1].(map[string]any), "result")
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "yaml", sampleReport()))

	var decoded struct {
		User    string `yaml:"user"`
		Metrics []struct {
			Slug   string `yaml:"slug"`
			Status string `yaml:"status"`
			Result *struct {
				MetricSlug string `yaml:"metric_slug"`
			} `yaml:"result"`
		} `yaml:"metrics"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "alice", decoded.User)
	require.Len(t, decoded.Metrics, 2)
	assert.Equal(t, "cycle_time", decoded.Metrics[0].Result.MetricSlug)
	assert.Equal(t, "unknown_metric", decoded.Metrics[1].Status)
	assert.Nil(t, decoded.Metrics[1].Result)
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", sampleReport())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}
