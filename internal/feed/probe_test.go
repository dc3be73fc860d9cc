package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestProbeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"availability_percent":99.25}`))
	}))
	defer server.Close()

	prober := NewProber(ProberOptions{}, zerolog.Nop())
	result, err := prober.Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("健康探测失败: %v", err)
	}
	if result.AvailabilityPercent != 99.25 {
		t.Errorf("可用率解析错误: %.2f", result.AvailabilityPercent)
	}
	if result.LatencyMs < 0 {
		t.Errorf("延迟不应为负数: %d", result.LatencyMs)
	}
}

func TestProbeNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	prober := NewProber(ProberOptions{}, zerolog.Nop())
	_, err := prober.Probe(context.Background(), server.URL)
	if err == nil {
		t.Fatal("非 2xx 状态应返回错误")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("错误应包含状态码: %v", err)
	}
}

func TestProbeAvailabilityOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"availability_percent":120.0}`))
	}))
	defer server.Close()

	prober := NewProber(ProberOptions{}, zerolog.Nop())
	_, err := prober.Probe(context.Background(), server.URL)
	if err == nil {
		t.Fatal("超范围可用率应返回错误")
	}
}

func TestProbeEmptyEndpoint(t *testing.T) {
	prober := NewProber(ProberOptions{}, zerolog.Nop())
	if _, err := prober.Probe(context.Background(), ""); err == nil {
		t.Fatal("空端点应报错")
	}
}
