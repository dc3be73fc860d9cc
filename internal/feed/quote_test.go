package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestFetchQuoteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pair"); got != "USDC:XLM" {
			t.Errorf("pair 查询参数错误: %s", got)
		}
		if got := r.Header.Get("User-Agent"); got != "anchor-router-test" {
			t.Errorf("User-Agent 错误: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rate":"1.0525","fee_percent":"0.75","min_amount":"10","max_amount":"50000"}`))
	}))
	defer server.Close()

	client := NewQuoteClient(QuoteClientOptions{UserAgent: "anchor-router-test"}, zerolog.Nop())
	quote, err := client.FetchQuote(context.Background(), server.URL, "USDC:XLM")
	if err != nil {
		t.Fatalf("获取报价失败: %v", err)
	}

	if !quote.Rate.Equal(decimal.RequireFromString("1.0525")) {
		t.Errorf("汇率解析错误: %s", quote.Rate)
	}
	if !quote.FeePercent.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("费率解析错误: %s", quote.FeePercent)
	}
	if quote.SubmittedAt.IsZero() {
		t.Error("SubmittedAt 不应为零值")
	}
}

func TestFetchQuoteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"errorType":"rate_limited","description":"too many requests"}`))
	}))
	defer server.Close()

	client := NewQuoteClient(QuoteClientOptions{}, zerolog.Nop())
	_, err := client.FetchQuote(context.Background(), server.URL, "USDC:XLM")
	if err == nil {
		t.Fatal("期望返回错误")
	}
	if !strings.Contains(err.Error(), "too many requests") {
		t.Errorf("错误应包含 API 描述信息: %v", err)
	}
}

func TestFetchQuoteNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	client := NewQuoteClient(QuoteClientOptions{}, zerolog.Nop())
	_, err := client.FetchQuote(context.Background(), server.URL, "USDC:XLM")
	if err == nil {
		t.Fatal("期望返回错误")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("错误应包含状态码: %v", err)
	}
}

func TestFetchQuoteBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate":"not-a-number","fee_percent":"0.75","min_amount":"10","max_amount":"50000"}`))
	}))
	defer server.Close()

	client := NewQuoteClient(QuoteClientOptions{}, zerolog.Nop())
	_, err := client.FetchQuote(context.Background(), server.URL, "USDC:XLM")
	if err == nil || !strings.Contains(err.Error(), "parse rate") {
		t.Fatalf("非法汇率应解析失败: %v", err)
	}
}

func TestFetchQuoteRequiresArguments(t *testing.T) {
	client := NewQuoteClient(QuoteClientOptions{}, zerolog.Nop())

	if _, err := client.FetchQuote(context.Background(), "", "USDC:XLM"); err == nil {
		t.Fatal("空端点应报错")
	}
	if _, err := client.FetchQuote(context.Background(), "http://example.test", ""); err == nil {
		t.Fatal("空交易对应报错")
	}
}
