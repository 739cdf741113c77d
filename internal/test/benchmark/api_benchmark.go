package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// APIBenchmark 对单个接口施加并发压力
type APIBenchmark struct {
	BaseURL     string
	Concurrency int
	Requests    int
	AuthToken   string
	Client      *http.Client
}

// BenchmarkResult 基准测试结果
type BenchmarkResult struct {
	URL            string        `json:"url"`
	Method         string        `json:"method"`
	Concurrency    int           `json:"concurrency"`
	TotalRequests  int           `json:"total_requests"`
	SuccessCount   int           `json:"success_count"`
	FailureCount   int           `json:"failure_count"`
	TotalTime      time.Duration `json:"total_time"`
	AverageTime    time.Duration `json:"average_time"`
	MinTime        time.Duration `json:"min_time"`
	MaxTime        time.Duration `json:"max_time"`
	P95Time        time.Duration `json:"p95_time"`
	RequestsPerSec float64       `json:"requests_per_sec"`
	StatusCodes    map[int]int   `json:"status_codes"`
	Errors         []string      `json:"errors"`
}

// requestResult 单个请求的结果
type requestResult struct {
	duration   time.Duration
	statusCode int
	err        error
}

// NewAPIBenchmark 创建新的API基准测试实例
func NewAPIBenchmark(baseURL string, concurrency, requests int, authToken string) *APIBenchmark {
	if concurrency < 1 {
		concurrency = 1
	}
	return &APIBenchmark{
		BaseURL:     baseURL,
		Concurrency: concurrency,
		Requests:    requests,
		AuthToken:   authToken,
		Client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// RunGET 执行GET请求的基准测试
func (b *APIBenchmark) RunGET(ctx context.Context, path string) *BenchmarkResult {
	return b.run(ctx, http.MethodGet, path, nil)
}

// RunPOST 执行POST请求的基准测试，payload 为每个请求生成请求体
func (b *APIBenchmark) RunPOST(ctx context.Context, path string, payload func(i int) interface{}) *BenchmarkResult {
	return b.run(ctx, http.MethodPost, path, payload)
}

func (b *APIBenchmark) run(ctx context.Context, method, path string, payload func(i int) interface{}) *BenchmarkResult {
	url := b.BaseURL + path
	results := make([]requestResult, b.Requests)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Concurrency)

	startTime := time.Now()
	for i := 0; i < b.Requests; i++ {
		g.Go(func() error {
			var body []byte
			if payload != nil {
				raw, err := json.Marshal(payload(i))
				if err != nil {
					results[i] = requestResult{err: fmt.Errorf("JSON编码错误: %w", err)}
					return nil
				}
				body = raw
			}
			results[i] = b.do(gctx, method, url, body)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(method, url, b.Concurrency, results, time.Since(startTime))
}

func (b *APIBenchmark) do(ctx context.Context, method, url string, body []byte) requestResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return requestResult{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if b.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.AuthToken)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return requestResult{err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return requestResult{duration: time.Since(start), statusCode: resp.StatusCode}
}

// summarize 汇总耗时分布和状态码
func summarize(method, url string, concurrency int, results []requestResult, elapsed time.Duration) *BenchmarkResult {
	r := &BenchmarkResult{
		URL:           url,
		Method:        method,
		Concurrency:   concurrency,
		TotalRequests: len(results),
		TotalTime:     elapsed,
		StatusCodes:   make(map[int]int),
	}

	durations := make([]time.Duration, 0, len(results))
	var total time.Duration
	for _, res := range results {
		if res.err != nil {
			r.FailureCount++
			r.Errors = append(r.Errors, res.err.Error())
			continue
		}
		durations = append(durations, res.duration)
		total += res.duration
		r.StatusCodes[res.statusCode]++
		if res.statusCode >= 200 && res.statusCode < 300 {
			r.SuccessCount++
		} else {
			r.FailureCount++
		}
	}

	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		r.MinTime = durations[0]
		r.MaxTime = durations[len(durations)-1]
		r.AverageTime = total / time.Duration(len(durations))
		r.P95Time = durations[(len(durations)*95-1)/100]
	}
	if elapsed > 0 {
		r.RequestsPerSec = float64(len(results)) / elapsed.Seconds()
	}
	return r
}

// SuccessRate 成功率百分比
func (r *BenchmarkResult) SuccessRate() float64 {
	if r.TotalRequests == 0 {
		return 0
	}
	return float64(r.SuccessCount) / float64(r.TotalRequests) * 100
}

// PrintResult 打印基准测试结果
func (r *BenchmarkResult) PrintResult(w io.Writer) {
	fmt.Fprintf(w, "基准测试结果:\n")
	fmt.Fprintf(w, "URL: %s\n", r.URL)
	fmt.Fprintf(w, "方法: %s\n", r.Method)
	fmt.Fprintf(w, "并发数: %d\n", r.Concurrency)
	fmt.Fprintf(w, "总请求数: %d\n", r.TotalRequests)
	fmt.Fprintf(w, "成功请求数: %d\n", r.SuccessCount)
	fmt.Fprintf(w, "失败请求数: %d\n", r.FailureCount)
	fmt.Fprintf(w, "总耗时: %s\n", r.TotalTime)
	fmt.Fprintf(w, "平均耗时: %s\n", r.AverageTime)
	fmt.Fprintf(w, "最小耗时: %s\n", r.MinTime)
	fmt.Fprintf(w, "最大耗时: %s\n", r.MaxTime)
	fmt.Fprintf(w, "P95耗时: %s\n", r.P95Time)
	fmt.Fprintf(w, "每秒请求数: %.2f\n", r.RequestsPerSec)
	fmt.Fprintf(w, "状态码分布:\n")
	codes := make([]int, 0, len(r.StatusCodes))
	for code := range r.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.StatusCodes[code])
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "错误信息 (最多显示5个):\n")
		for i, err := range r.Errors {
			if i >= 5 {
				fmt.Fprintf(w, "  ... 还有 %d 个错误\n", len(r.Errors)-5)
				break
			}
			fmt.Fprintf(w, "  %s\n", err)
		}
	}
}
