package embed

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestStatic_Deterministic(t *testing.T) {
	p := NewStatic(64)
	ctx := context.Background()

	a, err := p.Embed(ctx, []string{"func parseConfig reads yaml"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := p.Embed(ctx, []string{"func parseConfig reads yaml"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("Vectors differ at %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func TestStatic_BatchMatchesSingle(t *testing.T) {
	p := NewStatic(64)
	ctx := context.Background()
	texts := []string{"alpha beta", "gamma delta", "alpha gamma"}

	batch, err := p.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i, text := range texts {
		single, err := p.Embed(ctx, []string{text})
		if err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
		for j := range batch[i] {
			if batch[i][j] != single[0][j] {
				t.Fatalf("Batched and single embeddings differ for text %d", i)
			}
		}
	}
}

func TestStatic_SharedTokensAreSimilar(t *testing.T) {
	p := NewStatic(256)
	ctx := context.Background()

	vecs, err := p.Embed(ctx, []string{
		"the zebra_handler registers routes",
		"zebra_handler",
		"completely unrelated words here",
	})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	overlap := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[1], vecs[2])
	if overlap <= unrelated {
		t.Errorf("Expected shared-token similarity %f > unrelated %f", overlap, unrelated)
	}
}

func TestStatic_Normalized(t *testing.T) {
	p := NewStatic(128)
	vecs, _ := p.Embed(context.Background(), []string{"some tokens to hash"})

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("Expected unit vector, got squared norm %f", norm)
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// flakyProvider fails a fixed number of times before succeeding.
type flakyProvider struct {
	failures int
	calls    int
	err      error
}

func (f *flakyProvider) Name() string   { return "flaky" }
func (f *flakyProvider) Dimension() int { return 4 }

func (f *flakyProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func TestRetry_EventualSuccess(t *testing.T) {
	inner := &flakyProvider{failures: 2, err: errors.New("embed: 503 Service Unavailable")}
	p := WithRetry(inner, &RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	})

	vecs, err := p.Embed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if len(vecs) != 1 {
		t.Fatalf("Expected 1 vector, got %d", len(vecs))
	}
	if inner.calls != 3 {
		t.Errorf("Expected 3 calls, got %d", inner.calls)
	}
}

func TestRetry_NonRetryable(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("embed: 401 Unauthorized")}
	p := WithRetry(inner, &RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	})

	_, err := p.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if inner.calls != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", inner.calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("embed: 500 Internal Server Error")}
	p := WithRetry(inner, &RetryConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	})

	_, err := p.Embed(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Errorf("Expected 3 calls (1 + 2 retries), got %d", inner.calls)
	}
}

func TestNewProvider(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{"static", ProviderConfig{Provider: "static", Dimension: 64}, false},
		{"openai", ProviderConfig{Provider: "openai", APIKey: "sk-test", Dimension: 1536}, false},
		{"ollama", ProviderConfig{Provider: "ollama", Model: "nomic-embed-text", Dimension: 768}, false},
		{"custom without base_url", ProviderConfig{Provider: "custom", Dimension: 768}, true},
		{"unknown", ProviderConfig{Provider: "pinecone", Dimension: 768}, true},
		{"zero dimension", ProviderConfig{Provider: "static", Dimension: 0}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewProvider(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			if p.Dimension() != tc.cfg.Dimension {
				t.Errorf("Dimension() = %d, want %d", p.Dimension(), tc.cfg.Dimension)
			}
		})
	}
}
