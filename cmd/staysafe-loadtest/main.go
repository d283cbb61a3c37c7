// Command staysafe-loadtest drives concurrent signup, verify, login and
// verify cycles against an in-process engine backed by Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/staysafe"
	"github.com/MrEthical07/staysafe/accounts"
	"github.com/MrEthical07/staysafe/metrics/export/otel"
	"github.com/MrEthical07/staysafe/notify"
)

func main() {
	var (
		users       = flag.Int("users", 500, "number of accounts to run through the full flow")
		concurrency = flag.Int("concurrency", 32, "number of concurrent workers")
		memory      = flag.Uint("argon-memory", 16*1024, "argon2id memory in KiB")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *memory == 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency and argon-memory must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := redisClient(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cfg := staysafe.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("loadtest-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("loadtest-refresh-secret-0123456789abcdef")
	cfg.Password.Memory = uint32(*memory)
	cfg.Password.Time = 1
	cfg.OTP.BcryptCost = 4
	cfg.Audit.BufferSize = 4096

	sender := notify.NewMemorySender()
	engine, err := staysafe.New().
		WithConfig(cfg).
		WithAccountStore(accounts.NewRedisStore(client)).
		WithRedis(client).
		WithCodeSender(sender).
		WithAuditSink(staysafe.NoOpSink{}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter, err := otel.NewOTelExporter(provider.Meter("staysafe-loadtest"), engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "otel exporter: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = exporter.Close() }()

	r := &runner{engine: engine, sender: sender, run: time.Now().UnixNano()}

	fmt.Printf("running %d users with %d workers...\n", *users, *concurrency)
	signup := runPhase(*users, *concurrency, r.signup)
	login := runPhase(*users, *concurrency, r.login)
	authenticate := runPhase(*users, *concurrency, r.authenticate)

	fmt.Println("---- results ----")
	printStats("signup+verify", signup)
	printStats("login+verify", login)
	printStats("authenticate", authenticate)
	fmt.Printf("audit dropped: %d\n", engine.AuditDropped())

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		fmt.Fprintf(os.Stderr, "collect metrics: %v\n", err)
		os.Exit(1)
	}
	printCounters(rm)
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

type runner struct {
	engine *staysafe.Engine
	sender *notify.MemorySender
	run    int64

	mu     sync.Mutex
	tokens map[int]string
}

const loadPassword = "Load-Test-Suite-2026!"

func (r *runner) email(i int) string {
	return fmt.Sprintf("guest-%d-%d@loadtest.example.com", r.run, i)
}

// ctx gives every user its own client address so the per-IP gates do not
// throttle the run.
func (r *runner) ctx(i int) context.Context {
	ip := fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xff, (i>>8)&0xff, i&0xff)
	return staysafe.WithClientIP(context.Background(), ip)
}

func (r *runner) verify(ctx context.Context, email string) (*staysafe.Session, error) {
	code, err := r.sender.Code(email)
	if err != nil {
		return nil, err
	}
	return r.engine.VerifyMFA(ctx, email, code)
}

func (r *runner) signup(i int) error {
	ctx, email := r.ctx(i), r.email(i)
	if _, err := r.engine.Signup(ctx, staysafe.SignupInput{Email: email, Password: loadPassword, FullName: "Load Guest"}); err != nil {
		return err
	}
	_, err := r.verify(ctx, email)
	return err
}

func (r *runner) login(i int) error {
	ctx, email := r.ctx(i), r.email(i)
	if _, err := r.engine.Login(ctx, email, loadPassword); err != nil {
		return err
	}
	sess, err := r.verify(ctx, email)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if r.tokens == nil {
		r.tokens = make(map[int]string)
	}
	r.tokens[i] = sess.AccessToken
	r.mu.Unlock()
	return nil
}

func (r *runner) authenticate(i int) error {
	r.mu.Lock()
	token := r.tokens[i]
	r.mu.Unlock()
	_, err := r.engine.Authenticate(r.ctx(i), token, staysafe.AuthOptions{})
	return err
}

func runPhase(ops, concurrency int, op func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// printCounters lists every non-zero engine counter.
func printCounters(rm metricdata.ResourceMetrics) {
	fmt.Println("---- engine counters ----")
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if dp.Value != 0 {
					fmt.Printf("%s %d\n", m.Name, dp.Value)
				}
			}
		}
	}
}
