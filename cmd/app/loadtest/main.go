package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pvzzle/wasi/internal/provider"
	"github.com/pvzzle/wasi/internal/storage"
	"github.com/pvzzle/wasi/internal/storage/badgerkv"
	"github.com/pvzzle/wasi/internal/storage/memory"
	"github.com/pvzzle/wasi/internal/storage/mysqlkv"
	"github.com/pvzzle/wasi/internal/storage/pg"
	"github.com/pvzzle/wasi/internal/txtrack"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type opType int

const (
	opWrite opType = iota
	opRead
)

// chains spreads the history over several partitions, as a wallet that
// switches networks would.
var chains = []string{"0x1", "0x89", "0xaa36a7", "0x2105", "0xa4b1"}

func main() {
	var (
		backend = flag.String("storage", "memory", "memory, badger, postgres or mysql")
		dsn     = flag.String("dsn", "", "Postgres URL, MySQL DSN or badger directory")
		dur     = flag.Duration("dur", 60*time.Second, "test duration")
		warmup  = flag.Duration("warmup", 5*time.Second, "warmup duration (not counted)")
		avgRPS  = flag.Int("avg-rps", 300, "avg RPS")
		peakRPS = flag.Int("peak-rps", 1500, "peak RPS (during ramp)")
		ramp    = flag.Duration("ramp", 10*time.Second, "ramp-up duration to peak")
		rwRatio = flag.Int("rw", 15, "R/W ratio, reads per 1 write (e.g. 15)")
		workers = flag.Int("workers", 64, "concurrent workers")
	)
	flag.Parse()

	ctx := context.Background()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()

	kv, err := open(ctx, *backend, *dsn, log)
	if err != nil {
		panic(err)
	}
	defer kv.Close()

	h := txtrack.NewHistory(kv, log)

	fmt.Println("starting warmup:", *warmup)
	runPhase(ctx, h, *workers, *avgRPS, *avgRPS, 0, *warmup, *rwRatio, false)

	fmt.Println("starting measured test:", *dur)
	res := runPhase(ctx, h, *workers, *avgRPS, *peakRPS, *ramp, *dur, *rwRatio, true)

	printReport(res)
}

func open(ctx context.Context, backend, dsn string, log zerolog.Logger) (storage.KV, error) {
	switch backend {
	case "memory":
		return memory.New(), nil
	case "badger":
		return badgerkv.Open(dsn, log)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("dsn required")
		}
		return pg.Connect(ctx, dsn)
	case "mysql":
		if dsn == "" {
			return nil, fmt.Errorf("dsn required")
		}
		return mysqlkv.Open(ctx, dsn, log)
	}
	return nil, fmt.Errorf("unknown storage %q", backend)
}

type results struct {
	totalOps   uint64
	readOps    uint64
	writeOps   uint64
	errOps     uint64
	latencies  []time.Duration // measured ops only
	startedAt  time.Time
	finishedAt time.Time
}

func runPhase(
	ctx context.Context,
	h *txtrack.History,
	workers int,
	avgRPS int,
	peakRPS int,
	ramp time.Duration,
	dur time.Duration,
	rw int,
	collect bool,
) results {
	ctx, cancel := context.WithTimeout(ctx, dur)
	defer cancel()

	// constant avgRPS when ramp == 0
	lim := rate.NewLimiter(rate.Limit(avgRPS), avgRPS)

	type job struct {
		op opType
	}

	jobs := make(chan job, 1024)

	var (
		res results
		mu  sync.Mutex
	)

	res.startedAt = time.Now()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			for j := range jobs {
				t0 := time.Now()
				err := doOp(ctx, h, j.op, r)
				dt := time.Since(t0)

				atomic.AddUint64(&res.totalOps, 1)
				if j.op == opRead {
					atomic.AddUint64(&res.readOps, 1)
				} else {
					atomic.AddUint64(&res.writeOps, 1)
				}
				if err != nil {
					atomic.AddUint64(&res.errOps, 1)
					continue
				}
				if collect {
					mu.Lock()
					res.latencies = append(res.latencies, dt)
					mu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)

		// rw reads then 1 write
		pattern := make([]opType, 0, rw+1)
		for i := 0; i < rw; i++ {
			pattern = append(pattern, opRead)
		}
		pattern = append(pattern, opWrite)
		idx := 0

		rampStart := time.Now()

		for {
			if err := lim.Wait(ctx); err != nil {
				return
			}

			if ramp > 0 {
				el := time.Since(rampStart)
				if el < ramp {
					cur := float64(avgRPS) + (float64(peakRPS-avgRPS) * (float64(el) / float64(ramp)))
					lim.SetLimit(rate.Limit(cur))
				} else {
					lim.SetLimit(rate.Limit(peakRPS))
				}
			}

			jobs <- job{op: pattern[idx]}
			idx++
			if idx == len(pattern) {
				idx = 0
			}
		}
	}()

	wg.Wait()
	res.finishedAt = time.Now()
	return res
}

// doOp reads one network's list, or saves a pending transfer and confirms it.
func doOp(ctx context.Context, h *txtrack.History, op opType, r *rand.Rand) error {
	chainID := chains[r.Intn(len(chains))]
	switch op {
	case opRead:
		_, err := h.List(ctx, chainID)
		return err
	case opWrite:
		rec := fakeRecord(r, chainID)
		if err := h.Save(ctx, rec); err != nil {
			return err
		}
		_, err := h.UpdateStatus(ctx, chainID, rec.Hash, txtrack.StatusConfirmed, &provider.Receipt{
			Status:      1,
			BlockNumber: (*hexutil.Big)(big.NewInt(int64(r.Intn(30_000_000)))),
			GasUsed:     21000,
		})
		return err
	default:
		return nil
	}
}

func fakeRecord(r *rand.Rand, chainID string) txtrack.Record {
	return txtrack.Record{
		Hash:        fmt.Sprintf("0x%064x", r.Uint64()),
		From:        fmt.Sprintf("0x%040x", r.Uint64()),
		To:          fmt.Sprintf("0x%040x", r.Uint64()),
		Value:       "1",
		Timestamp:   time.Now().UnixMilli(),
		ChainID:     chainID,
		NetworkName: chainID,
		Status:      txtrack.StatusPending,
	}
}

func printReport(res results) {
	d := res.finishedAt.Sub(res.startedAt)
	total := atomic.LoadUint64(&res.totalOps)
	errs := atomic.LoadUint64(&res.errOps)
	reads := atomic.LoadUint64(&res.readOps)
	writes := atomic.LoadUint64(&res.writeOps)

	fmt.Printf("\n== REPORT ==\n")
	fmt.Printf("duration: %s\n", d)
	fmt.Printf("ops: total=%d read=%d write=%d errors=%d\n", total, reads, writes, errs)
	if d > 0 {
		fmt.Printf("throughput: %.2f ops/s\n", float64(total)/d.Seconds())
	}
	if len(res.latencies) == 0 {
		fmt.Println("no latency samples")
		return
	}
	sort.Slice(res.latencies, func(i, j int) bool { return res.latencies[i] < res.latencies[j] })
	p := func(q float64) time.Duration {
		i := int(q * float64(len(res.latencies)-1))
		return res.latencies[i]
	}
	fmt.Printf("latency p50=%s p95=%s p99=%s max=%s\n",
		p(0.50), p(0.95), p(0.99), res.latencies[len(res.latencies)-1],
	)
}
