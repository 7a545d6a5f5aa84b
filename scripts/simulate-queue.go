package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-gate/pkg/grpc"
)

var (
	gateURL         = flag.String("gate", "http://localhost:8080/", "Gated URL visitors request")
	cookieName      = flag.String("cookie", "global-queue", "Ticket cookie name of the queue")
	numUsers        = flag.Int("users", 300, "Number of simulated visitors")
	joinRate        = flag.Duration("join-rate", 10*time.Millisecond, "Time between visitor arrivals (0 for maximum speed)")
	pollInterval    = flag.Duration("poll", 2*time.Second, "How often a waiting visitor reloads the page")
	exitRate        = flag.Float64("exit-rate", 0.01, "Probability a waiting visitor gives up on each reload (0.0-1.0)")
	grpcAddr        = flag.String("grpc-addr", "", "Gate gRPC address; enables periodic releases when set")
	queueName       = flag.String("queue", "", "Queue to release through gRPC")
	releaseAmount   = flag.Int64("release", 20, "Visitors released per interval")
	releaseInterval = flag.Duration("release-interval", 5*time.Second, "Interval between releases")
	duration        = flag.Duration("duration", 2*time.Minute, "How long to run the simulation")
)

type outcome int

const (
	outcomeAdmitted outcome = iota
	outcomeGaveUp
	outcomeTimedOut
	outcomeFailed
)

type tally struct {
	mu        sync.Mutex
	waiting   int
	admitted  int
	gaveUp    int
	failed    int
	positions map[int64]string
	dupes     int
}

func (t *tally) position(pos int64, visitor string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if owner, ok := t.positions[pos]; ok && owner != visitor {
		t.dupes++
		return
	}
	t.positions[pos] = visitor
}

func (t *tally) finish(o outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waiting--
	switch o {
	case outcomeAdmitted:
		t.admitted++
	case outcomeGaveUp:
		t.gaveUp++
	case outcomeFailed:
		t.failed++
	}
}

func (t *tally) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("Waiting: %s | Admitted: %s | Gave up: %s | Failed: %s | Tickets: %s",
		humanize.Comma(int64(t.waiting)),
		humanize.Comma(int64(t.admitted)),
		humanize.Comma(int64(t.gaveUp)),
		humanize.Comma(int64(t.failed)),
		humanize.Comma(int64(len(t.positions))),
	)
}

func main() {
	flag.Parse()

	if *grpcAddr != "" && *queueName == "" {
		fmt.Println("Error: --queue is required with --grpc-addr")
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	t := &tally{positions: make(map[int64]string)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	fmt.Printf("🚀 Sending %d visitors to %s\n", *numUsers, *gateURL)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	if *grpcAddr != "" {
		g.Go(func() error {
			return releaseLoop(gctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), t)
			}
		}
	})

	var visitors sync.WaitGroup
	for i := 0; i < *numUsers; i++ {
		if *joinRate > 0 {
			select {
			case <-gctx.Done():
			case <-time.After(*joinRate):
			}
		}
		if gctx.Err() != nil {
			break
		}

		t.mu.Lock()
		t.waiting++
		t.mu.Unlock()

		visitors.Go(func() {
			t.finish(visit(gctx, client, t))
		})
	}

	visitors.Wait()
	cancel()
	if err := g.Wait(); err != nil {
		fmt.Printf("❌ Simulation stopped: %v\n", err)
	}

	fmt.Printf("\n⏱️  Finished in %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("📊 %s\n", t)
	if t.dupes > 0 {
		fmt.Printf("❌ %d tickets shared a position with another visitor\n", t.dupes)
		os.Exit(1)
	}
	fmt.Println("✅ Every ticket holds a distinct position")
}

// visit reloads the gated page until the visitor is admitted, gives up or runs out of time.
func visit(ctx context.Context, client *http.Client, t *tally) outcome {
	visitor := uuid.NewString()
	var token string

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, *gateURL, nil)
		if err != nil {
			return outcomeFailed
		}
		req.Header.Set("User-Agent", "waitroom-simulator/"+visitor[:8])
		if token != "" {
			req.AddCookie(&http.Cookie{Name: *cookieName, Value: token})
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return outcomeTimedOut
			}
			return outcomeFailed
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		for _, c := range resp.Cookies() {
			if c.Name != *cookieName {
				continue
			}
			token = c.Value
			if pos, ok := ticketPosition(token); ok {
				t.position(pos, visitor)
			}
		}

		// The waiting page is the only response carrying a Refresh header.
		if resp.Header.Get("Refresh") == "" {
			if resp.StatusCode >= http.StatusInternalServerError {
				return outcomeFailed
			}
			return outcomeAdmitted
		}

		if rand.Float64() < *exitRate {
			return outcomeGaveUp
		}

		select {
		case <-ctx.Done():
			return outcomeTimedOut
		case <-time.After(*pollInterval):
		}
	}
}

// ticketPosition reads the position claim without verifying the signature.
func ticketPosition(token string) (int64, bool) {
	var claims models.TicketClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return 0, false
	}
	return claims.Position, true
}

func releaseLoop(ctx context.Context) error {
	cli, cleanup, err := pkgGrpc.NewQueueAdminClient(*grpcAddr)
	if err != nil {
		return err
	}
	defer cleanup()

	ticker := time.NewTicker(*releaseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			out, err := cli.ReleaseVisitors(ctx, *queueName, *releaseAmount, "simulator")
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Printf("❌ Release failed: %v\n", err)
				continue
			}
			fmt.Printf("🎟️  Released %d, cursor now %v\n", *releaseAmount, out.GetFields()["cursor"].GetNumberValue())
		}
	}
}
