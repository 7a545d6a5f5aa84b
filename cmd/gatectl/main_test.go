package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	grpcSvc "github.com/vogiaan1904/ticketbottle-gate/internal/delivery/grpc"
	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/internal/repository/memory"
	repo "github.com/vogiaan1904/ticketbottle-gate/internal/repository/redis"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	"github.com/vogiaan1904/ticketbottle-gate/internal/ticket"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-gate/pkg/grpc"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

type fakeAdmin struct {
	service.AdminService
	released []service.ReleaseInput
}

func (a *fakeAdmin) Stats(ctx context.Context, queue string) (*models.QueueStats, error) {
	return &models.QueueStats{QueueName: queue, Cursor: 2, Length: 9, VisitorsWaiting: 7}, nil
}

func (a *fakeAdmin) Release(ctx context.Context, in service.ReleaseInput) (*service.ReleaseOutput, error) {
	a.released = append(a.released, in)
	return &service.ReleaseOutput{QueueName: in.QueueName, Amount: in.Amount, Cursor: 2 + in.Amount, ReleasedAt: time.Now()}, nil
}

func testDeps(t *testing.T, r repo.ConfigRepository, admin service.AdminService) deps {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	grpcSvc.RegisterQueueAdminServer(srv, grpcSvc.NewGrpcService(admin, logger.InitializeTestZapLogger()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	return deps{
		openConfig: func(context.Context) (repo.ConfigRepository, func(), error) {
			return r, func() {}, nil
		},
		dialAdmin: func(string) (*pkgGrpc.QueueAdminClient, func(), error) {
			conn, err := grpc.NewClient("passthrough:///bufnet",
				grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
					return lis.DialContext(ctx)
				}),
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			)
			if err != nil {
				return nil, nil, err
			}
			return pkgGrpc.NewQueueAdminClientFromConn(conn), func() { conn.Close() }, nil
		},
	}
}

func run(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand(d)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigSeedAndShow(t *testing.T) {
	r := memory.NewConfigRepository()
	d := testDeps(t, r, &fakeAdmin{})

	path := filepath.Join(t.TempDir(), "gate.yaml")
	doc := `
global:
  active: true
  adminPassword: hunter2
queues:
  - queueName: shop
    cookieName: shop-queue
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, d, "config", "seed", path)
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}
	if !strings.Contains(out, "seeded global=true queues=1") {
		t.Fatalf("seed output = %q", out)
	}

	out, err = run(t, d, "config", "show")
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	if !strings.Contains(out, "adminPassword: hunter2") || !strings.Contains(out, "adminPath: /_queueAdmin") {
		t.Fatalf("show output = %q", out)
	}

	out, err = run(t, d, "config", "show", "--queue", "shop")
	if err != nil {
		t.Fatalf("show queue error = %v", err)
	}
	if !strings.Contains(out, "cookieName: shop-queue") {
		t.Fatalf("show queue output = %q", out)
	}

	if _, err := run(t, d, "config", "show", "--queue", "missing"); err == nil {
		t.Fatal("show of a missing queue should fail")
	}
}

func TestStatsAndRelease(t *testing.T) {
	admin := &fakeAdmin{}
	d := testDeps(t, memory.NewConfigRepository(), admin)

	out, err := run(t, d, "stats", "shop")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if !strings.Contains(out, `"visitors_waiting": 7`) {
		t.Fatalf("stats output = %q", out)
	}

	out, err = run(t, d, "release", "shop", "-n", "5", "--by", "ops")
	if err != nil {
		t.Fatalf("release error = %v", err)
	}
	if !strings.Contains(out, `"cursor": 7`) {
		t.Fatalf("release output = %q", out)
	}
	if len(admin.released) != 1 || admin.released[0].Amount != 5 || admin.released[0].RequestedBy != "ops" {
		t.Fatalf("released = %+v", admin.released)
	}

	if _, err := run(t, d, "release", "shop", "-n", "0"); err == nil {
		t.Fatal("release of zero visitors should fail")
	}
	if len(admin.released) != 1 {
		t.Fatalf("invalid release reached the server: %+v", admin.released)
	}
}

func TestKeysGenerate(t *testing.T) {
	dir := t.TempDir()
	priv := filepath.Join(dir, "t.key")
	pub := filepath.Join(dir, "t.pub")

	if _, err := run(t, deps{}, "keys", "generate", "--bits", "1024", "--private-out", priv, "--public-out", pub); err != nil {
		t.Fatal(err)
	}

	privPEM, err := os.ReadFile(priv)
	if err != nil {
		t.Fatal(err)
	}
	pubPEM, err := os.ReadFile(pub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ticket.ParsePrivateKey(privPEM); err != nil {
		t.Fatalf("private key unreadable: %v", err)
	}
	if _, err := ticket.ParsePublicKey(pubPEM); err != nil {
		t.Fatalf("public key unreadable: %v", err)
	}
}
