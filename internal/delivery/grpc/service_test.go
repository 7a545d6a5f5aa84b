package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vogiaan1904/ticketbottle-gate/internal/models"
	"github.com/vogiaan1904/ticketbottle-gate/internal/service"
	pkgGrpc "github.com/vogiaan1904/ticketbottle-gate/pkg/grpc"
	"github.com/vogiaan1904/ticketbottle-gate/pkg/logger"
)

type fakeAdmin struct {
	service.AdminService
	released []service.ReleaseInput
}

func (a *fakeAdmin) Stats(ctx context.Context, queue string) (*models.QueueStats, error) {
	if queue != "shop" {
		return nil, service.ErrConfigNotFound
	}
	return &models.QueueStats{QueueName: "shop", Cursor: 4, Length: 10, VisitorsWaiting: 6}, nil
}

func (a *fakeAdmin) Release(ctx context.Context, in service.ReleaseInput) (*service.ReleaseOutput, error) {
	if in.QueueName != "shop" {
		return nil, service.ErrConfigNotFound
	}
	a.released = append(a.released, in)
	return &service.ReleaseOutput{QueueName: in.QueueName, Amount: in.Amount, Cursor: 4 + in.Amount, ReleasedAt: time.Now()}, nil
}

func newTestClient(t *testing.T, admin service.AdminService) *pkgGrpc.QueueAdminClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterQueueAdminServer(srv, NewGrpcService(admin, logger.InitializeTestZapLogger()))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	return pkgGrpc.NewQueueAdminClientFromConn(conn)
}

func TestGetQueueStats(t *testing.T) {
	ctx := context.Background()
	cli := newTestClient(t, &fakeAdmin{})

	out, err := cli.GetQueueStats(ctx, "shop")
	if err != nil {
		t.Fatal(err)
	}
	f := out.GetFields()
	if f["cursor"].GetNumberValue() != 4 || f["visitors_waiting"].GetNumberValue() != 6 {
		t.Fatalf("stats = %v", out)
	}

	tests := []struct {
		queue string
		want  codes.Code
	}{
		{"", codes.InvalidArgument},
		{"nope", codes.NotFound},
	}
	for _, tt := range tests {
		_, err := cli.GetQueueStats(ctx, tt.queue)
		if got := status.Code(err); got != tt.want {
			t.Errorf("GetQueueStats(%q) code = %v, want %v", tt.queue, got, tt.want)
		}
	}
}

func TestReleaseVisitors(t *testing.T) {
	ctx := context.Background()
	admin := &fakeAdmin{}
	cli := newTestClient(t, admin)

	out, err := cli.ReleaseVisitors(ctx, "shop", 3, "ops")
	if err != nil {
		t.Fatal(err)
	}
	if out.GetFields()["cursor"].GetNumberValue() != 7 {
		t.Fatalf("release = %v", out)
	}
	if len(admin.released) != 1 || admin.released[0].Source != "grpc" || admin.released[0].RequestedBy != "ops" {
		t.Fatalf("release input = %+v", admin.released)
	}

	for _, amt := range []int64{0, -2} {
		if _, err := cli.ReleaseVisitors(ctx, "shop", amt, "ops"); status.Code(err) != codes.InvalidArgument {
			t.Errorf("ReleaseVisitors(%d) err = %v, want InvalidArgument", amt, err)
		}
	}
	if _, err := cli.ReleaseVisitors(ctx, "nope", 1, "ops"); status.Code(err) != codes.NotFound {
		t.Errorf("unknown queue err = %v, want NotFound", err)
	}
}
