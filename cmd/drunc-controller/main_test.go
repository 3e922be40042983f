package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"drunc.client/internal/core/domain"
	"drunc.client/internal/rpc"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeController struct {
	rpc.UnimplementedControllerServer

	mu    sync.Mutex
	owner string
	deny  bool
	calls []string
}

func (f *fakeController) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeController) Ls(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdLs)
	return rpc.NewResponse(req.Token, domain.LocationList{Locations: []string{"child"}})
}

func (f *fakeController) TakeControl(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdTakeControl)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny {
		return nil, status.Error(codes.PermissionDenied, "bob is in control")
	}
	f.owner = req.Token.UserName
	return rpc.NewResponse(req.Token, domain.PlainText{Text: "taken"})
}

func (f *fakeController) WhoIsInCharge(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdWhoIsInCharge)
	f.mu.Lock()
	defer f.mu.Unlock()
	return rpc.NewResponse(req.Token, domain.PlainText{Text: f.owner})
}

func (f *fakeController) SurrenderControl(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdSurrenderControl)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner = ""
	return rpc.NewResponse(req.Token, domain.PlainText{Text: "surrendered"})
}

func newTestShell(t *testing.T, ctl *fakeController) (*shell, string) {
	t.Helper()
	t.Setenv("DRUNC_USER", "alice")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("ENABLE_TRACING", "false")

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterControllerServer(s, ctl)
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conf := filepath.Join(t.TempDir(), "controller.json")
	if err := os.WriteFile(conf, []byte(`{"address": "passthrough:///bufnet"}`), 0o644); err != nil {
		t.Fatalf("Failed to write conf: %v", err)
	}

	sh := &shell{dialOpts: []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}}
	return sh, conf
}

func TestRunTearsDownAfterCommand(t *testing.T) {
	ctl := &fakeController{}
	sh, conf := newTestShell(t, ctl)

	if code := run([]string{"--conf", conf, "who-is-in-charge"}, sh, nil); code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	want := []string{rpc.CmdLs, rpc.CmdTakeControl, rpc.CmdWhoIsInCharge, rpc.CmdWhoIsInCharge, rpc.CmdSurrenderControl}
	if got := ctl.Calls(); !slices.Equal(got, want) {
		t.Errorf("Expected calls %v, got %v", want, got)
	}
}

func TestRunFailsWhenControlIsDenied(t *testing.T) {
	ctl := &fakeController{deny: true, owner: "bob"}
	sh, conf := newTestShell(t, ctl)

	if code := run([]string{"--conf", conf, "ls"}, sh, nil); code != 1 {
		t.Fatalf("Expected exit code 1, got %d", code)
	}
	calls := ctl.Calls()
	if slices.Contains(calls, rpc.CmdSurrenderControl) {
		t.Errorf("Expected no surrender of someone else's control, got %v", calls)
	}
	if !slices.Contains(calls, rpc.CmdWhoIsInCharge) {
		t.Errorf("Expected teardown to run after the failure, got %v", calls)
	}
}

func TestRunJustWatchSkipsTakeControl(t *testing.T) {
	ctl := &fakeController{deny: true, owner: "bob"}
	sh, conf := newTestShell(t, ctl)

	if code := run([]string{"--conf", conf, "--just-watch", "ls"}, sh, nil); code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	if slices.Contains(ctl.Calls(), rpc.CmdTakeControl) {
		t.Errorf("Expected no take_control, got %v", ctl.Calls())
	}
}

func TestRunTearsDownOnPanic(t *testing.T) {
	ctl := &fakeController{}
	sh, conf := newTestShell(t, ctl)

	boom := &cobra.Command{
		Use: "boom",
		RunE: func(*cobra.Command, []string) error {
			panic("boom")
		},
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Expected the panic to propagate")
			}
		}()
		run([]string{"--conf", conf, "boom"}, sh, []*cobra.Command{boom})
	}()

	calls := ctl.Calls()
	if len(calls) == 0 || calls[len(calls)-1] != rpc.CmdSurrenderControl {
		t.Errorf("Expected teardown to surrender control after the panic, got %v", calls)
	}
}
