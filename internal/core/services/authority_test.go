package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"drunc.client/internal/core/domain"
	"drunc.client/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeController struct {
	rpc.UnimplementedControllerServer

	mu        sync.Mutex
	owner     string
	calls     []string
	listeners []string

	lsErr     error
	addErr    error
	removeErr error
	whoErr    error
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

func reply(req *rpc.Request, text string) (*rpc.Response, error) {
	return rpc.NewResponse(req.Token, domain.PlainText{Text: text})
}

func (f *fakeController) Ls(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdLs)
	if f.lsErr != nil {
		return nil, f.lsErr
	}
	return rpc.NewResponse(req.Token, domain.LocationList{Locations: []string{"child1", "child2"}})
}

func (f *fakeController) AddToBroadcastList(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdAddToBroadcastList)
	if f.addErr != nil {
		return nil, f.addErr
	}
	br, err := rpc.Unpack[domain.BroadcastRequest](req.Data)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	f.mu.Lock()
	f.listeners = append(f.listeners, br.BroadcastReceiverAddress)
	f.mu.Unlock()
	return reply(req, "added "+br.BroadcastReceiverAddress)
}

func (f *fakeController) RemoveFromBroadcastList(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdRemoveFromBroadcastList)
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	br, err := rpc.Unpack[domain.BroadcastRequest](req.Data)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	f.mu.Lock()
	f.listeners = slices.DeleteFunc(f.listeners, func(a string) bool { return a == br.BroadcastReceiverAddress })
	f.mu.Unlock()
	return reply(req, "removed")
}

func (f *fakeController) TakeControl(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdTakeControl)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owner != "" && f.owner != req.Token.UserName {
		return nil, status.Errorf(codes.PermissionDenied, "%s is in control", f.owner)
	}
	f.owner = req.Token.UserName
	return reply(req, "you are in control")
}

func (f *fakeController) SurrenderControl(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdSurrenderControl)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owner == req.Token.UserName {
		f.owner = ""
	}
	return reply(req, "surrendered")
}

func (f *fakeController) WhoIsInCharge(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	f.record(rpc.CmdWhoIsInCharge)
	if f.whoErr != nil {
		return nil, f.whoErr
	}
	f.mu.Lock()
	owner := f.owner
	f.mu.Unlock()
	if owner == "" {
		owner = domain.NoOne
	}
	return reply(req, owner)
}

type fakeReceiver struct {
	mu    sync.Mutex
	stops int
}

func (r *fakeReceiver) Address() string { return "[::]:5001" }

func (r *fakeReceiver) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return nil
}

func (r *fakeReceiver) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func newTestSession(t *testing.T, ctl *fakeController, user string) (*ControllerSession, *fakeReceiver) {
	t.Helper()
	conn := dialBufconn(t, func(s *grpc.Server) { rpc.RegisterControllerServer(s, ctl) })
	authority := NewControlAuthority(rpc.NewControllerClient(conn), domain.NewIdentity(user), WithAuthorityLogger(quietLogger()))
	receiver := &fakeReceiver{}
	return NewControllerSession(authority, receiver, quietLogger()), receiver
}

func TestTakeControlThenWhoIsInCharge(t *testing.T) {
	ctl := &fakeController{}
	session, _ := newTestSession(t, ctl, "alice")
	ctx := context.Background()

	if err := session.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := session.TakeControl(ctx); err != nil {
		t.Fatalf("TakeControl failed: %v", err)
	}

	a := session.Authority()
	if a.Claim().State != domain.ClaimHeldBySelf {
		t.Errorf("Expected claim held by self, got %s", a.Claim())
	}
	owner, err := a.WhoIsInCharge(ctx)
	if err != nil {
		t.Fatalf("WhoIsInCharge failed: %v", err)
	}
	if owner != "alice" {
		t.Errorf("Expected alice in charge, got %q", owner)
	}
	if a.Claim().State != domain.ClaimHeldBySelf {
		t.Errorf("WhoIsInCharge must not change the claim, got %s", a.Claim())
	}
}

func TestTakeControlRequiresRegistration(t *testing.T) {
	ctl := &fakeController{}
	session, _ := newTestSession(t, ctl, "alice")

	err := session.Authority().TakeControl(context.Background())
	if !errors.Is(err, domain.ErrNotRegistered) {
		t.Fatalf("Expected ErrNotRegistered, got %v", err)
	}
	if slices.Contains(ctl.Calls(), rpc.CmdTakeControl) {
		t.Error("take_control must not be sent before registration")
	}
}

func TestTakeControlDenied(t *testing.T) {
	ctl := &fakeController{owner: "bob"}
	session, _ := newTestSession(t, ctl, "alice")
	ctx := context.Background()

	if err := session.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	err := session.TakeControl(ctx)
	if !errors.Is(err, domain.ErrControlDenied) {
		t.Fatalf("Expected ErrControlDenied, got %v", err)
	}
	if session.Authority().Claim().State != domain.ClaimUnclaimed {
		t.Errorf("Expected claim unchanged, got %s", session.Authority().Claim())
	}
}

func TestTeardownSurrendersOwnControl(t *testing.T) {
	ctl := &fakeController{}
	session, receiver := newTestSession(t, ctl, "alice")
	ctx := context.Background()

	if err := session.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := session.TakeControl(ctx); err != nil {
		t.Fatalf("TakeControl failed: %v", err)
	}
	session.Close(ctx)
	session.Close(ctx)

	want := []string{
		rpc.CmdLs,
		rpc.CmdAddToBroadcastList,
		rpc.CmdTakeControl,
		rpc.CmdRemoveFromBroadcastList,
		rpc.CmdWhoIsInCharge,
		rpc.CmdSurrenderControl,
	}
	if got := ctl.Calls(); !slices.Equal(got, want) {
		t.Errorf("Expected calls %v, got %v", want, got)
	}
	if receiver.Stops() != 1 {
		t.Errorf("Expected receiver stopped once, got %d", receiver.Stops())
	}
	if len(ctl.listeners) != 0 {
		t.Errorf("Expected no stale broadcast registration, got %v", ctl.listeners)
	}
	if session.Authority().Claim().State != domain.ClaimUnclaimed {
		t.Errorf("Expected claim released, got %s", session.Authority().Claim())
	}
}

func TestTeardownDeadPeer(t *testing.T) {
	ctl := &fakeController{}
	session, receiver := newTestSession(t, ctl, "alice")
	ctx := context.Background()

	if err := session.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := session.TakeControl(ctx); err != nil {
		t.Fatalf("TakeControl failed: %v", err)
	}

	ctl.mu.Lock()
	ctl.removeErr = status.Error(codes.Unavailable, "connection refused")
	ctl.mu.Unlock()

	session.Close(ctx)

	calls := ctl.Calls()
	if calls[len(calls)-1] != rpc.CmdRemoveFromBroadcastList {
		t.Errorf("Expected no controller call after a dead peer, got %v", calls)
	}
	if slices.Contains(calls, rpc.CmdWhoIsInCharge) || slices.Contains(calls, rpc.CmdSurrenderControl) {
		t.Errorf("who_is_in_charge and surrender_control must be skipped, got %v", calls)
	}
	if receiver.Stops() != 1 {
		t.Errorf("Expected receiver stopped once, got %d", receiver.Stops())
	}
}

func TestTeardownWhoFailsAssumesNoOne(t *testing.T) {
	ctl := &fakeController{}
	session, receiver := newTestSession(t, ctl, "alice")
	ctx := context.Background()

	if err := session.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := session.TakeControl(ctx); err != nil {
		t.Fatalf("TakeControl failed: %v", err)
	}

	ctl.mu.Lock()
	ctl.whoErr = status.Error(codes.Internal, "boom")
	ctl.mu.Unlock()

	session.Close(ctx)

	if slices.Contains(ctl.Calls(), rpc.CmdSurrenderControl) {
		t.Error("Expected no surrender when the owner is unknown")
	}
	if receiver.Stops() != 1 {
		t.Errorf("Expected receiver stopped once, got %d", receiver.Stops())
	}
}

func TestOpenFailureStopsReceiver(t *testing.T) {
	tests := []struct {
		name string
		ctl  *fakeController
	}{
		{"ls fails", &fakeController{lsErr: status.Error(codes.Internal, "no children")}},
		{"registration fails", &fakeController{addErr: status.Error(codes.Internal, "full")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, receiver := newTestSession(t, tt.ctl, "alice")
			if err := session.Open(context.Background()); err == nil {
				t.Fatal("Expected Open to fail")
			}
			if receiver.Stops() != 1 {
				t.Errorf("Expected receiver stopped once, got %d", receiver.Stops())
			}
			if _, ok := session.Authority().Registration(); ok {
				t.Error("Expected no registration after a failed start")
			}
			session.Close(context.Background())
			if receiver.Stops() != 1 {
				t.Errorf("Expected receiver still stopped once after Close, got %d", receiver.Stops())
			}
		})
	}
}

func TestSurrenderWithoutClaimStillSendsRequest(t *testing.T) {
	ctl := &fakeController{owner: "bob"}
	session, _ := newTestSession(t, ctl, "alice")

	a := session.Authority()
	if err := a.SurrenderControl(context.Background()); err != nil {
		t.Fatalf("SurrenderControl failed: %v", err)
	}
	if !slices.Contains(ctl.Calls(), rpc.CmdSurrenderControl) {
		t.Error("Expected surrender_control to be sent")
	}
	if a.Claim().State != domain.ClaimUnclaimed {
		t.Errorf("Expected claim unchanged, got %s", a.Claim())
	}
	if ctl.owner != "bob" {
		t.Errorf("Expected bob to keep control, got %q", ctl.owner)
	}
}

func TestRefreshClaim(t *testing.T) {
	tests := []struct {
		name   string
		owner  string
		want   domain.ClaimState
		holder string
	}{
		{name: "nobody", owner: "", want: domain.ClaimUnclaimed},
		{name: "self", owner: "alice", want: domain.ClaimHeldBySelf},
		{name: "other", owner: "bob", want: domain.ClaimHeldByOther, holder: "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{owner: tt.owner}
			session, _ := newTestSession(t, ctl, "alice")
			a := session.Authority()

			claim, err := a.RefreshClaim(context.Background())
			if err != nil {
				t.Fatalf("RefreshClaim failed: %v", err)
			}
			if claim.State != tt.want || claim.Holder != tt.holder {
				t.Errorf("Expected %s(%s), got %s", tt.want, tt.holder, claim)
			}
			if a.Claim() != claim {
				t.Errorf("Expected local claim %s, got %s", claim, a.Claim())
			}
		})
	}
}

func TestRefreshClaimKeepsBeliefOnError(t *testing.T) {
	ctl := &fakeController{whoErr: status.Error(codes.Unavailable, "gone")}
	session, _ := newTestSession(t, ctl, "alice")
	a := session.Authority()

	if _, err := a.RefreshClaim(context.Background()); err == nil {
		t.Fatal("Expected an error from an unreachable controller")
	}
	if a.Claim().State != domain.ClaimUnclaimed {
		t.Errorf("Expected claim unchanged, got %s", a.Claim())
	}
}

func TestTakeControlWithoutBroadcast(t *testing.T) {
	ctl := &fakeController{}
	conn := dialBufconn(t, func(s *grpc.Server) { rpc.RegisterControllerServer(s, ctl) })
	a := NewControlAuthority(rpc.NewControllerClient(conn), domain.NewIdentity("alice"),
		WithoutBroadcast(), WithAuthorityLogger(quietLogger()))
	session := NewControllerSession(a, nil, quietLogger())
	ctx := context.Background()

	if err := session.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := session.TakeControl(ctx); err != nil {
		t.Fatalf("TakeControl failed: %v", err)
	}
	session.Close(ctx)

	want := []string{rpc.CmdLs, rpc.CmdTakeControl, rpc.CmdWhoIsInCharge, rpc.CmdSurrenderControl}
	if got := ctl.Calls(); !slices.Equal(got, want) {
		t.Errorf("Expected calls %v, got %v", want, got)
	}
}
