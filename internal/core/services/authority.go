package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/rpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ControlAuthority tracks exclusive control of a remote controller for one
// identity, along with this client's broadcast registration.
type ControlAuthority struct {
	client   rpc.ControllerClient
	identity domain.Identity
	logger   *slog.Logger

	requireBroadcast bool
	claim            domain.ControlClaim
	registration     *domain.BroadcastRegistration
}

type AuthorityOption func(*ControlAuthority)

// WithoutBroadcast lets TakeControl proceed with no broadcast registration,
// for sessions that have no receiver configured.
func WithoutBroadcast() AuthorityOption {
	return func(a *ControlAuthority) { a.requireBroadcast = false }
}

func WithAuthorityLogger(l *slog.Logger) AuthorityOption {
	return func(a *ControlAuthority) { a.logger = l }
}

func NewControlAuthority(client rpc.ControllerClient, id domain.Identity, opts ...AuthorityOption) *ControlAuthority {
	a := &ControlAuthority{
		client:           client,
		identity:         id,
		requireBroadcast: true,
		claim:            domain.ControlClaim{State: domain.ClaimUnclaimed},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.With("control_authority")
	}
	return a
}

func (a *ControlAuthority) Identity() domain.Identity { return a.identity }

// Claim returns the local belief about control ownership.
func (a *ControlAuthority) Claim() domain.ControlClaim { return a.claim }

// Registration returns the current broadcast registration, if any.
func (a *ControlAuthority) Registration() (domain.BroadcastRegistration, bool) {
	if a.registration == nil {
		return domain.BroadcastRegistration{}, false
	}
	return *a.registration, true
}

// Command sends any controller command by name with an optional payload.
func (a *ControlAuthority) Command(ctx context.Context, name string, msg rpc.Message) (*rpc.Response, error) {
	req, err := rpc.NewRequest(a.identity, msg)
	if err != nil {
		return nil, err
	}
	return a.client.Command(ctx, name, req)
}

func (a *ControlAuthority) plainText(ctx context.Context, name string, msg rpc.Message) (string, error) {
	resp, err := a.Command(ctx, name, msg)
	if err != nil {
		return "", err
	}
	if resp.Data == nil {
		return "", nil
	}
	pt, err := rpc.Unpack[domain.PlainText](resp.Data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return pt.Text, nil
}

// ListChildren asks the controller for its children.
func (a *ControlAuthority) ListChildren(ctx context.Context) (*domain.LocationList, error) {
	resp, err := a.Command(ctx, rpc.CmdLs, nil)
	if err != nil {
		return nil, err
	}
	return rpc.Unpack[domain.LocationList](resp.Data)
}

// RegisterForBroadcast adds address to the controller's broadcast list.
func (a *ControlAuthority) RegisterForBroadcast(ctx context.Context, address string) error {
	text, err := a.plainText(ctx, rpc.CmdAddToBroadcastList, domain.BroadcastRequest{BroadcastReceiverAddress: address})
	if err != nil {
		return err
	}
	a.registration = &domain.BroadcastRegistration{ReceiverAddress: address}
	a.logger.Info("Added to the broadcast list", "address", address, "reply", text)
	return nil
}

// UnregisterFromBroadcast removes address from the controller's broadcast
// list. An unavailable controller is reported as domain.ErrPeerDead and
// the registration is considered gone.
func (a *ControlAuthority) UnregisterFromBroadcast(ctx context.Context, address string) error {
	_, err := a.Command(ctx, rpc.CmdRemoveFromBroadcastList, domain.BroadcastRequest{BroadcastReceiverAddress: address})
	if err != nil {
		if status.Code(err) == codes.Unavailable {
			a.registration = nil
			return fmt.Errorf("%w: %v", domain.ErrPeerDead, err)
		}
		return err
	}
	a.registration = nil
	return nil
}

// TakeControl claims exclusive control. It must follow RegisterForBroadcast.
func (a *ControlAuthority) TakeControl(ctx context.Context) error {
	if a.requireBroadcast && a.registration == nil {
		return domain.ErrNotRegistered
	}
	if _, err := a.plainText(ctx, rpc.CmdTakeControl, nil); err != nil {
		if isDenial(err) {
			return fmt.Errorf("%w: %v", domain.ErrControlDenied, err)
		}
		return err
	}
	a.claim = domain.ControlClaim{State: domain.ClaimHeldBySelf}
	return nil
}

// SurrenderControl gives control back. The request is sent whatever the
// local claim; only a claim held by self is cleared on success.
func (a *ControlAuthority) SurrenderControl(ctx context.Context) error {
	if _, err := a.plainText(ctx, rpc.CmdSurrenderControl, nil); err != nil {
		return err
	}
	if a.claim.State == domain.ClaimHeldBySelf {
		a.claim = domain.ControlClaim{State: domain.ClaimUnclaimed}
	}
	return nil
}

// WhoIsInCharge returns the user name of the current owner, or domain.NoOne.
func (a *ControlAuthority) WhoIsInCharge(ctx context.Context) (string, error) {
	text, err := a.plainText(ctx, rpc.CmdWhoIsInCharge, nil)
	if err != nil {
		return "", err
	}
	if text == "" {
		return domain.NoOne, nil
	}
	return text, nil
}

// RefreshClaim asks who is in charge and updates the local belief to match.
func (a *ControlAuthority) RefreshClaim(ctx context.Context) (domain.ControlClaim, error) {
	owner, err := a.WhoIsInCharge(ctx)
	if err != nil {
		return a.claim, err
	}
	switch owner {
	case a.identity.UserName:
		a.claim = domain.ControlClaim{State: domain.ClaimHeldBySelf}
	case domain.NoOne:
		a.claim = domain.ControlClaim{State: domain.ClaimUnclaimed}
	default:
		a.claim = domain.ControlClaim{State: domain.ClaimHeldByOther, Holder: owner}
	}
	return a.claim, nil
}

func isDenial(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.FailedPrecondition, codes.AlreadyExists, codes.Aborted:
		return true
	}
	return errors.Is(err, domain.ErrControlDenied)
}
