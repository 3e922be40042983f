package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"drunc.client/internal/core/domain"
	"drunc.client/internal/core/logger"
	"drunc.client/internal/core/ports"
)

// ControllerSession drives the startup and teardown of one operator session
// against a controller. The broadcast receiver is optional.
type ControllerSession struct {
	authority *ControlAuthority
	receiver  ports.BroadcastReceiver
	logger    *slog.Logger

	stopOnce  sync.Once
	closeOnce sync.Once
}

func NewControllerSession(authority *ControlAuthority, receiver ports.BroadcastReceiver, l *slog.Logger) *ControllerSession {
	if l == nil {
		l = logger.With("controller_session")
	}
	return &ControllerSession{
		authority: authority,
		receiver:  receiver,
		logger:    l,
	}
}

func (s *ControllerSession) Authority() *ControlAuthority { return s.authority }

// Open lists the controller's children and registers the receiver for
// broadcasts. On failure the receiver is stopped before returning.
func (s *ControllerSession) Open(ctx context.Context) error {
	s.logger.Info("Attempting to list this controller's children")
	ll, err := s.authority.ListChildren(ctx)
	if err != nil {
		s.logger.Error("Could not list this controller's contents, exiting", "error", err)
		s.stopReceiver()
		return err
	}
	s.logger.Info("Controller children", "locations", ll.Locations)

	if s.receiver == nil {
		return nil
	}

	s.logger.Info("Adding this shell to the broadcast list")
	if err := s.authority.RegisterForBroadcast(ctx, s.receiver.Address()); err != nil {
		s.logger.Error("Could not add this shell to the broadcast list, exiting", "error", err)
		s.stopReceiver()
		return err
	}
	return nil
}

// TakeControl claims control, logging the outcome.
func (s *ControllerSession) TakeControl(ctx context.Context) error {
	id := s.authority.Identity()
	s.logger.Info("Taking control of the controller", "user", id.UserName)
	if err := s.authority.TakeControl(ctx); err != nil {
		s.logger.Error("You are NOT in control", "error", err)
		return err
	}
	s.logger.Info("You are in control")
	return nil
}

// Close runs the teardown protocol. Only the first call has any effect.
func (s *ControllerSession) Close(ctx context.Context) {
	s.closeOnce.Do(func() { s.teardown(ctx) })
}

func (s *ControllerSession) teardown(ctx context.Context) {
	defer s.stopReceiver()

	if reg, ok := s.authority.Registration(); ok {
		s.logger.Debug("Removing this shell from the broadcast list")
		err := s.authority.UnregisterFromBroadcast(ctx, reg.ReceiverAddress)
		switch {
		case errors.Is(err, domain.ErrPeerDead):
			s.logger.Error("Controller is dead, exiting", "error", err)
			return
		case err != nil:
			s.logger.Error("Could not remove this shell from the broadcast list", "error", err)
		default:
			s.logger.Debug("Removed this shell from the broadcast list")
		}
	}

	owner, err := s.authority.WhoIsInCharge(ctx)
	if err != nil {
		s.logger.Warn("Could not understand who is in charge from the controller", "error", err)
		owner = domain.NoOne
	}

	if owner == s.authority.Identity().UserName {
		s.logger.Info("You are in control, surrendering control")
		if err := s.authority.SurrenderControl(ctx); err != nil {
			s.logger.Error("Could not surrender control", "error", err)
			return
		}
		s.logger.Info("Control surrendered")
	}
}

func (s *ControllerSession) stopReceiver() {
	if s.receiver == nil {
		return
	}
	s.stopOnce.Do(func() {
		if err := s.receiver.Stop(); err != nil {
			s.logger.Error("Could not stop the broadcast receiver", "error", err)
		}
	})
}
