// Package fixgateway wires the fixsession engine to a concrete wire
// transport, persistence and messaging stack (see the application,
// domain and infrastructure subpackages). This file turns the
// configured counterparty list into registered sessions and, for the
// initiator side, the dial targets cmd/fixsession connects out to.
package fixgateway

import (
	"context"
	"fmt"

	"github.com/wyfcoding/fixsession/internal/fixgateway/application"
	"github.com/wyfcoding/fixsession/internal/fixsession"
	"github.com/wyfcoding/fixsession/pkg/config"
)

const defaultBeginString = "FIX.4.2"

// InitiatorTarget pairs a registered initiator session with the address
// its Dialer should connect to.
type InitiatorTarget struct {
	Session *fixsession.Session
	Address string
}

// RegisterSessionsFromConfig builds a fixsession.SessionID/Settings pair
// for every counterparty in cfg.Sessions and registers it with svc,
// returning the acceptor-side sessions and the initiator dial targets
// separately so main can start the right transport loop for each.
func RegisterSessionsFromConfig(ctx context.Context, svc *application.FixApplicationService, cfg []config.FixSessionConfig) ([]*fixsession.Session, []InitiatorTarget, error) {
	var acceptors []*fixsession.Session
	var initiators []InitiatorTarget

	for _, sc := range cfg {
		id := fixsession.SessionID{
			BeginString:  orDefault(sc.BeginString, defaultBeginString),
			SenderCompID: sc.SenderCompID,
			TargetCompID: sc.TargetCompID,
			SenderSubID:  sc.SenderSubID,
			TargetSubID:  sc.TargetSubID,
			Qualifier:    sc.Qualifier,
		}

		settings := fixsession.DefaultSettings()
		settings.Initiator = sc.Initiator
		settings.ResetOnLogon = sc.ResetOnLogon
		if sc.HeartBtInt > 0 {
			settings.HeartBtInt = sc.HeartBtInt
		}

		session, err := svc.RegisterSession(ctx, id, settings)
		if err != nil {
			return nil, nil, fmt.Errorf("register session %s: %w", id.String(), err)
		}

		if sc.Initiator {
			if sc.TargetAddress == "" {
				return nil, nil, fmt.Errorf("session %s is an initiator but has no target_address", id.String())
			}
			initiators = append(initiators, InitiatorTarget{Session: session, Address: sc.TargetAddress})
		} else {
			acceptors = append(acceptors, session)
		}
	}

	return acceptors, initiators, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
