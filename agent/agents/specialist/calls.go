package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/freight-aiflow/agent/contract"
	voicex "github.com/tanpawarit/freight-aiflow/agent/voice"
)

type coldCallingHandler struct {
	tk Toolkit
}

func (h *coldCallingHandler) Capability() contractx.CapabilityKind {
	return contractx.CapabilityColdCalling
}

func (h *coldCallingHandler) Handle(ctx context.Context, raw contractx.Request) (any, error) {
	req, err := requestAs[contractx.ColdCallRequest](raw)
	if err != nil {
		return nil, err
	}

	sess, err := h.tk.Voice.Initiate(req.Target, req.Campaign)
	if err != nil {
		return nil, err
	}
	if err := awaitLine(ctx, h.tk.Voice, sess.ID); err != nil {
		return nil, err
	}

	outcome, err := h.tk.Source.PlaceCall(ctx, req.Target, req.Campaign)
	if err != nil {
		h.abandon(sess.ID)
		return nil, err
	}

	var final voicex.Session
	switch outcome {
	case contractx.OutcomeVoicemail:
		final, err = h.tk.Voice.Complete(sess.ID, contractx.CallVoicemail)
	case contractx.OutcomeBusy:
		final, err = h.tk.Voice.Complete(sess.ID, contractx.CallBusy)
	case contractx.OutcomeAppointment, contractx.OutcomeCallback, contractx.OutcomeNotInterested:
		if _, err = h.tk.Voice.Connect(sess.ID); err == nil {
			final, err = h.tk.Voice.Complete(sess.ID, contractx.CallCompleted)
		}
	default:
		err = fmt.Errorf("%w: unknown call outcome %q", contractx.ErrTaskFailed, outcome)
	}
	if err != nil {
		h.abandon(sess.ID)
		return nil, err
	}

	now := h.tk.Now()
	return contractx.CallResult{
		CallID:    final.ID,
		Target:    final.Target,
		Campaign:  final.Campaign,
		Status:    final.Status,
		Outcome:   outcome,
		Duration:  now.Sub(final.StartedAt),
		Timestamp: now,
	}, nil
}

func (h *coldCallingHandler) abandon(id string) {
	if _, err := h.tk.Voice.Complete(id, contractx.CallAbandoned); err != nil && !errors.Is(err, contractx.ErrSessionNotFound) {
		h.tk.Logger.Warn().Err(err).Str("call_id", id).Msg("abandon call failed")
	}
}

type customerServiceHandler struct {
	tk Toolkit
}

func (h *customerServiceHandler) Capability() contractx.CapabilityKind {
	return contractx.CapabilityCustomerService
}

func (h *customerServiceHandler) Handle(ctx context.Context, raw contractx.Request) (any, error) {
	req, err := requestAs[contractx.CustomerServiceRequest](raw)
	if err != nil {
		return nil, err
	}
	caller := strings.TrimSpace(req.Caller)
	if caller == "" {
		caller = "inbound:" + strings.TrimSpace(req.SessionID)
	}

	sess, err := h.tk.Voice.Accept(caller)
	if err != nil {
		return nil, err
	}
	if err := awaitLine(ctx, h.tk.Voice, sess.ID); err != nil {
		return nil, err
	}
	if _, err := h.tk.Voice.Connect(sess.ID); err != nil {
		return nil, err
	}

	resolved, err := h.tk.Source.ResolveInquiry(ctx, req.SessionID)
	if err != nil {
		if _, cerr := h.tk.Voice.Complete(sess.ID, contractx.CallAbandoned); cerr != nil {
			h.tk.Logger.Warn().Err(cerr).Str("call_id", sess.ID).Msg("abandon call failed")
		}
		return nil, err
	}

	final, err := h.tk.Voice.Complete(sess.ID, contractx.CallCompleted)
	if err != nil {
		return nil, err
	}

	resolution := contractx.ServiceEscalated
	if resolved {
		resolution = contractx.ServiceResolved
	}
	return contractx.ServiceResult{
		SessionID:  req.SessionID,
		CallID:     final.ID,
		Resolution: resolution,
		Duration:   h.tk.Now().Sub(final.StartedAt),
	}, nil
}

// awaitLine waits for the session to get a line. On failure the session is abandoned
// so its queue slot is released.
func awaitLine(ctx context.Context, mgr *voicex.Manager, id string) error {
	sess, err := mgr.AwaitActive(ctx, id)
	if err != nil {
		if _, cerr := mgr.Complete(id, contractx.CallAbandoned); cerr != nil && !errors.Is(cerr, contractx.ErrSessionNotFound) {
			return errors.Join(err, cerr)
		}
		return err
	}
	if sess.Status.Terminal() {
		return fmt.Errorf("%w: call %s ended as %s before connecting", contractx.ErrTaskFailed, id, sess.Status)
	}
	return nil
}
