// Package command intercepts operator control messages before they
// reach the assistant pipeline.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/zapdeskhq/zapdesk/internal/inbound"
	"github.com/zapdeskhq/zapdesk/internal/instance"
	"github.com/zapdeskhq/zapdesk/internal/session"
)

// Operator transfer commands. Matched exactly after trimming.
const (
	cmdTransferToHuman = "<<<"
	cmdTransferToAI    = ">>>"
	cmdCloseSession    = "[]"
)

const sessionClosedReply = "Sua sessão foi encerrada."

var (
	activateCommands = map[string]struct{}{
		"ativar": {}, "ativar instancia": {}, "ligar": {}, "on": {},
	}
	deactivateCommands = map[string]struct{}{
		"desativar": {}, "desativar instancia": {}, "desligar": {}, "off": {},
	}
	statusCommands = map[string]struct{}{
		"status": {}, "estado": {}, "info": {},
	}
)

type sessionControl interface {
	SetStatus(ctx context.Context, id uuid.UUID, status session.Status) (session.Session, error)
}

type instanceControl interface {
	SetActive(ctx context.Context, id uuid.UUID, active bool) (instance.Instance, error)
}

type replySender interface {
	SendText(ctx context.Context, inst instance.Instance, to, text string) error
}

// Interpreter recognizes control messages from the instance operator
// and applies their side effects.
type Interpreter struct {
	logger    *slog.Logger
	sessions  sessionControl
	instances instanceControl
	sender    replySender
}

func NewInterpreter(log *slog.Logger, sessions sessionControl, instances instanceControl, sender replySender) *Interpreter {
	if log == nil {
		log = slog.Default()
	}
	return &Interpreter{
		logger:    log.With(slog.String("service", "command")),
		sessions:  sessions,
		instances: instances,
		sender:    sender,
	}
}

// Intercept checks whether the message is a control command and, if so,
// executes it. It reports true when the message was consumed and must
// not continue through the pipeline. The operator is recognized by
// display name matching the instance profile name; admin commands
// additionally require the sender to be the instance's own number.
func (i *Interpreter) Intercept(ctx context.Context, msg *inbound.Message, sess session.Session, inst instance.Instance) (bool, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return false, nil
	}

	if msg.PushName != "" && msg.PushName == inst.ProfileName {
		if handled, err := i.interceptTransfer(ctx, text, msg, sess, inst); handled || err != nil {
			return handled, err
		}
	}
	if inst.PhoneNumber != "" && msg.From == inst.PhoneNumber {
		return i.interceptAdmin(ctx, text, msg, inst)
	}
	return false, nil
}

func (i *Interpreter) interceptTransfer(ctx context.Context, text string, msg *inbound.Message, sess session.Session, inst instance.Instance) (bool, error) {
	switch text {
	case cmdTransferToHuman:
		if _, err := i.sessions.SetStatus(ctx, sess.ID, session.StatusHuman); err != nil {
			return true, fmt.Errorf("transfer to human: %w", err)
		}
		i.logger.Info("session transferred to human", slog.String("session_id", sess.ID.String()))
		return true, nil
	case cmdTransferToAI:
		if _, err := i.sessions.SetStatus(ctx, sess.ID, session.StatusAI); err != nil {
			return true, fmt.Errorf("transfer to ai: %w", err)
		}
		i.logger.Info("session transferred to ai", slog.String("session_id", sess.ID.String()))
		return true, nil
	case cmdCloseSession:
		if _, err := i.sessions.SetStatus(ctx, sess.ID, session.StatusClosed); err != nil {
			return true, fmt.Errorf("close session: %w", err)
		}
		i.logger.Info("session closed by operator", slog.String("session_id", sess.ID.String()))
		if err := i.sender.SendText(ctx, inst, msg.From, sessionClosedReply); err != nil {
			i.logger.Warn("close notice not delivered", slog.Any("error", err))
		}
		return true, nil
	}
	return false, nil
}

func (i *Interpreter) interceptAdmin(ctx context.Context, text string, msg *inbound.Message, inst instance.Instance) (bool, error) {
	lower := strings.ToLower(text)
	switch {
	case contains(activateCommands, lower):
		return true, i.setActivation(ctx, msg, inst, true)
	case contains(deactivateCommands, lower):
		return true, i.setActivation(ctx, msg, inst, false)
	case contains(statusCommands, lower):
		return true, i.reply(ctx, inst, msg.From, statusReport(inst))
	}
	return false, nil
}

func (i *Interpreter) setActivation(ctx context.Context, msg *inbound.Message, inst instance.Instance, active bool) error {
	if inst.IsActive == active {
		if active {
			return i.reply(ctx, inst, msg.From, "A instância já está ativa.")
		}
		return i.reply(ctx, inst, msg.From, "A instância já está desativada.")
	}
	updated, err := i.instances.SetActive(ctx, inst.ID, active)
	if err != nil {
		return fmt.Errorf("set activation: %w", err)
	}
	if active {
		return i.reply(ctx, updated, msg.From, "✅ Instância ativada. As mensagens voltarão a ser processadas.")
	}
	return i.reply(ctx, updated, msg.From, "🔇 Instância desativada. Novas mensagens não serão processadas.")
}

func (i *Interpreter) reply(ctx context.Context, inst instance.Instance, to, text string) error {
	if err := i.sender.SendText(ctx, inst, to, text); err != nil {
		return fmt.Errorf("send command reply: %w", err)
	}
	return nil
}

func statusReport(inst instance.Instance) string {
	state := "desativada 🔇"
	if inst.IsActive {
		state = "ativa ✅"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Instância %s está %s\n", inst.InstanceName, state)
	fmt.Fprintf(&b, "Conexão: %s\n", inst.Status)
	if inst.PhoneNumber != "" {
		fmt.Fprintf(&b, "Número: %s\n", inst.PhoneNumber)
	}
	b.WriteString("\nComandos: ativar, desativar, status")
	return b.String()
}

func contains(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
