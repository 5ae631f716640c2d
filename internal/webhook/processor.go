// Package webhook orchestrates inbound Evolution webhook processing:
// normalize, dedup, command interception, media resolution and
// assistant dispatch.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zapdeskhq/zapdesk/internal/assistant"
	"github.com/zapdeskhq/zapdesk/internal/inbound"
	"github.com/zapdeskhq/zapdesk/internal/instance"
	"github.com/zapdeskhq/zapdesk/internal/media"
	"github.com/zapdeskhq/zapdesk/internal/message"
	"github.com/zapdeskhq/zapdesk/internal/session"
)

const fileNotSentReply = "Não consegui enviar o arquivo solicitado."

// Result is the processing outcome reported back to the gateway.
// Business failures are absorbed: the webhook answers 200 for anything
// that parsed, so the gateway never retries what we already recorded.
type Result struct {
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

const (
	StatusProcessed = "processed"
	StatusIgnored   = "ignored"
	StatusDuplicate = "duplicate"
)

type instanceResolver interface {
	GetByEvolutionID(ctx context.Context, evolutionID string) (instance.Instance, error)
	GetByName(ctx context.Context, name string) (instance.Instance, error)
}

type sessionStore interface {
	GetOrCreateActive(ctx context.Context, from, to string, instanceID, ownerID *uuid.UUID) (session.Session, bool, error)
	HasAnyForNumber(ctx context.Context, from string) (bool, error)
}

type messageStore interface {
	PersistOnce(ctx context.Context, draft message.Draft) (message.Message, bool, error)
	SetStatus(ctx context.Context, id uuid.UUID, status message.ProcessingStatus) error
	SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error
	SetMediaRef(ctx context.Context, id uuid.UUID, ref string) error
	SetResponse(ctx context.Context, id uuid.UUID, response string) error
}

type commandInterceptor interface {
	Intercept(ctx context.Context, msg *inbound.Message, sess session.Session, inst instance.Instance) (bool, error)
}

type mediaResolver interface {
	Resolve(ctx context.Context, scope string, msg *inbound.Message) (media.Resolution, error)
}

type assistantGateway interface {
	Invoke(ctx context.Context, text string, sess session.Session) (*assistant.Reply, error)
}

type outboundSender interface {
	SendText(ctx context.Context, inst instance.Instance, to, text string) error
	SendFile(ctx context.Context, inst instance.Instance, to, fileURL, caption string) error
}

// Processor drives one webhook delivery through the pipeline.
type Processor struct {
	logger    *slog.Logger
	instances instanceResolver
	sessions  sessionStore
	messages  messageStore
	sender    outboundSender

	interceptor commandInterceptor
	media       mediaResolver
	assistant   assistantGateway

	welcomeEnabled bool
	welcomeText    string
}

func NewProcessor(log *slog.Logger, instances instanceResolver, sessions sessionStore, messages messageStore, sender outboundSender) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		logger:    log.With(slog.String("service", "webhook")),
		instances: instances,
		sessions:  sessions,
		messages:  messages,
		sender:    sender,
	}
}

// SetInterceptor wires the operator command interceptor.
func (p *Processor) SetInterceptor(i commandInterceptor) { p.interceptor = i }

// SetMediaResolver wires decryption and storage of inbound media.
func (p *Processor) SetMediaResolver(m mediaResolver) { p.media = m }

// SetAssistant wires the conversational assistant.
func (p *Processor) SetAssistant(a assistantGateway) { p.assistant = a }

// SetWelcome configures the first-contact greeting.
func (p *Processor) SetWelcome(enabled bool, text string) {
	p.welcomeEnabled = enabled && strings.TrimSpace(text) != ""
	p.welcomeText = text
}

// Process runs one raw webhook body through the pipeline. Errors are
// returned only for payloads that could not be parsed at all; anything
// else resolves to a Result.
func (p *Processor) Process(ctx context.Context, raw []byte) (Result, error) {
	msg, err := inbound.Normalize(raw)
	if err != nil {
		if errors.Is(err, inbound.ErrNotAMessage) {
			return Result{Status: StatusIgnored, Reason: "not a message"}, nil
		}
		return Result{}, err
	}
	log := p.logger.With(
		slog.String("message_id", msg.MessageID),
		slog.String("from", msg.From))

	inst, err := p.resolveInstance(ctx, msg)
	if err != nil {
		if errors.Is(err, instance.ErrNotFound) {
			log.Warn("webhook for unknown instance",
				slog.String("instance", msg.InstanceName),
				slog.String("instance_id", msg.InstanceID))
			return Result{Status: StatusIgnored, Reason: "unknown instance"}, nil
		}
		return Result{}, fmt.Errorf("resolve instance: %w", err)
	}

	to := inst.PhoneNumber
	if to == "" {
		to = msg.Owner
	}

	var firstContact bool
	if p.welcomeEnabled {
		seen, err := p.sessions.HasAnyForNumber(ctx, msg.From)
		if err != nil {
			return Result{}, fmt.Errorf("check first contact: %w", err)
		}
		firstContact = !seen
	}

	sess, created, err := p.sessions.GetOrCreateActive(ctx, msg.From, to, &inst.ID, nil)
	if err != nil {
		return Result{}, fmt.Errorf("get or create session: %w", err)
	}

	rec, existed, err := p.messages.PersistOnce(ctx, message.Draft{
		SessionID:             sess.ID,
		MessageID:             msg.MessageID,
		Kind:                  msg.Kind,
		Content:               msg.Text,
		MediaURL:              mediaURL(msg),
		SenderName:            msg.PushName,
		Source:                msg.Source,
		RawPayload:            msg.Raw,
		ReceivedWhileInactive: !inst.IsActive,
		ReceivedAt:            receivedAt(msg),
	})
	if err != nil {
		return Result{}, fmt.Errorf("persist message: %w", err)
	}
	if existed {
		return Result{Status: StatusDuplicate, MessageID: msg.MessageID}, nil
	}
	res := Result{MessageID: msg.MessageID}

	if p.interceptor != nil {
		handled, err := p.interceptor.Intercept(ctx, msg, sess, inst)
		if err != nil {
			log.Error("command failed", slog.Any("error", err))
			p.setStatus(ctx, rec.ID, message.StatusFailed)
			res.Status, res.Reason = StatusProcessed, "command failed"
			return res, nil
		}
		if handled {
			p.setStatus(ctx, rec.ID, message.StatusCompleted)
			res.Status, res.Reason = StatusProcessed, "command"
			return res, nil
		}
	}

	if !inst.IsActive {
		log.Info("message received while instance inactive")
		p.setStatus(ctx, rec.ID, message.StatusCompleted)
		res.Status, res.Reason = StatusIgnored, "instance inactive"
		return res, nil
	}
	if inst.IgnoreOwnMessages && msg.PushName != "" && msg.PushName == inst.ProfileName {
		p.setStatus(ctx, rec.ID, message.StatusCompleted)
		res.Status, res.Reason = StatusIgnored, "own message"
		return res, nil
	}
	if !inst.Allows(msg.From) {
		log.Info("sender not in allow list")
		p.setStatus(ctx, rec.ID, message.StatusCompleted)
		res.Status, res.Reason = StatusIgnored, "sender not authorized"
		return res, nil
	}

	content := strings.TrimSpace(msg.Text)
	var mediaFailed bool
	if msg.HasMedia() && p.media != nil {
		resolution, err := p.media.Resolve(ctx, inst.InstanceName, msg)
		if err != nil {
			// The caption still reaches the assistant; the row stays
			// failed unless a reply goes out below.
			log.Warn("media resolution failed", slog.Any("error", err))
			p.setStatus(ctx, rec.ID, message.StatusFailed)
			mediaFailed = true
			resolution = media.Resolution{}
		}
		if resolution.StorageKey != "" {
			if err := p.messages.SetMediaRef(ctx, rec.ID, resolution.StorageKey); err != nil {
				log.Warn("media ref not recorded", slog.Any("error", err))
			}
		}
		if resolution.Transcript != "" {
			if err := p.messages.SetTranscript(ctx, rec.ID, resolution.Transcript); err != nil {
				log.Warn("transcript not recorded", slog.Any("error", err))
			}
			content = resolution.Transcript
		}
	}

	if created && firstContact {
		if err := p.sender.SendText(ctx, inst, msg.From, p.welcomeText); err != nil {
			log.Warn("welcome not delivered", slog.Any("error", err))
		}
	}

	if content == "" {
		if mediaFailed {
			res.Status, res.Reason = StatusProcessed, "media unavailable"
			return res, nil
		}
		p.setStatus(ctx, rec.ID, message.StatusCompleted)
		res.Status, res.Reason = StatusProcessed, "no content"
		return res, nil
	}
	if sess.Status != session.StatusAI {
		if !mediaFailed {
			p.setStatus(ctx, rec.ID, message.StatusCompleted)
		}
		res.Status, res.Reason = StatusProcessed, "human session"
		return res, nil
	}
	if p.assistant == nil {
		if !mediaFailed {
			p.setStatus(ctx, rec.ID, message.StatusCompleted)
		}
		res.Status, res.Reason = StatusProcessed, "no assistant"
		return res, nil
	}

	if !mediaFailed {
		p.setStatus(ctx, rec.ID, message.StatusProcessing)
	}
	reply, err := p.assistant.Invoke(ctx, content, sess)
	if err != nil {
		log.Error("assistant failed", slog.Any("error", err))
		p.setStatus(ctx, rec.ID, message.StatusFailed)
		res.Status, res.Reason = StatusProcessed, "assistant failed"
		return res, nil
	}
	if reply.IsEmpty() {
		if !mediaFailed {
			p.setStatus(ctx, rec.ID, message.StatusCompleted)
		}
		res.Status, res.Reason = StatusProcessed, "no reply"
		return res, nil
	}

	if err := p.deliver(ctx, inst, msg.From, reply); err != nil {
		log.Error("reply not delivered", slog.Any("error", err))
		p.setStatus(ctx, rec.ID, message.StatusFailed)
		res.Status, res.Reason = StatusProcessed, "delivery failed"
		return res, nil
	}
	if reply.Text != "" {
		if err := p.messages.SetResponse(ctx, rec.ID, reply.Text); err != nil {
			log.Warn("response not recorded", slog.Any("error", err))
		}
	}
	p.setStatus(ctx, rec.ID, message.StatusCompleted)
	res.Status, res.Reason = StatusProcessed, "replied"
	return res, nil
}

func (p *Processor) resolveInstance(ctx context.Context, msg *inbound.Message) (instance.Instance, error) {
	if msg.InstanceID != "" {
		inst, err := p.instances.GetByEvolutionID(ctx, msg.InstanceID)
		if err == nil || !errors.Is(err, instance.ErrNotFound) {
			return inst, err
		}
	}
	if msg.InstanceName != "" {
		return p.instances.GetByName(ctx, msg.InstanceName)
	}
	return instance.Instance{}, instance.ErrNotFound
}

// deliver sends the structured reply: text first, then the file. A
// relative file path cannot be fetched, so the contact gets an error
// notice instead.
func (p *Processor) deliver(ctx context.Context, inst instance.Instance, to string, reply *assistant.Reply) error {
	if strings.TrimSpace(reply.Text) != "" {
		if err := p.sender.SendText(ctx, inst, to, reply.Text); err != nil {
			return fmt.Errorf("send text: %w", err)
		}
	}
	fileURL := strings.TrimSpace(reply.FileURL)
	if fileURL == "" {
		return nil
	}
	if !strings.HasPrefix(fileURL, "http://") && !strings.HasPrefix(fileURL, "https://") {
		p.logger.Warn("assistant returned a non-absolute file url", slog.String("file", fileURL))
		if err := p.sender.SendText(ctx, inst, to, fileNotSentReply); err != nil {
			return fmt.Errorf("send file notice: %w", err)
		}
		return nil
	}
	if err := p.sender.SendFile(ctx, inst, to, fileURL, ""); err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	return nil
}

func (p *Processor) setStatus(ctx context.Context, id uuid.UUID, status message.ProcessingStatus) {
	if err := p.messages.SetStatus(ctx, id, status); err != nil {
		p.logger.Warn("message status not updated",
			slog.String("id", id.String()),
			slog.Any("error", err))
	}
}

func mediaURL(msg *inbound.Message) string {
	if msg.Media == nil {
		return ""
	}
	return msg.Media.URL
}

func receivedAt(msg *inbound.Message) *time.Time {
	if msg.Timestamp.IsZero() {
		return nil
	}
	ts := msg.Timestamp
	return &ts
}
