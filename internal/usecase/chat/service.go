// Package chat answers questions about an indexed profile. Each answer is
// grounded on the snippets retrieved for the latest user message, and all
// provider failures surface to callers as fixed fallback strings, never as
// raw errors.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agentcv/agentcv/internal/domain"
)

// Service implements the single-shot and streaming chat operations.
type Service struct {
	meta      Metadata
	retriever Retriever
	completer Completer
	logger    *zap.Logger
}

// New creates a chat service.
func New(meta Metadata, retriever Retriever, completer Completer, logger *zap.Logger) *Service {
	return &Service{meta: meta, retriever: retriever, completer: completer, logger: logger}
}

// Request is one chat invocation. Handle targets another tenant's published
// profile; when empty the caller chats with its own profile.
type Request struct {
	TenantID string
	Handle   string
	Messages []domain.Message
}

// Respond returns a single complete answer. A provider outage yields the
// fixed unavailable string as a normal answer; an empty completion yields the
// no-answer string. Missing credentials and missing profiles are the caller's
// problem and surface as errors.
func (s *Service) Respond(ctx context.Context, req Request) (string, error) {
	cred, messages, err := s.prepare(ctx, req)
	if err != nil {
		return "", err
	}

	answer, err := s.completer.Complete(ctx, cred, messages)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn("Completion failed", zap.Error(err))
		return domain.FallbackUnavailable, nil
	}
	if answer == "" {
		return domain.FallbackNoAnswer, nil
	}
	return answer, nil
}

// Stream forwards answer fragments to emit in order. A provider failure
// mid-stream emits the unavailable string as one final fragment and ends the
// stream cleanly; only client-side failures (cancellation, emit errors)
// propagate.
func (s *Service) Stream(ctx context.Context, req Request, emit func(fragment string) error) error {
	cred, messages, err := s.prepare(ctx, req)
	if err != nil {
		return err
	}

	err = s.completer.Stream(ctx, cred, messages, emit)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, domain.ErrCompletionProvider) {
		s.logger.Warn("Completion stream failed", zap.Error(err))
		if emitErr := emit(domain.FallbackUnavailable); emitErr != nil {
			return fmt.Errorf("emit fallback: %w", emitErr)
		}
		return nil
	}
	return err
}

// prepare resolves the chat target, loads its credential, and assembles the
// provider conversation: persona plus retrieved snippets as the system turn,
// then the caller's messages untouched.
func (s *Service) prepare(ctx context.Context, req Request) (domain.Credential, []domain.Message, error) {
	tenant, err := s.resolveTarget(ctx, req)
	if err != nil {
		return domain.Credential{}, nil, err
	}

	cred, err := s.meta.Credential(ctx, tenant.ID)
	if err != nil {
		return domain.Credential{}, nil, fmt.Errorf("load credential: %w", err)
	}

	query := domain.LastUserQuery(req.Messages)
	snippets := s.retriever.Retrieve(ctx, tenant.ID, query, cred)

	return cred, assemble(snippets, req.Messages), nil
}

// resolveTarget picks the tenant whose profile the conversation is about.
// A handle only resolves to a published active profile; chatting with one's
// own profile skips the publish check but still requires an active profile.
func (s *Service) resolveTarget(ctx context.Context, req Request) (domain.Tenant, error) {
	if req.Handle != "" {
		tenant, _, err := s.meta.ActiveByHandle(ctx, req.Handle)
		if err != nil {
			return domain.Tenant{}, fmt.Errorf("resolve handle: %w", err)
		}
		return tenant, nil
	}

	tenant, err := s.meta.Tenant(ctx, req.TenantID)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("resolve tenant: %w", err)
	}
	if _, err := s.meta.Active(ctx, tenant.ID); err != nil {
		return domain.Tenant{}, fmt.Errorf("active profile: %w", err)
	}
	return tenant, nil
}

// assemble builds the provider message list. The system turn carries the
// persona and the retrieved context; with no snippets it is the persona
// alone.
func assemble(snippets []domain.Snippet, messages []domain.Message) []domain.Message {
	var b strings.Builder
	b.WriteString(domain.Persona)
	for _, sn := range snippets {
		b.WriteString("\n")
		b.WriteString(sn.Text)
	}

	out := make([]domain.Message, 0, len(messages)+1)
	out = append(out, domain.Message{Role: "system", Content: b.String()})
	out = append(out, messages...)
	return out
}
