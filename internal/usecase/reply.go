package usecase

import (
	"context"
	"log/slog"
	"strings"

	"rule-chatbot/internal/responder"
)

// TranscriptWriter persists one exchange for a session.
type TranscriptWriter interface {
	SaveExchange(ctx context.Context, id, sessionID, utterance, normalized, rule, reply string) error
}

// ReplyObserver is notified of every reply sent.
type ReplyObserver interface {
	ObserveReply(rule string)
}

type ReplyInput struct {
	Utterance     string
	SessionID     string
	CorrelationID string
}

type ReplyOutput struct {
	Reply string
	Rule  string
}

// ReplyService answers utterances with the canned responder and optionally
// records each exchange.
type ReplyService struct {
	transcripts TranscriptWriter
	observer    ReplyObserver
	logger      *slog.Logger
}

type Option func(*ReplyService)

// WithTranscripts records every exchange through w. A failed write fails the reply.
func WithTranscripts(w TranscriptWriter) Option {
	return func(s *ReplyService) {
		s.transcripts = w
	}
}

func WithObserver(o ReplyObserver) Option {
	return func(s *ReplyService) {
		s.observer = o
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ReplyService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewReplyService(opts ...Option) *ReplyService {
	s := &ReplyService{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReplyService) Reply(ctx context.Context, in ReplyInput) (ReplyOutput, error) {
	out := ReplyOutput{
		Reply: responder.Respond(in.Utterance),
		Rule:  responder.RuleName(in.Utterance),
	}

	if s.transcripts != nil {
		sessionID := strings.TrimSpace(in.SessionID)
		if sessionID == "" {
			sessionID = in.CorrelationID
		}
		err := s.transcripts.SaveExchange(ctx, in.CorrelationID, sessionID,
			in.Utterance, responder.Normalize(in.Utterance), out.Rule, out.Reply)
		if err != nil {
			return ReplyOutput{}, newError(ErrorInternal, "transcript_write_error", err)
		}
	}

	if s.observer != nil {
		s.observer.ObserveReply(out.Rule)
	}
	s.logger.DebugContext(ctx, "reply sent", "rule", out.Rule, "correlation_id", in.CorrelationID)
	return out, nil
}
