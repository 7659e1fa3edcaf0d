package speech

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-speech/internal/protocol"
)

// Service answers speech.resolve requests on the bus.
type Service struct {
	resolver *Resolver
	conn     *nats.Conn
	timeout  time.Duration
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

func NewService(parent context.Context, resolver *Resolver, conn *nats.Conn, timeout time.Duration, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		resolver: resolver,
		conn:     conn,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.With(slog.String("component", "speech-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.conn.QueueSubscribe(protocol.SubjectSpeechResolve, protocol.QueueSpeechResolvers, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.sub != nil && s.sub.IsValid() }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.SpeechRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode speech request", slogError(err))
		s.reply(msg, protocol.SpeechResponse{Error: &protocol.SpeechError{
			Code:    CodeInvalidRequest,
			Message: "malformed request: " + err.Error(),
		}})
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		entry, err := s.resolver.ResolveEntry(ctx, req.Text, req.Language)
		if err != nil {
			s.logger.Warn("speech resolve failed",
				slog.String("request_id", req.RequestID),
				slog.String("trace_id", req.TraceID),
				slogError(err))
			s.reply(msg, protocol.SpeechResponse{
				RequestID: req.RequestID,
				Error:     &protocol.SpeechError{Code: ErrorCode(err), Message: err.Error()},
			})
			return
		}

		s.reply(msg, protocol.SpeechResponse{
			RequestID: req.RequestID,
			Path:      entry.Path,
			Source:    string(entry.Source),
			SizeBytes: entry.SizeBytes,
			Key:       entry.Key.Stem(),
		})
		if entry.Source == SourceSynthesized {
			s.publishCached(entry)
		}
	}()
}

func (s *Service) reply(msg *nats.Msg, resp protocol.SpeechResponse) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to marshal speech response", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send speech response", slogError(err))
	}
}

func (s *Service) publishCached(entry Entry) {
	event := protocol.SpeechCached{
		Key:       entry.Key.Stem(),
		Language:  entry.Key.Language,
		Path:      entry.Path,
		SizeBytes: entry.SizeBytes,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal speech cached event", slogError(err))
		return
	}
	if err := s.conn.Publish(protocol.SubjectSpeechCached, data); err != nil {
		s.logger.Warn("failed to publish speech cached event", slogError(err))
	}
}
