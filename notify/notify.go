package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Purpose says why a code was issued.
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeLogin  Purpose = "login"
)

// ErrNoCode is returned by MemorySender.Code for an address with no
// delivered code.
var ErrNoCode = errors.New("no code delivered")

// Message is one code delivery.
type Message struct {
	To        string
	Name      string
	Code      string
	Purpose   Purpose
	ExpiresIn time.Duration
}

// Sender delivers a code to its recipient.
type Sender interface {
	SendCode(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) SendCode(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSender logs deliveries instead of sending them. The code itself is
// only logged when RevealCode is set.
type LogSender struct {
	Logger     *zap.Logger
	RevealCode bool
}

func (s LogSender) SendCode(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fields := []zap.Field{
		zap.String("to", msg.To),
		zap.String("purpose", string(msg.Purpose)),
		zap.Duration("expires_in", msg.ExpiresIn),
	}
	if s.RevealCode {
		fields = append(fields, zap.String("code", msg.Code))
	}
	logger.Info("verification code issued", fields...)
	return nil
}

// MemorySender records the latest code per recipient.
type MemorySender struct {
	mu    sync.Mutex
	codes map[string]Message
	sent  int
}

func NewMemorySender() *MemorySender {
	return &MemorySender{codes: make(map[string]Message)}
}

func (s *MemorySender) SendCode(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[msg.To] = msg
	s.sent++
	return nil
}

// Code returns the latest code delivered to addr.
func (s *MemorySender) Code(addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.codes[addr]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoCode, addr)
	}
	return msg.Code, nil
}

// Sent returns the number of deliveries.
func (s *MemorySender) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}
