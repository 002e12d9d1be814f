// Package server accepts client connections and hands each one to its own
// session handler goroutine. It tracks live sessions only to report them
// and to close them on shutdown; it never touches ledger state itself.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/moussakabalan/multi-user-expense-tracker/internal/entity/expense"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/logger"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/session"
)

type config interface {
	Port() int
	IdleTimeout() time.Duration
}

type expenseStorage interface {
	AddExpense(username string, rec expense.Record) error
	GetExpenses(username string) ([]expense.Record, error)
	UserCount() int
	ExpenseCount() int
}

// Server owns the listening socket and the set of live sessions.
type Server struct {
	lis         net.Listener
	storage     expenseStorage
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[*session.Handler]struct{}
	wg       sync.WaitGroup
}

func New(cfg config, storage expenseStorage) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port()))
	if err != nil {
		return nil, errors.Wrap(err, "cannot listen")
	}
	return &Server{
		lis:         lis,
		storage:     storage,
		idleTimeout: cfg.IdleTimeout(),
		sessions:    make(map[*session.Handler]struct{}),
	}, nil
}

// Addr reports the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve accepts connections until ctx is cancelled. A failed accept is
// logged and the loop continues; it never brings the listener down. On
// cancellation the listener closes, live sessions are closed, and Serve
// returns once every handler goroutine has exited.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.lis.Close(); err != nil {
			logger.Error("closing listener", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.Any("addr", s.lis.Addr()))

	for {
		conn, err := s.lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.shutdown()
				return nil
			}
			logger.Error("failed to accept connection", zap.Error(err))
			continue
		}

		handler := session.NewHandler(conn, s.storage, s.idleTimeout)
		s.track(handler)

		logger.Info("new client connected",
			zap.String("client", handler.RemoteAddr()),
			zap.Int("active", s.ActiveSessions()),
			zap.Int("users", s.storage.UserCount()),
			zap.Int("expenses", s.storage.ExpenseCount()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(handler)
			handler.Run()
		}()
	}
}

// ActiveSessions reports how many session handlers are currently live.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) track(h *session.Handler) {
	s.mu.Lock()
	s.sessions[h] = struct{}{}
	s.mu.Unlock()
	gaugeActiveSessions.Inc()
}

func (s *Server) untrack(h *session.Handler) {
	s.mu.Lock()
	delete(s.sessions, h)
	active := len(s.sessions)
	s.mu.Unlock()
	gaugeActiveSessions.Dec()
	logger.Info("session ended",
		zap.String("client", h.RemoteAddr()), zap.Int("active", active))
}

func (s *Server) shutdown() {
	s.mu.Lock()
	handlers := make([]*session.Handler, 0, len(s.sessions))
	for h := range s.sessions {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h.Close()
	}
	s.wg.Wait()
	logger.Info("server stopped")
}
