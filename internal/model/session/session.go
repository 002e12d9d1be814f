// Package session runs the per-connection command loop. One Handler owns
// one accepted connection from greeting to close and is the only place
// where protocol errors become ERROR response lines.
package session

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moussakabalan/multi-user-expense-tracker/internal/entity/expense"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/logger"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/customerr"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/protocol"
)

const (
	welcomeText         = "Connected to Expense Tracker Server"
	expenseAddedMessage = "Expense added successfully"
	goodbyeMessage      = "Goodbye"

	unknownCommandLabel = "unknown"
)

type expenseStorage interface {
	AddExpense(username string, rec expense.Record) error
	GetExpenses(username string) ([]expense.Record, error)
}

// state tracks where the session is in its lifecycle. A handler starts in
// greeting, moves to active once the welcome line is flushed, and ends in
// closed on QUIT, I/O failure or idle timeout.
type state int

const (
	stateGreeting state = iota
	stateActive
	stateClosed
)

type handler func(cmd protocol.Command) (string, error)

type handlerMap map[string]handler

// Handler serves one client connection. It reads one command line at a
// time, dispatches it, and writes exactly one response unit before reading
// the next line; commands on one connection never overlap.
type Handler struct {
	conn        net.Conn
	reader      *bufio.Reader
	writer      *bufio.Writer
	storage     expenseStorage
	idleTimeout time.Duration
	remote      string

	state       state
	handlersMap handlerMap
}

func NewHandler(conn net.Conn, storage expenseStorage, idleTimeout time.Duration) *Handler {
	h := &Handler{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		writer:      bufio.NewWriter(conn),
		storage:     storage,
		idleTimeout: idleTimeout,
		remote:      conn.RemoteAddr().String(),
		state:       stateGreeting,
	}
	h.handlersMap = newMap(h)
	return h
}

func newMap(h *Handler) handlerMap {
	m := make(handlerMap)
	m[protocol.AddExpense{}.Verb()] = h.handleAddExpense
	m[protocol.GetExpenses{}.Verb()] = h.handleGetExpenses
	m[protocol.Quit{}.Verb()] = h.handleQuit
	return m
}

// RemoteAddr identifies the connection's peer for logging.
func (h *Handler) RemoteAddr() string {
	return h.remote
}

// Run drives the session to completion and always leaves the connection
// closed. Per-command failures are answered on the wire and the loop
// continues; only socket errors, idle timeout or QUIT end it.
func (h *Handler) Run() {
	defer h.close()

	if err := h.writeLine(protocol.Welcome(welcomeText)); err != nil {
		logger.Error("failed to send welcome", zap.String("client", h.remote), zap.Error(err))
		return
	}
	h.state = stateActive

	for h.state == stateActive {
		line, err := h.readLine()
		if err != nil {
			h.logDisconnect(err)
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		response := h.dispatch(line)
		if err := h.writeLine(response); err != nil {
			logger.Error("failed to write response", zap.String("client", h.remote), zap.Error(err))
			return
		}
	}
}

// Close tears the connection down from outside, typically during server
// shutdown. The blocked read in Run fails and the session cleans up.
func (h *Handler) Close() {
	_ = h.conn.Close()
}

func (h *Handler) readLine() (string, error) {
	if h.idleTimeout > 0 {
		if err := h.conn.SetReadDeadline(time.Now().Add(h.idleTimeout)); err != nil {
			return "", err
		}
	}
	line, err := h.reader.ReadString('\n')
	if err != nil {
		// An idle expiry is a dead connection even if a fragment arrived.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return "", err
		}
		// A final line without trailing newline still counts.
		if line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (h *Handler) writeLine(line string) error {
	if _, err := h.writer.WriteString(line + "\n"); err != nil {
		return err
	}
	return h.writer.Flush()
}

// dispatch turns one command line into one response unit. Every failure
// path ends in an ERROR line; nothing here may kill the session.
func (h *Handler) dispatch(line string) string {
	start := time.Now()

	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		observeCommand("parse", time.Since(start), true)
		logger.Info("rejected command", zap.String("client", h.remote), zap.Error(err))
		return protocol.EncodeError(err.Error())
	}

	verb := cmd.Verb()
	logger.Info("request", zap.String("client", h.remote), zap.String("command", verb))

	handlerFn, ok := h.handlersMap[verb]
	if !ok {
		// Client-supplied verbs must not mint new metric label values.
		observeCommand(unknownCommandLabel, time.Since(start), true)
		return protocol.EncodeError((&customerr.UnknownCommandError{Verb: verb}).Error())
	}

	response, err := handlerFn(cmd)
	observeCommand(verb, time.Since(start), err != nil)
	if err != nil {
		logger.Info("command failed",
			zap.String("client", h.remote), zap.String("command", verb), zap.Error(err))
		return protocol.EncodeError(err.Error())
	}
	return response
}

func (h *Handler) handleAddExpense(cmd protocol.Command) (string, error) {
	add, ok := cmd.(protocol.AddExpense)
	if !ok {
		return "", &customerr.ParseError{Reason: "Invalid ADD_EXPENSE format"}
	}
	if err := h.storage.AddExpense(add.Username, add.Record); err != nil {
		return "", err
	}
	return protocol.EncodeSuccess(expenseAddedMessage), nil
}

func (h *Handler) handleGetExpenses(cmd protocol.Command) (string, error) {
	get, ok := cmd.(protocol.GetExpenses)
	if !ok {
		return "", &customerr.ParseError{Reason: "Invalid GET_EXPENSES format"}
	}
	records, err := h.storage.GetExpenses(get.Username)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, protocol.EncodeSuccess(fmt.Sprint(len(records))))
	for _, rec := range records {
		encoded, err := protocol.EncodeRecord(rec)
		if err != nil {
			return "", err
		}
		lines = append(lines, encoded)
	}
	return strings.Join(lines, "\n"), nil
}

func (h *Handler) handleQuit(protocol.Command) (string, error) {
	h.state = stateClosed
	return protocol.EncodeSuccess(goodbyeMessage), nil
}

func (h *Handler) logDisconnect(err error) {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		logger.Info("idle timeout, closing connection", zap.String("client", h.remote))
		return
	}
	logger.Info("client disconnected", zap.String("client", h.remote), zap.Error(err))
}

func (h *Handler) close() {
	h.state = stateClosed
	if err := h.conn.Close(); err != nil {
		logger.Info("closing connection", zap.String("client", h.remote), zap.Error(err))
	}
}
