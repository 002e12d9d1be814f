// Package protocol implements the newline-delimited text protocol spoken
// between clients and the server. All functions are pure: parsing and
// encoding never touch connection or storage state.
//
// Command lines are pipe-delimited, verb first:
//
//	ADD_EXPENSE|<username>|<amount>|<category>|<date:YYYY-MM-DD>[|<note>]
//	GET_EXPENSES|<username>
//	QUIT
//
// Responses are a single SUCCESS or ERROR line, except GET_EXPENSES which
// follows SUCCESS|<count> with one JSON record line per expense.
package protocol

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/moussakabalan/multi-user-expense-tracker/internal/entity/expense"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/customerr"
)

const (
	// Delimiter separates fields within a command or response line.
	Delimiter = "|"

	successPrefix = "SUCCESS"
	errorPrefix   = "ERROR"
	welcomePrefix = "CONNECTION SUCCESSFUL"

	addExpenseVerb  = "ADD_EXPENSE"
	getExpensesVerb = "GET_EXPENSES"
	quitVerb        = "QUIT"
	exitVerb        = "EXIT"

	addExpenseMinFields  = 5
	getExpensesMinFields = 2
)

// Command is one parsed client command. The concrete type is one of
// AddExpense, GetExpenses, Quit or Unknown.
type Command interface {
	Verb() string
}

type AddExpense struct {
	Username string
	Record   expense.Record
}

func (AddExpense) Verb() string { return addExpenseVerb }

type GetExpenses struct {
	Username string
}

func (GetExpenses) Verb() string { return getExpensesVerb }

type Quit struct{}

func (Quit) Verb() string { return quitVerb }

type Unknown struct {
	UnknownVerb string
}

func (u Unknown) Verb() string { return u.UnknownVerb }

// ParseCommand decodes one wire line into a Command. It returns a
// *customerr.ParseError when the line is structurally broken; a recognized
// structure with an unrecognized verb parses into Unknown, not an error,
// so the session can answer it without special-casing.
func ParseCommand(line string) (Command, error) {
	parts := strings.Split(line, Delimiter)
	verb := strings.ToUpper(strings.TrimSpace(parts[0]))
	if verb == "" {
		return nil, &customerr.ParseError{Reason: "Invalid command format: " + line}
	}

	switch verb {
	case addExpenseVerb:
		return parseAddExpense(parts)
	case getExpensesVerb:
		if len(parts) < getExpensesMinFields {
			return nil, &customerr.ParseError{Reason: "Invalid GET_EXPENSES format"}
		}
		return GetExpenses{Username: parts[1]}, nil
	case quitVerb, exitVerb:
		return Quit{}, nil
	default:
		return Unknown{UnknownVerb: verb}, nil
	}
}

func parseAddExpense(parts []string) (Command, error) {
	if len(parts) < addExpenseMinFields {
		return nil, &customerr.ParseError{Reason: "Invalid ADD_EXPENSE format"}
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, &customerr.ParseError{Reason: "Invalid amount format"}
	}

	date, err := expense.ParseDate(strings.TrimSpace(parts[4]))
	if err != nil {
		return nil, &customerr.ParseError{Reason: "Invalid date format. Should be YYYY-MM-DD"}
	}

	note := ""
	if len(parts) > addExpenseMinFields {
		note = parts[addExpenseMinFields]
	}

	return AddExpense{
		Username: parts[1],
		Record: expense.Record{
			Amount:   amount,
			Category: parts[3],
			Date:     date,
			Note:     note,
		},
	}, nil
}

// EncodeSuccess builds a SUCCESS response line around the given payload.
func EncodeSuccess(payload string) string {
	return successPrefix + Delimiter + payload
}

// EncodeError builds an ERROR response line around the given reason.
func EncodeError(reason string) string {
	return errorPrefix + Delimiter + reason
}

// Welcome builds the greeting line a session emits before reading commands.
func Welcome(text string) string {
	return welcomePrefix + Delimiter + text
}

// EncodeRecord renders one expense record as a single JSON line, the format
// used both on the wire after SUCCESS|<count> and in the per-user files.
func EncodeRecord(rec expense.Record) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", errors.Wrap(err, "encode record")
	}
	return string(raw), nil
}

// DecodeRecord parses one JSON record line and checks the ledger
// invariants, so a decoded record is always safe to hold in memory.
func DecodeRecord(line string) (expense.Record, error) {
	var rec expense.Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return expense.Record{}, errors.Wrap(err, "decode record")
	}
	if err := rec.Validate(); err != nil {
		return expense.Record{}, errors.Wrap(err, "decode record")
	}
	return rec, nil
}
