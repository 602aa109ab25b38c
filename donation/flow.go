package donation

import (
	"errors"
	"fmt"
)

// State is the position of the donor in the donation flow. Exactly one
// state is current at any time.
type State int

const (
	StateIdle State = iota // amount selection, or home when enabled
	StateProcessing
	StateReceiptPrompt
	StateEmailEntry
	StateThankYou
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateReceiptPrompt:
		return "receipt_prompt"
	case StateEmailEntry:
		return "email_entry"
	case StateThankYou:
		return "thank_you"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Action is an input to the flow.
type Action int

const (
	ActionPay Action = iota
	ActionPaymentSucceeded
	ActionPaymentFailed
	ActionEmailReceipt
	ActionNoReceipt
	ActionReceiptPrinted
	ActionBack
	ActionReceiptSent
	ActionDone
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionPay:
		return "pay"
	case ActionPaymentSucceeded:
		return "payment_succeeded"
	case ActionPaymentFailed:
		return "payment_failed"
	case ActionEmailReceipt:
		return "email_receipt"
	case ActionNoReceipt:
		return "no_receipt"
	case ActionReceiptPrinted:
		return "receipt_printed"
	case ActionBack:
		return "back"
	case ActionReceiptSent:
		return "receipt_sent"
	case ActionDone:
		return "done"
	case ActionReset:
		return "reset"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

var ErrInvalidTransition = errors.New("invalid transition")

type edge struct {
	from   State
	action Action
}

var transitions = map[edge]State{
	{StateIdle, ActionPay}:                     StateProcessing,
	{StateProcessing, ActionPaymentSucceeded}:  StateReceiptPrompt,
	{StateProcessing, ActionPaymentFailed}:     StateIdle,
	{StateReceiptPrompt, ActionEmailReceipt}:   StateEmailEntry,
	{StateReceiptPrompt, ActionNoReceipt}:      StateThankYou,
	{StateReceiptPrompt, ActionReceiptPrinted}: StateThankYou,
	{StateEmailEntry, ActionBack}:              StateReceiptPrompt,
	{StateEmailEntry, ActionReceiptSent}:       StateThankYou,
	{StateThankYou, ActionDone}:                StateIdle,
}

// Next returns the state reached from s by a. Reset is accepted from
// every state.
func Next(s State, a Action) (State, error) {
	if a == ActionReset {
		return StateIdle, nil
	}
	if to, ok := transitions[edge{s, a}]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, a, s)
}
