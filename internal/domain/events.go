package domain

import "strconv"

// Event type identifiers for the investment platform.
const (
	EventDepositApproved     = "deposit.approved"
	EventDepositRejected     = "deposit.rejected"
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalCompleted = "withdrawal.completed"
	EventContractCreated     = "contract.created"
	EventContractMatured     = "contract.matured"
	EventSecurityAlert       = "security.alert"
	EventChatMessage         = "chat.message"
)

// EventParams is the typed parameter bag for one notification event.
// Each event type has its own concrete struct so that missing or extra
// fields are caught at compile time rather than at template render time.
type EventParams interface {
	EventType() string
	Fields() map[string]string
}

// AmountBearing is implemented by params of money-movement events.
// The enqueuer rejects non-positive amounts before any job is written.
type AmountBearing interface {
	AmountValue() float64
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DepositApprovedParams fills the deposit.approved templates.
type DepositApprovedParams struct {
	Amount   float64
	Currency string
}

func (p DepositApprovedParams) EventType() string   { return EventDepositApproved }
func (p DepositApprovedParams) AmountValue() float64 { return p.Amount }
func (p DepositApprovedParams) Fields() map[string]string {
	return map[string]string{"amount": formatAmount(p.Amount), "currency": p.Currency}
}

// DepositRejectedParams fills the deposit.rejected templates.
type DepositRejectedParams struct {
	Amount   float64
	Currency string
	Reason   string
}

func (p DepositRejectedParams) EventType() string   { return EventDepositRejected }
func (p DepositRejectedParams) AmountValue() float64 { return p.Amount }
func (p DepositRejectedParams) Fields() map[string]string {
	return map[string]string{
		"amount":   formatAmount(p.Amount),
		"currency": p.Currency,
		"reason":   p.Reason,
	}
}

// WithdrawalRequestedParams fills the withdrawal.requested templates.
type WithdrawalRequestedParams struct {
	Amount   float64
	Currency string
}

func (p WithdrawalRequestedParams) EventType() string   { return EventWithdrawalRequested }
func (p WithdrawalRequestedParams) AmountValue() float64 { return p.Amount }
func (p WithdrawalRequestedParams) Fields() map[string]string {
	return map[string]string{"amount": formatAmount(p.Amount), "currency": p.Currency}
}

// WithdrawalCompletedParams fills the withdrawal.completed templates.
type WithdrawalCompletedParams struct {
	Amount   float64
	Currency string
}

func (p WithdrawalCompletedParams) EventType() string   { return EventWithdrawalCompleted }
func (p WithdrawalCompletedParams) AmountValue() float64 { return p.Amount }
func (p WithdrawalCompletedParams) Fields() map[string]string {
	return map[string]string{"amount": formatAmount(p.Amount), "currency": p.Currency}
}

// ContractCreatedParams fills the contract.created templates.
type ContractCreatedParams struct {
	ContractName string
	Plan         string
}

func (p ContractCreatedParams) EventType() string { return EventContractCreated }
func (p ContractCreatedParams) Fields() map[string]string {
	return map[string]string{"contract": p.ContractName, "plan": p.Plan}
}

// ContractMaturedParams fills the contract.matured templates.
type ContractMaturedParams struct {
	ContractName string
	Amount       float64
	Currency     string
}

func (p ContractMaturedParams) EventType() string   { return EventContractMatured }
func (p ContractMaturedParams) AmountValue() float64 { return p.Amount }
func (p ContractMaturedParams) Fields() map[string]string {
	return map[string]string{
		"contract": p.ContractName,
		"amount":   formatAmount(p.Amount),
		"currency": p.Currency,
	}
}

// SecurityAlertParams fills the security.alert templates.
type SecurityAlertParams struct {
	IP     string
	Device string
}

func (p SecurityAlertParams) EventType() string { return EventSecurityAlert }
func (p SecurityAlertParams) Fields() map[string]string {
	return map[string]string{"ip": p.IP, "device": p.Device}
}

// ChatMessageParams fills the chat.message templates.
type ChatMessageParams struct {
	Sender  string
	Preview string
}

func (p ChatMessageParams) EventType() string { return EventChatMessage }
func (p ChatMessageParams) Fields() map[string]string {
	return map[string]string{"sender": p.Sender, "preview": p.Preview}
}

// RawParams carries untyped parameters arriving over the wire (HTTP enqueue,
// Kafka envelopes) for event types without a dedicated struct. Typed bags are
// preferred; this exists so collaborators can ship new event types without a
// lockstep deploy of this service.
type RawParams struct {
	Event  string
	Values map[string]string
}

func (p RawParams) EventType() string { return p.Event }
func (p RawParams) Fields() map[string]string {
	if p.Values == nil {
		return map[string]string{}
	}
	return p.Values
}

// AmountValue parses an "amount" field if present; absent amounts are
// reported as zero, which the enqueuer treats as invalid for
// amount-bearing event types.
func (p RawParams) AmountValue() float64 {
	v, ok := p.Values["amount"]
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
