package preference

import "github.com/fundlane/notification/internal/domain"

// defaults is the hard-coded matrix applied where a user has no stored
// override. Money-movement and security events reach every channel; chat is
// kept off email to avoid drowning mailboxes in conversation traffic.
var defaults = map[string]domain.ChannelMatrix{
	domain.EventDepositApproved:     {Email: true, Push: true, Internal: true},
	domain.EventDepositRejected:     {Email: true, Push: true, Internal: true},
	domain.EventWithdrawalRequested: {Email: true, Push: false, Internal: true},
	domain.EventWithdrawalCompleted: {Email: true, Push: true, Internal: true},
	domain.EventContractCreated:     {Email: true, Push: false, Internal: true},
	domain.EventContractMatured:     {Email: true, Push: true, Internal: true},
	domain.EventSecurityAlert:       {Email: true, Push: true, Internal: true},
	domain.EventChatMessage:         {Email: false, Push: true, Internal: true},
}

// Default returns the default matrix for eventType. Event types unknown to
// the matrix default to all channels enabled (fail-open).
func Default(eventType string) domain.ChannelMatrix {
	if m, ok := defaults[eventType]; ok {
		return m
	}
	return domain.ChannelMatrix{Email: true, Push: true, Internal: true}
}
