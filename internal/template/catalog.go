package template

import "github.com/fundlane/notification/internal/domain"

// Catalog returns the built-in template set for the platform's event types.
// Adding an event type means adding an entry here and deploying; templates
// are never mutated at runtime.
func Catalog() map[string]Template {
	return map[string]Template{
		domain.EventDepositApproved: {
			Subject:  "Deposit of {{amount}} {{currency}} approved",
			Body:     "Your deposit of {{amount}} {{currency}} has been approved and credited to your account.",
			Required: []string{"amount", "currency"},
		},
		domain.EventDepositRejected: {
			Subject:  "Deposit of {{amount}} {{currency}} rejected",
			Body:     "Your deposit of {{amount}} {{currency}} could not be processed: {{reason}}.",
			Required: []string{"amount", "currency", "reason"},
		},
		domain.EventWithdrawalRequested: {
			Subject:  "Withdrawal request received",
			Body:     "We received your request to withdraw {{amount}} {{currency}}. You will be notified once it completes.",
			Required: []string{"amount", "currency"},
		},
		domain.EventWithdrawalCompleted: {
			Subject:  "Withdrawal of {{amount}} {{currency}} completed",
			Body:     "Your withdrawal of {{amount}} {{currency}} has been sent to your registered account.",
			Required: []string{"amount", "currency"},
		},
		domain.EventContractCreated: {
			Subject:  "Contract {{contract}} created",
			Body:     "Your investment contract {{contract}} ({{plan}} plan) is now active.",
			Required: []string{"contract", "plan"},
		},
		domain.EventContractMatured: {
			Subject:  "Contract {{contract}} has matured",
			Body:     "Your contract {{contract}} matured with a payout of {{amount}} {{currency}}.",
			Required: []string{"contract", "amount", "currency"},
		},
		domain.EventSecurityAlert: {
			Subject:  "New sign-in to your account",
			Body:     "Your account was accessed from a new device ({{device}}, IP {{ip}}). If this was not you, change your password immediately.",
			Required: []string{"ip", "device"},
		},
		domain.EventChatMessage: {
			Subject:  "New message from {{sender}}",
			Body:     "{{sender}}: {{preview}}",
			Required: []string{"sender", "preview"},
		},
	}
}
