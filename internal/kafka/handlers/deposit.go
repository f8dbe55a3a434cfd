package handlers

import (
	"encoding/json"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/domain"
)

func init() {
	Register("deposit-events", "DEPOSIT_APPROVED", handleDepositApproved)
	Register("deposit-events", "DEPOSIT_REJECTED", handleDepositRejected)
}

type depositEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		UserID   string  `json:"userId"`
		Email    string  `json:"email"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Reason   string  `json:"reason"`
	} `json:"payload"`
}

func parseDepositEnv(data []byte) (*depositEnv, bool) {
	var env depositEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Payload.UserID == "" {
		return nil, false
	}
	return &env, true
}

func handleDepositApproved(data []byte) *application.EnqueueInput {
	env, ok := parseDepositEnv(data)
	if !ok {
		return nil
	}
	return &application.EnqueueInput{
		UserID:    env.Payload.UserID,
		Recipient: env.Payload.Email,
		Params: domain.DepositApprovedParams{
			Amount:   env.Payload.Amount,
			Currency: env.Payload.Currency,
		},
	}
}

func handleDepositRejected(data []byte) *application.EnqueueInput {
	env, ok := parseDepositEnv(data)
	if !ok {
		return nil
	}
	return &application.EnqueueInput{
		UserID:    env.Payload.UserID,
		Recipient: env.Payload.Email,
		Params: domain.DepositRejectedParams{
			Amount:   env.Payload.Amount,
			Currency: env.Payload.Currency,
			Reason:   env.Payload.Reason,
		},
	}
}
