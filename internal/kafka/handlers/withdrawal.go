package handlers

import (
	"encoding/json"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/domain"
)

func init() {
	Register("withdrawal-events", "WITHDRAWAL_REQUESTED", handleWithdrawalRequested)
	Register("withdrawal-events", "WITHDRAWAL_COMPLETED", handleWithdrawalCompleted)
}

type withdrawalEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		UserID   string  `json:"userId"`
		Email    string  `json:"email"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"payload"`
}

func parseWithdrawalEnv(data []byte) (*withdrawalEnv, bool) {
	var env withdrawalEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Payload.UserID == "" {
		return nil, false
	}
	return &env, true
}

func handleWithdrawalRequested(data []byte) *application.EnqueueInput {
	env, ok := parseWithdrawalEnv(data)
	if !ok {
		return nil
	}
	return &application.EnqueueInput{
		UserID:    env.Payload.UserID,
		Recipient: env.Payload.Email,
		Params: domain.WithdrawalRequestedParams{
			Amount:   env.Payload.Amount,
			Currency: env.Payload.Currency,
		},
	}
}

func handleWithdrawalCompleted(data []byte) *application.EnqueueInput {
	env, ok := parseWithdrawalEnv(data)
	if !ok {
		return nil
	}
	return &application.EnqueueInput{
		UserID:    env.Payload.UserID,
		Recipient: env.Payload.Email,
		Params: domain.WithdrawalCompletedParams{
			Amount:   env.Payload.Amount,
			Currency: env.Payload.Currency,
		},
	}
}
