package handlers

import (
	"encoding/json"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/domain"
)

func init() {
	Register("contract-events", "CONTRACT_CREATED", handleContractCreated)
	Register("contract-events", "CONTRACT_MATURED", handleContractMatured)
}

type contractEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	Payload   struct {
		UserID       string  `json:"userId"`
		Email        string  `json:"email"`
		ContractName string  `json:"contractName"`
		Plan         string  `json:"plan"`
		Amount       float64 `json:"amount"`
		Currency     string  `json:"currency"`
	} `json:"payload"`
}

func parseContractEnv(data []byte) (*contractEnv, bool) {
	var env contractEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Payload.UserID == "" {
		return nil, false
	}
	return &env, true
}

func handleContractCreated(data []byte) *application.EnqueueInput {
	env, ok := parseContractEnv(data)
	if !ok {
		return nil
	}
	return &application.EnqueueInput{
		UserID:    env.Payload.UserID,
		Recipient: env.Payload.Email,
		Params: domain.ContractCreatedParams{
			ContractName: env.Payload.ContractName,
			Plan:         env.Payload.Plan,
		},
	}
}

func handleContractMatured(data []byte) *application.EnqueueInput {
	env, ok := parseContractEnv(data)
	if !ok {
		return nil
	}
	return &application.EnqueueInput{
		UserID:    env.Payload.UserID,
		Recipient: env.Payload.Email,
		Params: domain.ContractMaturedParams{
			ContractName: env.Payload.ContractName,
			Amount:       env.Payload.Amount,
			Currency:     env.Payload.Currency,
		},
	}
}
