package handlers

import (
	"encoding/json"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/domain"
)

func init() {
	Register("security-events", "LOGIN_NEW_DEVICE", handleLoginNewDevice)
	Register("chat-events", "CHAT_MESSAGE", handleChatMessage)
}

func handleLoginNewDevice(data []byte) *application.EnqueueInput {
	var env struct {
		EventType string `json:"eventType"`
		EventID   string `json:"eventId"`
		Payload   struct {
			UserID string `json:"userId"`
			Email  string `json:"email"`
			IP     string `json:"ip"`
			Device string `json:"device"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Payload.UserID == "" {
		return nil
	}
	return &application.EnqueueInput{
		UserID:    env.Payload.UserID,
		Recipient: env.Payload.Email,
		Params: domain.SecurityAlertParams{
			IP:     env.Payload.IP,
			Device: env.Payload.Device,
		},
	}
}

func handleChatMessage(data []byte) *application.EnqueueInput {
	var env struct {
		EventType string `json:"eventType"`
		EventID   string `json:"eventId"`
		Payload   struct {
			UserID  string `json:"userId"`
			Email   string `json:"email"`
			Sender  string `json:"sender"`
			Preview string `json:"preview"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil || env.Payload.UserID == "" {
		return nil
	}
	return &application.EnqueueInput{
		UserID:    env.Payload.UserID,
		Recipient: env.Payload.Email,
		Params: domain.ChatMessageParams{
			Sender:  env.Payload.Sender,
			Preview: env.Payload.Preview,
		},
	}
}
