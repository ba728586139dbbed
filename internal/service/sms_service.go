package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"smsbridge-backend/internal/applescript"
	"smsbridge-backend/internal/model"
)

type SMSService struct {
	Bridge *applescript.Bridge
	Log    zerolog.Logger
}

func NewSMSService(bridge *applescript.Bridge, log zerolog.Logger) *SMSService {
	return &SMSService{Bridge: bridge, Log: log}
}

// Send dispatches the message to each recipient in turn, one bridge call per
// recipient. A failed recipient is recorded and the loop continues; the
// per-recipient outcomes make up the report.
func (s *SMSService) Send(ctx context.Context, recipients []model.Recipient, message string) (*model.SendReport, error) {
	if message == "" {
		return nil, errors.New("message text is required")
	}
	if len(recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}

	report := &model.SendReport{Results: make([]model.SendResult, 0, len(recipients))}
	for i, r := range recipients {
		s.Log.Info().
			Int("seq", i+1).
			Int("total", len(recipients)).
			Str("phone", applescript.MaskPhone(r.Phone)).
			Msg("dispatching")

		result := model.SendResult{Name: r.Name, Phone: r.Phone}
		msg, err := s.Bridge.Send(ctx, r.Phone, message)
		if err != nil {
			result.Message = err.Error()
			report.Failed++
		} else {
			result.Success = true
			result.Message = msg
			report.Sent++
		}
		report.Results = append(report.Results, result)
	}

	s.Log.Info().Int("sent", report.Sent).Int("failed", report.Failed).Msg("send complete")
	return report, nil
}
