package hazard_analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxSMSBody is Twilio's limit for a single message body.
const maxSMSBody = 1600

type HighRiskHazard struct {
	ID        string
	Aspect    string
	RiskScore float64
}

// Notifier is told about High rated hazards after an analysis.
type Notifier interface {
	NotifyHighRisk(ctx context.Context, activity string, hazards []HighRiskHazard) error
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioCredentials struct {
	AccountSid string
	AuthToken  string
	FromNumber string
	ToNumbers  []string
}

// SMSNotifier texts every configured number through Twilio.
type SMSNotifier struct {
	api    messageCreator
	from   string
	to     []string
	logger *slog.Logger
}

func NewSMSNotifier(creds TwilioCredentials, logger *slog.Logger) (*SMSNotifier, error) {
	if creds.AccountSid == "" || creds.AuthToken == "" || creds.FromNumber == "" {
		return nil, fmt.Errorf("twilio credentials are incomplete")
	}
	if len(creds.ToNumbers) == 0 {
		return nil, fmt.Errorf("no SMS recipients configured")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: creds.AccountSid,
		Password: creds.AuthToken,
	})
	return &SMSNotifier{api: client.Api, from: creds.FromNumber, to: creds.ToNumbers, logger: logger}, nil
}

func (n *SMSNotifier) NotifyHighRisk(ctx context.Context, activity string, hazards []HighRiskHazard) error {
	if len(hazards) == 0 {
		return nil
	}
	body := smsBody(activity, hazards)

	var failed []string
	for _, to := range n.to {
		if err := ctx.Err(); err != nil {
			return err
		}
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(n.from)
		params.SetBody(body)

		message, err := n.api.CreateMessage(params)
		if err != nil {
			n.logger.Error("Failed to send SMS",
				slog.String("error", err.Error()),
				slog.String("to", to))
			failed = append(failed, to)
			continue
		}
		if message != nil && message.Sid != nil {
			n.logger.Info("High risk SMS sent",
				slog.String("to", to),
				slog.String("message_sid", *message.Sid))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to send SMS to %s", strings.Join(failed, ", "))
	}
	return nil
}

func smsBody(activity string, hazards []HighRiskHazard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HIGH RISK: %s.", activity)
	for _, h := range hazards {
		fmt.Fprintf(&b, " %s %s (score %s);", h.ID, h.Aspect, strconv.FormatFloat(h.RiskScore, 'f', -1, 64))
	}
	s := strings.TrimSuffix(b.String(), ";")
	if r := []rune(s); len(r) > maxSMSBody {
		s = string(r[:maxSMSBody-3]) + "..."
	}
	return s
}
