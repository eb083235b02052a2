package alert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlertDisabledIsNoOp(t *testing.T) {
	a := NewEmailAlerter(Config{
		Enabled:  false,
		SMTPHost: "mail.example.com",
		SMTPPort: 587,
		To:       []string{"ops@example.com"},
	})

	require.NoError(t, a.Alert("circuit open", "tiebreak breaker tripped"))
}

func TestAlertWithoutRecipientsIsNoOp(t *testing.T) {
	a := NewEmailAlerter(Config{Enabled: true, SMTPHost: "mail.example.com"})

	require.NoError(t, a.Alert("circuit open", "tiebreak breaker tripped"))
}

func TestNoOpAlerterDiscards(t *testing.T) {
	var a Alerter = &NoOpAlerter{}

	require.NoError(t, a.Alert("anything", "goes"))
}
