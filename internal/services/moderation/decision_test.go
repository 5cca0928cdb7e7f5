package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Decision
		wantErr bool
	}{
		{
			name: "approve",
			data: "confirm_12345_20gb_4",
			want: Decision{Action: ActionApprove, UserID: "12345", PlanID: "20gb", UserCount: 4},
		},
		{name: "reject", data: "reject_12345", want: Decision{Action: ActionReject, UserID: "12345"}},
		{name: "bad count", data: "confirm_1_20gb_x", wantErr: true},
		{name: "missing parts", data: "confirm_1_20gb", wantErr: true},
		{name: "reject with extra", data: "reject_1_2", wantErr: true},
		{name: "unknown", data: "plan_10gb", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecision(tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDecision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.data, got.CallbackData())
		})
	}
}

func TestIsDecisionCallback(t *testing.T) {
	assert.True(t, IsDecisionCallback("confirm_1_10gb_1"))
	assert.True(t, IsDecisionCallback("reject_1"))
	assert.False(t, IsDecisionCallback("users_4"))
	assert.False(t, IsDecisionCallback("back_to_menu"))
}

func TestDecision_Validate(t *testing.T) {
	cat := catalog.Default()

	tests := []struct {
		name    string
		d       Decision
		wantErr bool
	}{
		{name: "approve ok", d: Decision{Action: ActionApprove, UserID: "1", PlanID: "10gb", UserCount: 100}},
		{name: "reject ok", d: Decision{Action: ActionReject, UserID: "1"}},
		{name: "unknown plan", d: Decision{Action: ActionApprove, UserID: "1", PlanID: "5gb", UserCount: 1}, wantErr: true},
		{name: "unknown tier", d: Decision{Action: ActionApprove, UserID: "1", PlanID: "10gb", UserCount: 7}, wantErr: true},
		{name: "empty user", d: Decision{Action: ActionReject}, wantErr: true},
		{name: "unknown action", d: Decision{Action: "ban", UserID: "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate(cat)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDecision)
				return
			}
			require.NoError(t, err)
		})
	}
}
