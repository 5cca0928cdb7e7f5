package moderation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
)

// Action решение администратора.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

const (
	approvePrefix = "confirm"
	rejectPrefix  = "reject"
)

// Decision решение по чекам пользователя. PlanID и UserCount нужны только для одобрения.
type Decision struct {
	Action    Action `json:"action" validate:"required,oneof=approve reject"`
	UserID    string `json:"user_id" validate:"required,numeric"`
	PlanID    string `json:"plan_id,omitempty"`
	UserCount int    `json:"user_count,omitempty"`
}

// CallbackData кодирует решение для кнопки: confirm_<uid>_<plan>_<count> или reject_<uid>.
func (d Decision) CallbackData() string {
	if d.Action == ActionApprove {
		return fmt.Sprintf("%s_%s_%s_%d", approvePrefix, d.UserID, d.PlanID, d.UserCount)
	}
	return fmt.Sprintf("%s_%s", rejectPrefix, d.UserID)
}

// IsDecisionCallback сообщает, относятся ли данные кнопки к модерации.
func IsDecisionCallback(data string) bool {
	return strings.HasPrefix(data, approvePrefix+"_") || strings.HasPrefix(data, rejectPrefix+"_")
}

// ParseDecision разбирает данные кнопки. Содержимое не проверяется по каталогу, это делает Validate.
func ParseDecision(data string) (Decision, error) {
	parts := strings.Split(data, "_")
	switch {
	case parts[0] == approvePrefix && len(parts) == 4:
		n, err := strconv.Atoi(parts[3])
		if err != nil {
			return Decision{}, fmt.Errorf("%w: user count %q", ErrInvalidDecision, parts[3])
		}
		return Decision{Action: ActionApprove, UserID: parts[1], PlanID: parts[2], UserCount: n}, nil
	case parts[0] == rejectPrefix && len(parts) == 2:
		return Decision{Action: ActionReject, UserID: parts[1]}, nil
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidDecision, data)
	}
}

// Validate проверяет решение перед применением.
func (d Decision) Validate(cat *catalog.Catalog) error {
	if d.UserID == "" || strings.Contains(d.UserID, "_") {
		return fmt.Errorf("%w: user id %q", ErrInvalidDecision, d.UserID)
	}
	switch d.Action {
	case ActionReject:
		return nil
	case ActionApprove:
		if _, err := cat.Plan(d.PlanID); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDecision, err)
		}
		if !cat.HasTier(d.UserCount) {
			return fmt.Errorf("%w: user count %d", ErrInvalidDecision, d.UserCount)
		}
		return nil
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidDecision, d.Action)
	}
}
