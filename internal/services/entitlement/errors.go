package entitlement

import (
	"fmt"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Коды ошибок проверки перед оплатой.
const (
	CodeSamePlanSelected      = "SAME_PLAN_SELECTED"
	CodeDuplicateSubscription = "DUPLICATE_SUBSCRIPTION"
)

// CheckoutError типизированная ошибка проверки перед оплатой. Код
// различает «тариф уже активен» и «платёжный бэкенд отклонил дубль»,
// чтобы обработчик мог показать разные сообщения.
type CheckoutError struct {
	Code        string
	CurrentPlan models.Plan
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout blocked: %s (current plan %s)", e.Code, e.CurrentPlan)
}
