package entitlement

import (
	"time"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Resolve вычисляет состояние доступа из профиля пользователя и его
// подписки. Правила применяются строго по порядку: администратор,
// подписка (активная либо отменённая с неистёкшим оплаченным периодом),
// действующий пробный период, всё остальное. Отменённая подписка
// остаётся авторитетным источником до конца оплаченного периода и
// вытесняет пробный период, но доступ не даёт.
func Resolve(user *models.User, sub *models.Subscription, now time.Time) models.Entitlement {
	if user == nil {
		return models.Entitlement{Source: models.SourceNone, Status: models.StatusEnded, Plan: models.PlanFree, RefreshedAt: now}
	}

	if user.Role == models.RoleAdmin {
		return models.Entitlement{
			Source:      models.SourceAdmin,
			Status:      models.StatusActive,
			Plan:        models.PlanEnterprise,
			Admin:       true,
			RefreshedAt: now,
		}
	}

	if subscriptionCurrent(sub, now) {
		return models.Entitlement{
			Source:           models.SourceSubscription,
			Status:           sub.Status,
			Plan:             sub.Plan,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
			CustomerID:       sub.CustomerID,
			SubscriptionID:   sub.SubscriptionID,
			RefreshedAt:      now,
		}
	}

	if user.SubscriptionStatus == models.StatusTrial && user.TrialEndDate != nil {
		if !user.TrialUsed && now.Before(*user.TrialEndDate) {
			return models.Entitlement{
				Source:      models.SourceTrial,
				Status:      models.StatusTrial,
				Plan:        models.PlanProfessional,
				TrialEnd:    user.TrialEndDate,
				RefreshedAt: now,
			}
		}
		// Пробный период истёк или уже был использован. Возвращаем
		// ended, просроченную строку в БД чинит вызывающая сторона.
		return models.Entitlement{
			Source:      models.SourceNone,
			Status:      models.StatusEnded,
			Plan:        models.PlanFree,
			TrialEnd:    user.TrialEndDate,
			RefreshedAt: now,
		}
	}

	status := user.SubscriptionStatus
	if status == "" || status == models.StatusTrial {
		status = models.StatusEnded
	}

	return models.Entitlement{
		Source:      models.SourceNone,
		Status:      status,
		Plan:        models.PlanFree,
		RefreshedAt: now,
	}
}

// subscriptionCurrent сообщает, остаётся ли подписка авторитетным
// источником: активная — всегда, отменённая — пока не закончился
// оплаченный период.
func subscriptionCurrent(sub *models.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	if sub.Status == models.StatusActive {
		return true
	}
	return sub.Status == models.StatusCanceled &&
		sub.CurrentPeriodEnd != nil && now.Before(*sub.CurrentPeriodEnd)
}

// needsTrialHeal сообщает, что профиль всё ещё помечен как trial,
// хотя дата окончания пробного периода уже прошла.
func needsTrialHeal(user *models.User, now time.Time) bool {
	return user != nil && user.Role != models.RoleAdmin &&
		user.SubscriptionStatus == models.StatusTrial &&
		user.TrialEndDate != nil && !now.Before(*user.TrialEndDate)
}
