package entitlement

import (
	"time"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

// Feature — именованная возможность приложения, доступность которой
// зависит от тарифа.
type Feature string

// Возможности приложения.
const (
	FeatureQRCodes        Feature = "qr_codes"
	FeatureReviewInbox    Feature = "review_inbox"
	FeatureVideoReviews   Feature = "video_reviews"
	FeatureAnalytics      Feature = "analytics"
	FeatureTeamManagement Feature = "team_management"
	FeatureAPIAccess      Feature = "api_access"
	FeatureCustomBranding Feature = "custom_branding"
)

// featureMinPlan задаёт минимальный тариф для каждой возможности.
// Тарифы строго вложены: старший тариф включает всё, что есть в младших.
var featureMinPlan = map[Feature]models.Plan{
	FeatureQRCodes:        models.PlanStarter,
	FeatureReviewInbox:    models.PlanStarter,
	FeatureVideoReviews:   models.PlanProfessional,
	FeatureAnalytics:      models.PlanProfessional,
	FeatureTeamManagement: models.PlanProfessional,
	FeatureAPIAccess:      models.PlanEnterprise,
	FeatureCustomBranding: models.PlanEnterprise,
}

// HasFeature сообщает, доступна ли возможность при данном состоянии
// доступа. Требуются одновременно активный статус (оплаченный или
// пробный) и достаточный тариф; неизвестная возможность недоступна.
func HasFeature(ent models.Entitlement, feature Feature, now time.Time) bool {
	if ent.Admin {
		return true
	}
	if !ent.CanAccessApp(now) {
		return false
	}
	min, ok := featureMinPlan[feature]
	if !ok {
		return false
	}
	return ent.Plan.Covers(min)
}
