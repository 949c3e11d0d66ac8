// Package models содержит доменные структуры платформы сбора отзывов:
// пользователей-компаний, подписки, производное состояние доступа,
// сотрудников с QR-кодами, отзывы и уведомления.
package models

// Plan уровень тарифного плана компании. Уровни строго вложены:
// free ⊂ starter ⊂ professional ⊂ enterprise.
type Plan string

// Возможные тарифные планы.
const (
	PlanFree         Plan = "free"
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// planRank определяет порядок вложенности тарифов.
var planRank = map[Plan]int{
	PlanFree:         0,
	PlanStarter:      1,
	PlanProfessional: 2,
	PlanEnterprise:   3,
}

// Valid сообщает, известен ли тариф.
func (p Plan) Valid() bool {
	_, ok := planRank[p]
	return ok
}

// Covers возвращает true, если тариф p включает в себя возможности тарифа other.
func (p Plan) Covers(other Plan) bool {
	return planRank[p] >= planRank[other]
}

// ParsePlan преобразует строку в Plan, возвращая PlanFree для неизвестных значений.
func ParsePlan(s string) Plan {
	p := Plan(s)
	if !p.Valid() {
		return PlanFree
	}
	return p
}
