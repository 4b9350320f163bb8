package service

import (
	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"github.com/shopspring/decimal"
)

// CommissionQuote 佣金计算结果快照
// Rate 记录生效条款：percentage 为比例，fixed 为固定金额
type CommissionQuote struct {
	Amount models.Money
	Type   string
	Rate   models.Money
}

// ComputeCommission 按合作伙伴规则计算佣金
// percentage 按事件金额比例计算，fixed 返回固定金额，均保留 2 位小数。
// 非计佣事件类型返回零额快照。
func ComputeCommission(partner *models.Partner, eventType string, amount models.Money) CommissionQuote {
	if partner == nil || !constants.IsCommissionableEventType(eventType) {
		return zeroQuote(partner)
	}
	switch partner.CommissionType {
	case constants.CommissionTypePercentage:
		commission := amount.Decimal.
			Mul(partner.CommissionRate.Decimal).
			Div(decimal.NewFromInt(100))
		return CommissionQuote{
			Amount: models.NewMoneyFromDecimal(commission),
			Type:   constants.CommissionTypePercentage,
			Rate:   partner.CommissionRate,
		}
	case constants.CommissionTypeFixed:
		return CommissionQuote{
			Amount: partner.FixedAmount,
			Type:   constants.CommissionTypeFixed,
			Rate:   partner.FixedAmount,
		}
	}
	return zeroQuote(partner)
}

func zeroQuote(partner *models.Partner) CommissionQuote {
	quote := CommissionQuote{Amount: models.Money{}}
	if partner != nil {
		quote.Type = partner.CommissionType
		quote.Rate = partner.CommissionRate
		if partner.CommissionType == constants.CommissionTypeFixed {
			quote.Rate = partner.FixedAmount
		}
	}
	return quote
}
