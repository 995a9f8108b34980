package service

import (
	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/models"

	"github.com/shopspring/decimal"
)

// CommissionShare 单个收款人的佣金份额
type CommissionShare struct {
	PayeeID uint
	Kind    string
	Rate    models.Rate
	Amount  models.Money
}

// CommissionSplitInput 计算佣金拆分所需的输入
type CommissionSplitInput struct {
	BuyerID          uint
	Subtotal         models.Money
	Affiliate        *models.User
	ParentStaff      *models.User
	DefaultRate      models.Rate
	DefaultStaffRate models.Rate
}

// CalcCommission 按百分比计算佣金，四舍五入到最小货币单位
func CalcCommission(subtotal models.Money, rate models.Rate) models.Money {
	if subtotal <= 0 || !rate.IsPositive() {
		return 0
	}
	amount := subtotal.Decimal().Mul(rate.Decimal).Div(decimal.NewFromInt(100))
	return models.NewMoneyFromDecimal(amount)
}

// SplitCommission 计算推广链上的佣金份额；金额为 0 的份额不返回
func SplitCommission(input CommissionSplitInput) []CommissionShare {
	affiliate := input.Affiliate
	if affiliate == nil || affiliate.ID == 0 || input.Subtotal <= 0 {
		return nil
	}
	if input.BuyerID != 0 && affiliate.ID == input.BuyerID {
		return nil
	}

	rate := input.DefaultRate
	if affiliate.CommissionRateOverride != nil {
		rate = *affiliate.CommissionRateOverride
	}

	parent := input.ParentStaff
	twoLevel := affiliate.AffiliateLevel == constants.AffiliateLevelCollaborator &&
		affiliate.ParentStaffID != nil && parent != nil && parent.ID == *affiliate.ParentStaffID

	shares := make([]CommissionShare, 0, 2)
	kind := constants.CommissionKindDirect
	if twoLevel {
		kind = constants.CommissionKindCollaboratorDirect
	}
	if amount := CalcCommission(input.Subtotal, rate); amount > 0 {
		shares = append(shares, CommissionShare{PayeeID: affiliate.ID, Kind: kind, Rate: rate, Amount: amount})
	}
	if !twoLevel || (input.BuyerID != 0 && parent.ID == input.BuyerID) {
		return shares
	}

	staffRate := input.DefaultStaffRate
	if parent.StaffCommissionRate != nil {
		staffRate = *parent.StaffCommissionRate
	}
	if amount := CalcCommission(input.Subtotal, staffRate); amount > 0 {
		shares = append(shares, CommissionShare{
			PayeeID: parent.ID,
			Kind:    constants.CommissionKindStaffOverride,
			Rate:    staffRate,
			Amount:  amount,
		})
	}
	return shares
}

// SumShares 份额合计
func SumShares(shares []CommissionShare) models.Money {
	var total models.Money
	for _, share := range shares {
		total += share.Amount
	}
	return total
}
