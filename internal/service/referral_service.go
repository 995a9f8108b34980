package service

import (
	"strings"

	"github.com/payledger/internal/constants"
	"github.com/payledger/internal/logger"
	"github.com/payledger/internal/models"
	"github.com/payledger/internal/repository"

	"github.com/shopspring/decimal"
)

const referralCodeMaxLength = 32

// ReferralService 推广归因与推广人配置
type ReferralService struct {
	userRepo         repository.UserRepository
	defaultRate      models.Rate
	defaultStaffRate models.Rate
}

// NewReferralService 创建推广服务，默认比例为百分比
func NewReferralService(userRepo repository.UserRepository, defaultRate, defaultStaffRate float64) *ReferralService {
	return &ReferralService{
		userRepo:         userRepo,
		defaultRate:      models.RateFromFloat(defaultRate),
		defaultStaffRate: models.RateFromFloat(defaultStaffRate),
	}
}

// ReferralChain 下单时解析出的推广链
type ReferralChain struct {
	Code        string
	Affiliate   *models.User
	ParentStaff *models.User
}

// NormalizeReferralCode 统一推广码格式
func NormalizeReferralCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) > referralCodeMaxLength {
		return ""
	}
	return code
}

// Resolve 解析推广码；无效码与自荐均返回 nil 而非错误
func (s *ReferralService) Resolve(buyerID uint, rawCode string) (*ReferralChain, error) {
	code := NormalizeReferralCode(rawCode)
	if code == "" {
		return nil, nil
	}
	affiliate, err := s.userRepo.GetByReferralCode(code)
	if err != nil {
		return nil, err
	}
	if affiliate == nil || affiliate.Status == constants.UserStatusDisabled {
		logger.Debugw("referral_code_unresolved", "code", code)
		return nil, nil
	}
	if buyerID != 0 && affiliate.ID == buyerID {
		logger.Infow("referral_self_rejected", "user_id", buyerID, "code", code)
		return nil, nil
	}

	chain := &ReferralChain{Code: code, Affiliate: affiliate}
	if affiliate.AffiliateLevel == constants.AffiliateLevelCollaborator && affiliate.ParentStaffID != nil {
		parent, err := s.userRepo.GetByID(*affiliate.ParentStaffID)
		if err != nil {
			return nil, err
		}
		if parent != nil && parent.AffiliateLevel == constants.AffiliateLevelStaff {
			chain.ParentStaff = parent
		}
	}
	return chain, nil
}

// Split 按推广链计算佣金份额
func (s *ReferralService) Split(buyerID uint, subtotal models.Money, chain *ReferralChain) []CommissionShare {
	if chain == nil {
		return nil
	}
	return SplitCommission(CommissionSplitInput{
		BuyerID:          buyerID,
		Subtotal:         subtotal,
		Affiliate:        chain.Affiliate,
		ParentStaff:      chain.ParentStaff,
		DefaultRate:      s.defaultRate,
		DefaultStaffRate: s.defaultStaffRate,
	})
}

// LandingCode 推广落地页校验推广码，返回可写入 Cookie 的规范码
func (s *ReferralService) LandingCode(rawCode string) (string, error) {
	code := NormalizeReferralCode(rawCode)
	if code == "" {
		return "", ErrAffiliateNotFound
	}
	affiliate, err := s.userRepo.GetByReferralCode(code)
	if err != nil {
		return "", err
	}
	if affiliate == nil || affiliate.Status == constants.UserStatusDisabled {
		return "", ErrAffiliateNotFound
	}
	return code, nil
}

// AffiliateUpdateInput 管理端推广人配置
type AffiliateUpdateInput struct {
	ReferralCode           *string
	AffiliateLevel         *string
	ParentStaffID          *uint
	ClearParentStaff       bool
	CommissionRateOverride *string
	StaffCommissionRate    *string
}

// UpdateAffiliate 更新推广人配置；余额字段不在此处修改
func (s *ReferralService) UpdateAffiliate(userID uint, input AffiliateUpdateInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrAffiliateNotFound
	}

	updates := map[string]interface{}{}
	level := user.AffiliateLevel
	if input.AffiliateLevel != nil {
		level = strings.ToLower(strings.TrimSpace(*input.AffiliateLevel))
		switch level {
		case constants.AffiliateLevelNone, constants.AffiliateLevelStaff, constants.AffiliateLevelCollaborator:
		default:
			return nil, ErrAffiliateLevelInvalid
		}
		updates["affiliate_level"] = level
	}
	if input.ReferralCode != nil {
		code := NormalizeReferralCode(*input.ReferralCode)
		if code == "" {
			updates["referral_code"] = nil
		} else {
			owner, err := s.userRepo.GetByReferralCode(code)
			if err != nil {
				return nil, err
			}
			if owner != nil && owner.ID != user.ID {
				return nil, ErrReferralCodeTaken
			}
			updates["referral_code"] = code
		}
	}

	switch {
	case input.ClearParentStaff || level != constants.AffiliateLevelCollaborator:
		if user.ParentStaffID != nil || input.ClearParentStaff {
			updates["parent_staff_id"] = nil
		}
	case input.ParentStaffID != nil:
		parentID := *input.ParentStaffID
		if parentID == user.ID {
			return nil, ErrAffiliateParentInvalid
		}
		parent, err := s.userRepo.GetByID(parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.AffiliateLevel != constants.AffiliateLevelStaff {
			return nil, ErrAffiliateParentInvalid
		}
		updates["parent_staff_id"] = parentID
	}

	if input.CommissionRateOverride != nil {
		value, err := parseOptionalRate(*input.CommissionRateOverride)
		if err != nil {
			return nil, err
		}
		updates["commission_rate_override"] = value
	}
	if input.StaffCommissionRate != nil {
		value, err := parseOptionalRate(*input.StaffCommissionRate)
		if err != nil {
			return nil, err
		}
		updates["staff_commission_rate"] = value
	}

	if len(updates) > 0 {
		if err := s.userRepo.UpdateAffiliate(user.ID, updates); err != nil {
			if repository.IsUniqueViolation(err) {
				return nil, ErrReferralCodeTaken
			}
			return nil, err
		}
	}
	return s.userRepo.GetByID(user.ID)
}

// parseOptionalRate 空串表示清除；取值范围 0~100
func parseOptionalRate(raw string) (interface{}, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, ErrAffiliateRateInvalid
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrAffiliateRateInvalid
	}
	return models.NewRate(d), nil
}
