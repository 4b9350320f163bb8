package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"
	"github.com/shopspring/decimal"
)

const (
	referralCodeLength      = 8
	webhookSecretByteLength = 32
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,62}[a-z0-9]$`)

// PartnerService 合作伙伴业务服务
type PartnerService struct {
	repo            repository.PartnerRepository
	referralBaseURL string
}

// NewPartnerService 创建合作伙伴服务
func NewPartnerService(repo repository.PartnerRepository, referralBaseURL string) *PartnerService {
	return &PartnerService{
		repo:            repo,
		referralBaseURL: strings.TrimSpace(referralBaseURL),
	}
}

// CreatePartnerInput 创建合作伙伴输入
type CreatePartnerInput struct {
	Name                     string
	Slug                     string
	CommissionType           string
	CommissionRate           decimal.Decimal
	FixedAmount              decimal.Decimal
	AttributionWindowDays    int
	ReferralParam            string
	CommissionOnUnattributed bool
}

// UpdatePartnerInput 更新合作伙伴输入，nil 字段不修改
type UpdatePartnerInput struct {
	Name                     *string
	CommissionType           *string
	CommissionRate           *decimal.Decimal
	FixedAmount              *decimal.Decimal
	AttributionWindowDays    *int
	ReferralParam            *string
	CommissionOnUnattributed *bool
}

// ReferralURLInput 推荐链接生成输入
type ReferralURLInput struct {
	TargetURL string
	UserKey   string
	ProjectID string
	SiteID    string
	Campaign  string
}

// Create 创建合作伙伴
// 佣金规则在创建时校验，webhook 密钥与推荐码自动生成
func (s *PartnerService) Create(input CreatePartnerInput) (*models.Partner, error) {
	if s.repo == nil {
		return nil, ErrNotFound
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrParamInvalid
	}
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(slug) {
		return nil, ErrParamInvalid
	}
	if err := validateCommissionRule(input.CommissionType, input.CommissionRate, input.FixedAmount); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrPartnerSlugTaken
	}

	secret, err := generateWebhookSecret()
	if err != nil {
		return nil, err
	}
	code, err := s.uniqueReferralCode()
	if err != nil {
		return nil, err
	}

	windowDays := input.AttributionWindowDays
	if windowDays <= 0 {
		windowDays = constants.DefaultAttributionWindowDays
	}
	referralParam := strings.TrimSpace(input.ReferralParam)
	if referralParam == "" {
		referralParam = constants.DefaultReferralParam
	}

	now := time.Now()
	partner := &models.Partner{
		Name:                     name,
		Slug:                     slug,
		CommissionType:           input.CommissionType,
		CommissionRate:           models.NewMoneyFromDecimal(input.CommissionRate),
		FixedAmount:              models.NewMoneyFromDecimal(input.FixedAmount),
		AttributionWindowDays:    windowDays,
		WebhookSecret:            secret,
		ReferralParam:            referralParam,
		ReferralCode:             code,
		CommissionOnUnattributed: input.CommissionOnUnattributed,
		IsActive:                 true,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.repo.Create(partner); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrPartnerSlugTaken
		}
		return nil, err
	}
	return partner, nil
}

// Update 更新合作伙伴配置
// 佣金规则变更只影响之后的事件，已入库事件保留快照
func (s *PartnerService) Update(id uint, input UpdatePartnerInput) (*models.Partner, error) {
	if s.repo == nil || id == 0 {
		return nil, ErrNotFound
	}
	partner, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrParamInvalid
		}
		partner.Name = name
	}

	nextType := partner.CommissionType
	nextRate := partner.CommissionRate.Decimal
	nextFixed := partner.FixedAmount.Decimal
	if input.CommissionType != nil {
		nextType = strings.TrimSpace(*input.CommissionType)
	}
	if input.CommissionRate != nil {
		nextRate = *input.CommissionRate
	}
	if input.FixedAmount != nil {
		nextFixed = *input.FixedAmount
	}
	if err := validateCommissionRule(nextType, nextRate, nextFixed); err != nil {
		return nil, err
	}
	partner.CommissionType = nextType
	partner.CommissionRate = models.NewMoneyFromDecimal(nextRate)
	partner.FixedAmount = models.NewMoneyFromDecimal(nextFixed)

	if input.AttributionWindowDays != nil {
		if *input.AttributionWindowDays <= 0 {
			return nil, ErrParamInvalid
		}
		partner.AttributionWindowDays = *input.AttributionWindowDays
	}
	if input.ReferralParam != nil {
		param := strings.TrimSpace(*input.ReferralParam)
		if param == "" {
			param = constants.DefaultReferralParam
		}
		partner.ReferralParam = param
	}
	if input.CommissionOnUnattributed != nil {
		partner.CommissionOnUnattributed = *input.CommissionOnUnattributed
	}
	partner.UpdatedAt = time.Now()

	if err := s.repo.Update(partner); err != nil {
		return nil, err
	}
	return partner, nil
}

// SetActive 启用/停用合作伙伴
// 停用后拒绝新点击与新转化，历史数据不受影响
func (s *PartnerService) SetActive(id uint, active bool) (*models.Partner, error) {
	if s.repo == nil || id == 0 {
		return nil, ErrNotFound
	}
	partner, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	if partner.IsActive == active {
		return partner, nil
	}
	now := time.Now()
	if err := s.repo.UpdateActive(id, active, now); err != nil {
		return nil, err
	}
	partner.IsActive = active
	partner.UpdatedAt = now
	return partner, nil
}

// RotateWebhookSecret 更换 Webhook 签名密钥
func (s *PartnerService) RotateWebhookSecret(id uint) (*models.Partner, error) {
	if s.repo == nil || id == 0 {
		return nil, ErrNotFound
	}
	partner, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	secret, err := generateWebhookSecret()
	if err != nil {
		return nil, err
	}
	partner.WebhookSecret = secret
	partner.UpdatedAt = time.Now()
	if err := s.repo.Update(partner); err != nil {
		return nil, err
	}
	return partner, nil
}

// Get 获取合作伙伴
func (s *PartnerService) Get(id uint) (*models.Partner, error) {
	if s.repo == nil {
		return nil, ErrNotFound
	}
	partner, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	return partner, nil
}

// GetActiveBySlug 获取启用状态的合作伙伴
func (s *PartnerService) GetActiveBySlug(slug string) (*models.Partner, error) {
	if s.repo == nil {
		return nil, ErrNotFound
	}
	partner, err := s.repo.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	if !partner.IsActive {
		return nil, ErrPartnerInactive
	}
	return partner, nil
}

// List 查询合作伙伴列表
func (s *PartnerService) List(filter repository.PartnerListFilter) ([]models.Partner, int64, error) {
	if s.repo == nil {
		return nil, 0, ErrNotFound
	}
	return s.repo.List(filter)
}

// GenerateReferralURL 生成带归因参数的推荐链接
// 目标地址已有查询串时追加参数，已存在的同名参数被覆盖
func (s *PartnerService) GenerateReferralURL(id uint, input ReferralURLInput) (string, error) {
	partner, err := s.Get(id)
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(input.TargetURL)
	if target == "" {
		target = s.referralBaseURL
	}
	if target == "" {
		return "", ErrParamInvalid
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", ErrParamInvalid
	}

	query := parsed.Query()
	param := strings.TrimSpace(partner.ReferralParam)
	if param == "" {
		param = constants.DefaultReferralParam
	}
	query.Set(param, partner.ReferralCode)
	if userKey := strings.TrimSpace(input.UserKey); userKey != "" {
		query.Set("p4s_user", userKey)
	}
	if projectID := strings.TrimSpace(input.ProjectID); projectID != "" {
		query.Set("p4s_project", projectID)
	}
	if siteID := strings.TrimSpace(input.SiteID); siteID != "" {
		query.Set("p4s_site", siteID)
	}
	if campaign := strings.TrimSpace(input.Campaign); campaign != "" {
		query.Set("utm_campaign", campaign)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// validateCommissionRule 校验佣金规则
// percentage 比例在 (0, 100]，fixed 金额必须为正
func validateCommissionRule(commissionType string, rate, fixed decimal.Decimal) error {
	switch commissionType {
	case constants.CommissionTypePercentage:
		if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(100)) {
			return ErrParamInvalid
		}
	case constants.CommissionTypeFixed:
		if fixed.LessThanOrEqual(decimal.Zero) {
			return ErrParamInvalid
		}
	default:
		return ErrParamInvalid
	}
	return nil
}

// uniqueReferralCode 生成不冲突的推荐码
func (s *PartnerService) uniqueReferralCode() (string, error) {
	for i := 0; i < 5; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		existing, err := s.repo.GetByReferralCode(code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("referral code generation exhausted")
}

func generateReferralCode() (string, error) {
	const alphabet = "abcdefghjkmnpqrstuvwxyz23456789"
	var builder strings.Builder
	builder.Grow(referralCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func generateWebhookSecret() (string, error) {
	buf := make([]byte, webhookSecretByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
