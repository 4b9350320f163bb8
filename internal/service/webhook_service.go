package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/extractor"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/models"
	"github.com/partners4saas/engine/internal/repository"
)

const signaturePrefix = "sha256="

// WebhookService 转化事件接入服务
// 所有进入的载荷先落审计日志，再解析归一化并幂等入库
type WebhookService struct {
	partnerRepo    repository.PartnerRepository
	eventRepo      repository.EventRepository
	logRepo        repository.WebhookLogRepository
	attributionSvc *AttributionService
	registry       *extractor.Registry
	maxAttempts    int
}

// NewWebhookService 创建转化事件接入服务
func NewWebhookService(
	partnerRepo repository.PartnerRepository,
	eventRepo repository.EventRepository,
	logRepo repository.WebhookLogRepository,
	attributionSvc *AttributionService,
	registry *extractor.Registry,
	maxAttempts int,
) *WebhookService {
	if registry == nil {
		registry = extractor.NewRegistry()
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &WebhookService{
		partnerRepo:    partnerRepo,
		eventRepo:      eventRepo,
		logRepo:        logRepo,
		attributionSvc: attributionSvc,
		registry:       registry,
		maxAttempts:    maxAttempts,
	}
}

// ConversionInput 平台直报转化输入
type ConversionInput struct {
	PartnerSlug string
	EventType   string
	ExternalID  string
	UserKey     string
	Amount      models.Money
	Currency    string
	Metadata    models.JSON
}

// ConversionResult 转化入库结果
type ConversionResult struct {
	Event     *models.ConversionEvent
	Created   bool
	Duplicate bool
}

// VerifySignature 校验 Webhook 签名
// 签名头格式为 sha256=<hex(hmac-sha256(secret, body))>，常数时间比较
func (s *WebhookService) VerifySignature(secret string, body []byte, signature string) error {
	header := strings.TrimSpace(signature)
	if secret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return ErrSignatureInvalid
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return ErrSignatureInvalid
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrSignatureInvalid
	}
	return nil
}

// Ingest 接收 Webhook 投递
// 原始载荷无条件落审计日志，签名失败的投递标记失败后拒绝
func (s *WebhookService) Ingest(ctx context.Context, partnerSlug string, body []byte, signature, requestID string) (*models.WebhookLog, error) {
	if s.partnerRepo == nil || s.logRepo == nil {
		return nil, ErrNotFound
	}
	partner, err := s.partnerRepo.GetBySlug(partnerSlug)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	if !partner.IsActive {
		return nil, ErrPartnerInactive
	}

	now := time.Now()
	log := &models.WebhookLog{
		PartnerID: partner.ID,
		RequestID: strings.TrimSpace(requestID),
		Signature: truncate(signature, 128),
		RawBody:   string(body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.logRepo.Create(log); err != nil {
		return nil, err
	}

	if err := s.VerifySignature(partner.WebhookSecret, body, signature); err != nil {
		if markErr := s.logRepo.MarkFailed(log.ID, "signature invalid", time.Now()); markErr != nil {
			logger.Errorw("webhook_log_mark_failed", "log_id", log.ID, "error", markErr.Error())
		}
		logger.Warnw("webhook_signature_rejected",
			"partner_id", partner.ID,
			"log_id", log.ID,
			"request_id", log.RequestID,
		)
		return log, ErrSignatureInvalid
	}
	return log, nil
}

// ProcessLog 解析审计日志中的载荷并入库
// 处理前用存档的原始载荷重新校验签名，签名不合法的日志无论重试多少次都不会入库
func (s *WebhookService) ProcessLog(ctx context.Context, logID uint) (*ConversionResult, error) {
	if s.logRepo == nil {
		return nil, ErrNotFound
	}
	log, err := s.logRepo.GetByID(logID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		return nil, ErrNotFound
	}
	if log.Processed {
		return nil, ErrDuplicateDelivery
	}

	partner, err := s.partnerRepo.GetByID(log.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}

	if err := s.VerifySignature(partner.WebhookSecret, []byte(log.RawBody), log.Signature); err != nil {
		if markErr := s.logRepo.MarkFailed(log.ID, "signature invalid", time.Now()); markErr != nil {
			logger.Errorw("webhook_log_mark_failed", "log_id", log.ID, "error", markErr.Error())
		}
		logger.Warnw("webhook_signature_rejected",
			"partner_id", partner.ID,
			"log_id", log.ID,
			"request_id", log.RequestID,
		)
		return nil, ErrSignatureInvalid
	}

	result, err := s.processBody(ctx, partner, []byte(log.RawBody))
	now := time.Now()
	if err != nil {
		if markErr := s.logRepo.MarkFailed(log.ID, err.Error(), now); markErr != nil {
			logger.Errorw("webhook_log_mark_failed", "log_id", log.ID, "error", markErr.Error())
		}
		return nil, err
	}

	var eventID *uint
	if result.Event != nil {
		eventID = &result.Event.ID
	}
	if err := s.logRepo.MarkProcessed(log.ID, eventID, now); err != nil {
		logger.Errorw("webhook_log_mark_processed_failed", "log_id", log.ID, "error", err.Error())
	}
	return result, nil
}

// RetryLog 重试失败的审计日志
// 超过最大尝试次数的日志不再重试
func (s *WebhookService) RetryLog(ctx context.Context, logID uint) (*ConversionResult, error) {
	if s.logRepo == nil {
		return nil, ErrNotFound
	}
	log, err := s.logRepo.GetByID(logID)
	if err != nil {
		return nil, err
	}
	if log == nil {
		return nil, ErrNotFound
	}
	if log.Processed {
		return nil, ErrDuplicateDelivery
	}
	if log.Attempts >= s.maxAttempts {
		return nil, ErrParamInvalid
	}
	return s.ProcessLog(ctx, logID)
}

// RecordConversion 平台直报转化
// 与 Webhook 通道共用同一套归因与计佣逻辑
func (s *WebhookService) RecordConversion(ctx context.Context, input ConversionInput) (*ConversionResult, error) {
	if s.partnerRepo == nil || s.eventRepo == nil {
		return nil, ErrNotFound
	}
	partner, err := s.partnerRepo.GetBySlug(input.PartnerSlug)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, ErrNotFound
	}
	if !partner.IsActive {
		return nil, ErrPartnerInactive
	}

	eventType := strings.ToLower(strings.TrimSpace(input.EventType))
	if !constants.IsValidEventType(eventType) {
		return nil, ErrParamInvalid
	}
	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" {
		return nil, ErrParamInvalid
	}

	canonical := &extractor.CanonicalEvent{
		ExternalID: externalID,
		EventType:  eventType,
		UserKey:    strings.TrimSpace(input.UserKey),
		Amount:     input.Amount,
		Currency:   strings.ToUpper(strings.TrimSpace(input.Currency)),
		Metadata:   input.Metadata,
	}
	return s.recordCanonical(ctx, partner, canonical, nil)
}

// processBody 解析原始载荷并入库
func (s *WebhookService) processBody(ctx context.Context, partner *models.Partner, body []byte) (*ConversionResult, error) {
	canonical, err := s.registry.Resolve(partner.Slug).Extract(body)
	if err != nil {
		return nil, err
	}
	if !constants.IsValidEventType(canonical.EventType) {
		return nil, ErrParamInvalid
	}

	var raw models.JSON
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = nil
	}
	return s.recordCanonical(ctx, partner, canonical, raw)
}

// recordCanonical 归因裁决、计佣并幂等写入事件
func (s *WebhookService) recordCanonical(ctx context.Context, partner *models.Partner, canonical *extractor.CanonicalEvent, raw models.JSON) (*ConversionResult, error) {
	match, err := s.attributionSvc.Resolve(ctx, partner.ID, canonical.UserKey)
	if err != nil {
		return nil, err
	}

	quote := ComputeCommission(partner, canonical.EventType, canonical.Amount)
	var attributionID *uint
	confidence := constants.AttributionConfidenceNone
	if match != nil && match.Attribution != nil {
		attributionID = &match.Attribution.ID
		confidence = match.Confidence
	}
	// 无归因不计佣时连同条款快照一起归零，复核只看事件自身的存档
	if attributionID == nil && !partner.CommissionOnUnattributed {
		quote.Amount = models.Money{}
		quote.Rate = models.Money{}
	}

	now := time.Now()
	if canonical.OccurredAt == nil {
		canonical.OccurredAt = &now
	}
	currency := canonical.Currency
	if currency == "" {
		currency = "USD"
	}

	event := &models.ConversionEvent{
		PartnerID:             partner.ID,
		AttributionID:         attributionID,
		EventType:             canonical.EventType,
		ExternalID:            canonical.ExternalID,
		UserKey:               canonical.UserKey,
		Amount:                canonical.Amount,
		Currency:              currency,
		CommissionAmount:      quote.Amount,
		CommissionType:        quote.Type,
		CommissionRate:        quote.Rate,
		AttributionConfidence: confidence,
		CommissionStatus:      constants.CommissionStatusPending,
		RawPayload:            raw,
		CreatedAt:             *canonical.OccurredAt,
		UpdatedAt:             now,
	}
	if len(canonical.Metadata) > 0 && raw == nil {
		event.RawPayload = canonical.Metadata
	}

	created, err := s.eventRepo.CreateIgnoreDuplicate(event)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.eventRepo.GetByExternalID(partner.ID, canonical.ExternalID)
		if err != nil {
			return nil, err
		}
		logger.Infow("conversion_duplicate_delivery",
			"partner_id", partner.ID,
			"external_id", canonical.ExternalID,
		)
		return &ConversionResult{Event: existing, Duplicate: true}, nil
	}

	logger.Infow("conversion_recorded",
		"partner_id", partner.ID,
		"event_id", event.ID,
		"event_type", event.EventType,
		"external_id", event.ExternalID,
		"confidence", confidence,
		"commission", event.CommissionAmount.String(),
	)
	return &ConversionResult{Event: event, Created: true}, nil
}

// ListLogs 查询审计日志
func (s *WebhookService) ListLogs(filter repository.WebhookLogListFilter) ([]models.WebhookLog, int64, error) {
	if s.logRepo == nil {
		return nil, 0, ErrNotFound
	}
	return s.logRepo.List(filter)
}
