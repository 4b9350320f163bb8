package main

import (
	"fmt"
	"time"

	"github.com/partners4saas/engine/internal/config"
	"github.com/partners4saas/engine/internal/constants"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加演示合作伙伴
	partners := []models.Partner{
		{
			Name:                  "Acme Newsletter",
			Slug:                  "acme-newsletter",
			CommissionType:        constants.CommissionTypePercentage,
			CommissionRate:        models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
			AttributionWindowDays: 30,
			WebhookSecret:         "seed-acme-newsletter-secret-0000000000000000",
			ReferralParam:         "via",
			ReferralCode:          "acme2024",
			IsActive:              true,
		},
		{
			Name:                  "DevTools Weekly",
			Slug:                  "devtools-weekly",
			CommissionType:        constants.CommissionTypePercentage,
			CommissionRate:        models.NewMoneyFromDecimal(decimal.NewFromInt(25)),
			AttributionWindowDays: 60,
			WebhookSecret:         "seed-devtools-weekly-secret-0000000000000000",
			ReferralParam:         "ref",
			ReferralCode:          "devtools",
			IsActive:              true,
		},
		{
			Name:                     "Flat Fee Reseller",
			Slug:                     "flat-fee-reseller",
			CommissionType:           constants.CommissionTypeFixed,
			FixedAmount:              models.NewMoneyFromDecimal(decimal.NewFromFloat(15.00)),
			AttributionWindowDays:    14,
			WebhookSecret:            "seed-flat-fee-reseller-secret-00000000000000",
			ReferralParam:            "via",
			ReferralCode:             "flatfee1",
			CommissionOnUnattributed: true,
			IsActive:                 true,
		},
	}

	for _, partner := range partners {
		var existing models.Partner
		if err := models.DB.Where("slug = ?", partner.Slug).First(&existing).Error; err != nil {
			if err := models.DB.Create(&partner).Error; err != nil {
				stdLog.Printf("Failed to create partner %s: %v", partner.Slug, err)
			} else {
				stdLog.Printf("Created partner: %s", partner.Slug)
			}
		} else {
			stdLog.Printf("Partner already exists: %s", partner.Slug)
		}
	}

	// 为演示伙伴补充点击归因
	var acme models.Partner
	if err := models.DB.Where("slug = ?", "acme-newsletter").First(&acme).Error; err == nil {
		now := time.Now()
		expiresAt := now.Add(acme.AttributionWindow())
		clicks := []models.Attribution{
			{
				PartnerID: acme.ID,
				UserKey:   "demo-user-1",
				SiteID:    "docs",
				ProjectID: "starter",
				ClientIP:  "203.0.113.10",
				UserAgent: "Mozilla/5.0 (seed)",
				ExpiresAt: expiresAt,
			},
			{
				PartnerID: acme.ID,
				UserKey:   "demo-user-2",
				SiteID:    "landing",
				ProjectID: "pro",
				ClientIP:  "203.0.113.11",
				UserAgent: "Mozilla/5.0 (seed)",
				ExpiresAt: expiresAt,
			},
		}
		for _, click := range clicks {
			var existing models.Attribution
			if err := models.DB.Where("partner_id = ? AND user_key = ?", click.PartnerID, click.UserKey).First(&existing).Error; err != nil {
				if err := models.DB.Create(&click).Error; err != nil {
					stdLog.Printf("Failed to create attribution for %s: %v", click.UserKey, err)
				} else {
					stdLog.Printf("Created attribution: %s", click.UserKey)
				}
			} else {
				stdLog.Printf("Attribution already exists: %s", click.UserKey)
			}
		}
	}

	fmt.Println("\nSeed data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 3 Partners (2 percentage + 1 fixed)")
	fmt.Println("- 2 Attribution clicks for acme-newsletter")
}
