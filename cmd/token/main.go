package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/partners4saas/engine/internal/config"
	"github.com/partners4saas/engine/internal/logger"
	"github.com/partners4saas/engine/internal/service"
)

// 为运营端接口签发访问令牌
func main() {
	var operator string
	var hours int
	flag.StringVar(&operator, "operator", "", "操作人标识（必填）")
	flag.IntVar(&hours, "hours", 0, "令牌有效期（小时），默认取配置 operator_jwt.expire_hours")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if hours <= 0 {
		hours = cfg.OperatorJWT.ExpireHours
	}
	if hours <= 0 {
		hours = 24
	}

	token, err := service.IssueOperatorToken(cfg.OperatorJWT.SecretKey, operator, time.Duration(hours)*time.Hour)
	if err != nil {
		stdLog.Fatalf("令牌签发失败: %v", err)
	}
	fmt.Println(token)
}
