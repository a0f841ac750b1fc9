package printer

import (
	"github.com/pisoprint/kiosk/internal/config"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/shopspring/decimal"
)

// 默认单价（比索/页）
var (
	defaultBWPerPage    = decimal.NewFromInt(2)
	defaultColorPerPage = decimal.NewFromInt(5)
)

// Pricing 打印计价
// 按页数×份数×单价计算费用，黑白/灰度同价，彩色另计。
type Pricing struct {
	bwPerPage    decimal.Decimal
	colorPerPage decimal.Decimal
}

// NewPricing 按配置创建计价器，解析失败时退回默认单价
func NewPricing(cfg *config.PricingConfig) *Pricing {
	p := &Pricing{
		bwPerPage:    defaultBWPerPage,
		colorPerPage: defaultColorPerPage,
	}
	if cfg == nil {
		return p
	}

	if rate, err := decimal.NewFromString(cfg.BWPerPage); err == nil && rate.IsPositive() {
		p.bwPerPage = rate
	}
	if rate, err := decimal.NewFromString(cfg.ColorPerPage); err == nil && rate.IsPositive() {
		p.colorPerPage = rate
	}
	return p
}

// RatePerPage 返回色彩模式对应的单页价格
func (p *Pricing) RatePerPage(colorMode string) decimal.Decimal {
	if colorMode == models.ColorModeColor {
		return p.colorPerPage
	}
	return p.bwPerPage
}

// Cost 计算一次打印的总费用
func (p *Pricing) Cost(pages, copies int, colorMode string) decimal.Decimal {
	if pages <= 0 || copies <= 0 {
		return decimal.Zero
	}
	sheets := decimal.NewFromInt(int64(pages) * int64(copies))
	return p.RatePerPage(colorMode).Mul(sheets)
}
