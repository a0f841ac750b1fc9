package printer

import (
	"testing"

	"github.com/pisoprint/kiosk/internal/config"
	"github.com/pisoprint/kiosk/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// TestPricing_Cost 测试费用计算
func TestPricing_Cost(t *testing.T) {
	pricing := NewPricing(&config.PricingConfig{
		BWPerPage:    "2.00",
		ColorPerPage: "5.00",
	})

	// 5页黑白单份 = 10.00
	cost := pricing.Cost(5, 1, models.ColorModeBW)
	assert.True(t, cost.Equal(decimal.RequireFromString("10.00")), "got %s", cost)

	// 灰度与黑白同价
	cost = pricing.Cost(5, 1, models.ColorModeGrayscale)
	assert.True(t, cost.Equal(decimal.RequireFromString("10.00")))

	// 3页彩色2份 = 30.00
	cost = pricing.Cost(3, 2, models.ColorModeColor)
	assert.True(t, cost.Equal(decimal.RequireFromString("30.00")))
}

// TestPricing_InvalidInput 测试非法页数与份数
func TestPricing_InvalidInput(t *testing.T) {
	pricing := NewPricing(nil)

	assert.True(t, pricing.Cost(0, 1, models.ColorModeBW).IsZero())
	assert.True(t, pricing.Cost(5, 0, models.ColorModeBW).IsZero())
	assert.True(t, pricing.Cost(-1, -1, models.ColorModeColor).IsZero())
}

// TestPricing_FallbackRates 测试配置解析失败时退回默认单价
func TestPricing_FallbackRates(t *testing.T) {
	pricing := NewPricing(&config.PricingConfig{
		BWPerPage:    "not-a-number",
		ColorPerPage: "-3.00",
	})

	assert.True(t, pricing.RatePerPage(models.ColorModeBW).Equal(decimal.NewFromInt(2)))
	assert.True(t, pricing.RatePerPage(models.ColorModeColor).Equal(decimal.NewFromInt(5)))
}
