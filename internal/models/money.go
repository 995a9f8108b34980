package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Money 统一金额类型（最小货币单位整数）
type Money int64

// Int64 返回整数值
func (m Money) Int64() int64 {
	return int64(m)
}

// Decimal 转换为 decimal 便于运算
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m))
}

// NewMoneyFromDecimal 从 decimal 创建金额（四舍五入到最小单位，负数归零）
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	rounded := amount.Round(0)
	if rounded.IsNegative() {
		return 0
	}
	return Money(rounded.IntPart())
}

// exponentAmountPattern JSON 数字可能以科学计数法出现（如 3.722e5）
var exponentAmountPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?[eE][+-]?\d+$`)

// ParseMoney 解析金额文本，容忍千分位与货币符号
func ParseMoney(raw string) (Money, error) {
	trimmed := strings.TrimSpace(raw)
	if exponentAmountPattern.MatchString(trimmed) {
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return 0, err
		}
		return Money(d.Round(0).IntPart()), nil
	}
	if looksLikeBrokenExponent(trimmed) {
		return 0, fmt.Errorf("invalid money %q", raw)
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '-':
			return r
		default:
			return -1
		}
	}, stripMinorFraction(trimmed))
	if cleaned == "" || cleaned == "-" {
		return 0, fmt.Errorf("invalid money %q", raw)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, err
	}
	return Money(d.IntPart()), nil
}

// looksLikeBrokenExponent 数字后紧跟 e/E 但不是合法科学计数法，拒绝而不是去掉字母后误读
func looksLikeBrokenExponent(raw string) bool {
	for i := 1; i < len(raw); i++ {
		if (raw[i] == 'e' || raw[i] == 'E') && raw[i-1] >= '0' && raw[i-1] <= '9' {
			return true
		}
	}
	return false
}

// stripMinorFraction 去掉末尾 1~2 位的小数部分（"372200.00" / "1,5"），三位分组视为千分位
func stripMinorFraction(raw string) string {
	idx := strings.LastIndexAny(raw, ".,")
	if idx < 0 {
		return raw
	}
	fraction := raw[idx+1:]
	if len(fraction) == 0 || len(fraction) > 2 {
		return raw
	}
	for _, r := range fraction {
		if r < '0' || r > '9' {
			return raw
		}
	}
	return raw[:idx]
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = 0
	case int64:
		*m = Money(v)
	case int32:
		*m = Money(v)
	case float64:
		*m = Money(int64(v))
	case []byte:
		parsed, err := ParseMoney(string(v))
		if err != nil {
			return err
		}
		*m = parsed
	case string:
		parsed, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = parsed
	default:
		return fmt.Errorf("unsupported money value %T", value)
	}
	return nil
}

// Rate 百分比费率（保留 2 位小数）
type Rate struct {
	decimal.Decimal
}

// NewRate 从 decimal 创建费率
func NewRate(value decimal.Decimal) Rate {
	return Rate{Decimal: value.Round(2)}
}

// RateFromFloat 从浮点数创建费率
func RateFromFloat(value float64) Rate {
	return NewRate(decimal.NewFromFloat(value))
}

// MarshalJSON 输出 2 位小数字符串
func (r Rate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Decimal.Round(2).StringFixed(2))
}

// UnmarshalJSON 解析费率（字符串或数字）
func (r *Rate) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		r.Decimal = d.Round(2)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	r.Decimal = decimal.NewFromFloat(f).Round(2)
	return nil
}

// Value 用于数据库写入
func (r Rate) Value() (driver.Value, error) {
	return r.Decimal.Round(2).Value()
}

// Scan 用于数据库读取
func (r *Rate) Scan(value interface{}) error {
	if err := r.Decimal.Scan(value); err != nil {
		return err
	}
	r.Decimal = r.Decimal.Round(2)
	return nil
}

// String 返回 2 位小数格式
func (r Rate) String() string {
	return r.Decimal.Round(2).StringFixed(2)
}
